package tutor

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

// Badges
const (
	BadgeGold   = "Gold"
	BadgeSilver = "Silver"
	BadgeBronze = "Bronze"
)

type (
	Tutor struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		Name         string    `json:"name"`
		Subject      string    `json:"subject"`
		Experience   string    `json:"experience"`
		Bio          string    `json:"bio"`
		ProfilePic   string    `json:"profile_pic"`
		Subjects     []string  `json:"subjects"`
		Languages    []string  `json:"languages"`
		HourlyRate   float64   `json:"hourly_rate"`
		Rating       float64   `json:"rating"`
		ReviewsCount int       `json:"reviews_count"`
		IsActive     bool      `json:"is_active"`
		Availability []Slot    `json:"availability"`
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	Slot struct {
		ID       string    `json:"id"`
		TimeSlot time.Time `json:"time_slot"`
		IsBooked bool      `json:"is_booked"`
	}

	// OpenSlot is a bookable Slot as shown to students.
	OpenSlot struct {
		ID   string    `json:"id"`
		Slot time.Time `json:"slot"`
	}

	// Summary is the Tutor as embedded in other resources.
	Summary struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Subject    string `json:"subject"`
		Experience string `json:"experience"`
		ProfilePic string `json:"profile_pic,omitempty"`
	}
)

func (t Tutor) Summary() *Summary {
	return &Summary{
		ID:         t.ID,
		Name:       t.Name,
		Subject:    t.Subject,
		Experience: t.Experience,
		ProfilePic: t.ProfilePic,
	}
}

// Badge returns the reputation badge earned by the Tutor, if any.
func (t Tutor) Badge() *string {
	var badge string
	switch {
	case t.Rating >= 4.8 && t.ReviewsCount >= 50:
		badge = BadgeGold
	case t.Rating >= 4.5 && t.ReviewsCount >= 20:
		badge = BadgeSilver
	case t.Rating >= 4.0 && t.ReviewsCount >= 5:
		badge = BadgeBronze
	default:
		return nil
	}
	return &badge
}

// OpenSlots returns the slots that are not booked and start after `now - 1h`.
func (t Tutor) OpenSlots(now time.Time) []OpenSlot {
	from := now.Add(-time.Hour)
	slots := make([]OpenSlot, 0, len(t.Availability))
	for _, s := range t.Availability {
		if !s.IsBooked && s.TimeSlot.After(from) {
			slots = append(slots, OpenSlot{ID: s.ID, Slot: s.TimeSlot})
		}
	}
	return slots
}

// HasSubject reports whether the Tutor teaches `subject`.
func (t Tutor) HasSubject(subject string) bool {
	return core.Contains(t.Subjects, subject)
}

// ListItem is a Tutor in the public listing.
type ListItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	Experience   string   `json:"experience"`
	Bio          string   `json:"bio"`
	ProfilePic   string   `json:"profile_pic"`
	HourlyRate   float64  `json:"hourly_rate"`
	Rating       float64  `json:"rating"`
	ReviewsCount int      `json:"reviews_count"`
	Subjects     []string `json:"subjects"`
	Languages    []string `json:"languages"`
	Badge        *string  `json:"badge"`
}

// Detail is a Tutor with its bookable slots.
type Detail struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	Subject        string     `json:"subject"`
	Experience     string     `json:"experience"`
	Bio            string     `json:"bio"`
	ProfilePic     string     `json:"profile_pic"`
	HourlyRate     float64    `json:"hourly_rate"`
	Rating         float64    `json:"rating"`
	ReviewsCount   int        `json:"reviews_count"`
	Subjects       []string   `json:"subjects"`
	Languages      []string   `json:"languages"`
	IsActive       bool       `json:"is_active"`
	AvailableSlots []OpenSlot `json:"available_slots"`
}

// Match is a Tutor scored against a SearchRequest.
type Match struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	Bio            string     `json:"bio"`
	ProfilePic     string     `json:"profile_pic"`
	HourlyRate     float64    `json:"hourly_rate"`
	Rating         float64    `json:"rating"`
	ReviewsCount   int        `json:"reviews_count"`
	Subjects       []string   `json:"subjects"`
	Languages      []string   `json:"languages"`
	AvailableSlots []OpenSlot `json:"available_slots"`
	MatchScore     float64    `json:"match_score"`
}

type SearchRequest struct {
	Subject        string   `json:"subject" validate:"required"`
	StudentLevel   string   `json:"student_level"`
	BudgetPerHour  float64  `json:"budget_per_hour" validate:"required,gt=0"`
	PreferredTimes []string `json:"preferred_times"`
}

func (sr *SearchRequest) Validate(validate *validator.Validate) error {
	sr.Subject = core.CleanString(sr.Subject)
	sr.StudentLevel = core.CleanString(sr.StudentLevel)
	return validate.Struct(sr)
}

type SearchResult struct {
	Tutors     []Match `json:"tutors"`
	TotalFound int     `json:"total_found"`
}

// NewTutor contains information needed to create the Tutor profile of a User.
type NewTutor struct {
	UserID     string
	Name       string
	Subject    string
	Experience string
	ProfilePic string
	Subjects   []string
	Languages  []string
	HourlyRate float64
	Bio        string
	Slots      []time.Time

	// imported reputation, used when seeding
	Rating       float64
	ReviewsCount int
}

type NewSlots struct {
	TimeSlots []time.Time `json:"time_slots" validate:"required,min=1"`
}

func (ns NewSlots) Validate(validate *validator.Validate) error { return validate.Struct(ns) }

type QueryFilter struct {
	Subject    string
	MaxRate    float64
	ActiveOnly bool
	Limit      int
}
