package stats

import (
	"time"

	"github.com/trezcool/mwalimu/core/booking"
)

// Alert types
const (
	AlertLowRating    = "low_rating"
	AlertStaleRequest = "stale_request"

	severityWarning = "warning"
)

type StudentStats struct {
	booking.StatusCounts
	Streak int `json:"streak"`
}

type AdminStats struct {
	TotalUsers          int `json:"total_users"`
	TotalStudents       int `json:"total_students"`
	TotalTutorUsers     int `json:"total_tutors_users"`
	TotalTutorsProfiles int `json:"total_tutors_profiles"`
	booking.StatusCounts
}

type Overview struct {
	TotalStudents    int     `json:"total_students"`
	ActiveTutors     int     `json:"active_tutors"`
	TotalBookings    int     `json:"total_bookings"`
	ApprovedSessions int     `json:"approved_sessions"`
	AvgTutorRating   float64 `json:"avg_tutor_rating"`
	AvgImprovement   float64 `json:"avg_improvement"`
}

// PeriodStats describes the bookings created during the last PeriodDays days.
type PeriodStats struct {
	booking.StatusCounts
	AcceptanceRate      float64 `json:"acceptance_rate"` // %
	AvgResponseTimeMins float64 `json:"avg_response_time_mins"`
	PeriodDays          int     `json:"period_days"`
}

type TutorEffectiveness struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ProfilePic      string  `json:"profile_pic"`
	Rating          float64 `json:"rating"`
	ReviewsCount    int     `json:"reviews_count"`
	TotalSessions   int     `json:"total_sessions"`
	AvgOutcomeDelta float64 `json:"avg_outcome_delta"`
	SubjectsTaught  int     `json:"subjects_taught"`
	CompletionRate  float64 `json:"completion_rate"` // %
}

type SubjectTrend struct {
	TutorID       string `json:"tutor_id"`
	TutorName     string `json:"tutor_name"`
	TotalBookings int    `json:"total_bookings"`
	Approved      int    `json:"approved"`
}

type Alert struct {
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	TutorID   string `json:"tutor_id,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

type AlertsReport struct {
	Alerts      []Alert   `json:"alerts"`
	TotalAlerts int       `json:"total_alerts"`
	GeneratedAt time.Time `json:"generated_at"`
}
