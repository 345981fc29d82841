package feedback

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

const defaultSubject = "General"

// Recommendations
const (
	RecommendContinue    = "continue"
	RecommendLevelUp     = "level_up"
	RecommendSwitchTutor = "switch_tutor"
)

type Feedback struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	StudentID string    `json:"student_id"` // user ID
	TutorID   string    `json:"tutor_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Outcome is a learning outcome of a session, unique per booking & indicator.
type Outcome struct {
	ID               string    `json:"id"`
	BookingID        string    `json:"booking_id"`
	StudentID        string    `json:"student_id"` // user ID
	Subject          string    `json:"subject"`
	Indicator        string    `json:"indicator"`
	BeforeLevel      int       `json:"before_level"`
	AfterLevel       int       `json:"after_level"`
	DeltaImprovement float64   `json:"delta_improvement"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

// Submission is persisted atomically: the feedback, its outcomes and the tutor's new rating.
type Submission struct {
	Feedback Feedback
	Outcomes []Outcome
}

type NewOutcome struct {
	Indicator   string `json:"indicator" validate:"required"`
	BeforeLevel int    `json:"before_level"`
	AfterLevel  int    `json:"after_level"`
}

func (no NewOutcome) validLevels() bool {
	return no.BeforeLevel >= 1 && no.BeforeLevel <= 10 && no.AfterLevel >= 1 && no.AfterLevel <= 10
}

type NewFeedback struct {
	BookingID string       `json:"booking_id" validate:"required"`
	Rating    int          `json:"rating" validate:"required,min=1,max=5"`
	Comment   string       `json:"comment"`
	Outcomes  []NewOutcome `json:"outcomes" validate:"dive"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.BookingID = core.CleanString(nf.BookingID)
	nf.Comment = core.CleanString(nf.Comment)
	for i := range nf.Outcomes {
		nf.Outcomes[i].Indicator = core.CleanString(nf.Outcomes[i].Indicator)
	}
	return validate.Struct(nf)
}

type SubmitResult struct {
	FeedbackID     string `json:"feedback_id"`
	Rating         int    `json:"rating"`
	Recommendation string `json:"recommendation"`
	Message        string `json:"message"`
}

// Recommend derives the next step for the student from the outcomes of a session.
func Recommend(outcomes []NewOutcome) string {
	if len(outcomes) == 0 {
		return RecommendContinue
	}

	var deltaSum, afterSum int
	for _, o := range outcomes {
		deltaSum += o.AfterLevel - o.BeforeLevel
		afterSum += o.AfterLevel
	}
	n := float64(len(outcomes))
	avgDelta := float64(deltaSum) / n
	avgAfter := float64(afterSum) / n

	switch {
	case avgDelta >= 3 && avgAfter >= 7:
		return RecommendLevelUp
	case avgDelta <= 0.5:
		return RecommendSwitchTutor
	default:
		return RecommendContinue
	}
}

type OutcomeFilter struct {
	StudentID  string
	BookingIDs []string
}

// StudentOutcome is an Outcome with its session.
type StudentOutcome struct {
	ID               string     `json:"id"`
	Subject          string     `json:"subject"`
	Indicator        string     `json:"indicator"`
	BeforeLevel      int        `json:"before_level"`
	AfterLevel       int        `json:"after_level"`
	DeltaImprovement float64    `json:"delta_improvement"`
	CreatedAt        time.Time  `json:"created_at"`
	TutorName        string     `json:"tutor_name,omitempty"`
	TutorPic         string     `json:"tutor_pic,omitempty"`
	SessionDate      *time.Time `json:"session_date,omitempty"`
}

type SubjectProgress struct {
	Sessions       int     `json:"sessions"`
	AvgImprovement float64 `json:"avg_improvement"`
	LatestLevel    int     `json:"latest_level"`
}

type StudentOutcomes struct {
	OutcomesBySubject map[string][]StudentOutcome `json:"outcomes_by_subject"`
	SubjectProgress   map[string]SubjectProgress  `json:"subject_progress"`
	TotalOutcomes     int                         `json:"total_outcomes"`
}

// Review is a Feedback as shown to its tutor.
type Review struct {
	ID            string     `json:"id"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"created_at"`
	StudentName   string     `json:"student_name,omitempty"`
	BookingStatus string     `json:"booking_status,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
}

type TutorReviews struct {
	Feedback           []Review    `json:"feedback"`
	Total              int         `json:"total"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}
