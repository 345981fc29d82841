package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/resource"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

// DB is an in-memory store used in development & tests.
// One lock guards every table so that multi-table writes are atomic.
type DB struct {
	mu  sync.RWMutex
	seq int64

	users     map[string]*userRow
	tutors    map[string]*tutorRow
	students  map[string]*studentRow
	bookings  map[string]*bookingRow
	messages  map[string]*messageRow
	feedbacks map[string]*feedbackRow
	outcomes  map[string]*outcomeRow
	resources map[string]*resourceRow
}

// rows keep their insertion sequence to break ordering ties deterministically
type (
	userRow struct {
		seq int64
		v   user.User
	}
	tutorRow struct {
		seq int64
		v   tutor.Tutor
	}
	studentRow struct {
		seq int64
		v   student.Student
	}
	bookingRow struct {
		seq int64
		v   booking.Booking
	}
	messageRow struct {
		seq int64
		v   chat.Message
	}
	feedbackRow struct {
		seq int64
		v   feedback.Feedback
	}
	outcomeRow struct {
		seq int64
		v   feedback.Outcome
	}
	resourceRow struct {
		seq int64
		v   resource.Resource
	}
)

func Open() *DB {
	db := new(DB)
	db.reset()
	return db
}

// Reset drops every record.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.users = make(map[string]*userRow)
	db.tutors = make(map[string]*tutorRow)
	db.students = make(map[string]*studentRow)
	db.bookings = make(map[string]*bookingRow)
	db.messages = make(map[string]*messageRow)
	db.feedbacks = make(map[string]*feedbackRow)
	db.outcomes = make(map[string]*outcomeRow)
	db.resources = make(map[string]*resourceRow)
}

// next must be called with the write lock held.
func (db *DB) next() (string, int64) {
	db.seq++
	return uuid.NewString(), db.seq
}
