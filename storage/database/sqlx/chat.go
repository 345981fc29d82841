package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mwalimu/core/chat"
)

type messageRow struct {
	ID        string    `db:"id"`
	BookingID string    `db:"booking_id"`
	SenderID  string    `db:"sender_id"`
	Content   string    `db:"content"`
	ReadAt    null.Time `db:"read_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) message() chat.Message {
	return chat.Message{
		ID:        r.ID,
		BookingID: r.BookingID,
		SenderID:  r.SenderID,
		Content:   r.Content,
		ReadAt:    r.ReadAt.Ptr(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	m.ID = uuid.NewString()
	r := messageRow{
		ID:        m.ID,
		BookingID: m.BookingID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		ReadAt:    null.TimeFromPtr(m.ReadAt),
		CreatedAt: m.CreatedAt.UTC(),
	}
	q := `INSERT INTO messages (id, booking_id, sender_id, content, read_at, created_at)
		VALUES (:id, :booking_id, :sender_id, :content, :read_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, r); err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *messageRepository) QueryMessages(ctx context.Context, bookingID string, limit int) ([]chat.Message, error) {
	if !isUUID(bookingID) {
		return []chat.Message{}, nil
	}
	q := `SELECT id, booking_id, sender_id, content, read_at, created_at FROM messages
		WHERE booking_id = $1 ORDER BY created_at`
	args := []interface{}{bookingID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.message())
	}
	return msgs, nil
}
