package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core/chat"
)

type messageRepository struct {
	db *DB
}

var _ chat.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var seq int64
	m.ID, seq = repo.db.next()
	repo.db.messages[m.ID] = &messageRow{seq: seq, v: m}
	return m, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, bookingID string, limit int) ([]chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*messageRow, 0)
	for _, r := range repo.db.messages {
		if r.v.BookingID == bookingID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.v)
	}
	return msgs, nil
}
