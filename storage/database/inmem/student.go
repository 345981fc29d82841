package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) byUserID(userID string) *studentRow {
	for _, r := range repo.db.students {
		if r.v.UserID == userID {
			return r
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.byUserID(s.UserID) != nil {
		return student.Student{}, errors.New("student profile already exists")
	}
	var seq int64
	s.ID, seq = repo.db.next()
	s.SubjectsInterested = append([]string{}, s.SubjectsInterested...)
	repo.db.students[s.ID] = &studentRow{seq: seq, v: s}
	return s, nil
}

func (repo *studentRepository) GetStudentByUserID(_ context.Context, userID string) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r := repo.byUserID(userID); r != nil {
		return r.v, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.students[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.CreatedAt = r.v.CreatedAt
	r.v = s
	return s, nil
}

func (repo *studentRepository) DeleteStudentByUserID(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if r := repo.byUserID(userID); r != nil {
		delete(repo.db.students, r.v.ID)
	}
	return nil
}
