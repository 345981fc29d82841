package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email, exceptID string) bool {
	for _, r := range repo.db.users {
		if r.v.Email == email && r.v.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	var seq int64
	usr.ID, seq = repo.db.next()
	repo.db.users[usr.ID] = &userRow{seq: seq, v: usr}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.users[id]; ok {
		return r.v, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, r := range repo.db.users {
		if r.v.Email == email {
			return r.v, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	rows := make([]*userRow, 0, len(repo.db.users))
	for _, r := range repo.db.users {
		u := r.v
		if search != "" && !(strings.Contains(strings.ToLower(u.Name), search) || strings.Contains(u.Email, search)) {
			continue
		}
		if len(filter.Roles) > 0 && !core.Contains(filter.Roles, u.Role) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		rows = append(rows, r)
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.Slice(rows, func(i, j int) bool {
		for _, ord := range orderings {
			if c := compareUsers(rows[i].v, rows[j].v, ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return rows[i].seq > rows[j].seq
	})

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.v)
	}
	return users, nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return compareTimes(a.LastLogin, b.LastLogin)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *userRepository) CountUsers(_ context.Context, roles ...string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if len(roles) == 0 {
		return len(repo.db.users), nil
	}
	var n int
	for _, r := range repo.db.users {
		if core.Contains(roles, r.v.Role) {
			n++
		}
	}
	return n, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	usr.CreatedAt = r.v.CreatedAt
	r.v = usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, id)
	return nil
}
