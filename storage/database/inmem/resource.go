package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mwalimu/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(_ context.Context, r resource.Resource) (resource.Resource, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var seq int64
	r.ID, seq = repo.db.next()
	r.Uploader = nil
	repo.db.resources[r.ID] = &resourceRow{seq: seq, v: r}
	return r, nil
}

func (repo *resourceRepository) QueryResources(_ context.Context, subject string) ([]resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*resourceRow, 0)
	for _, r := range repo.db.resources {
		if subject == "" || r.v.Subject == subject {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	resources := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		resources = append(resources, r.v)
	}
	return resources, nil
}

func (repo *resourceRepository) DeleteResource(_ context.Context, id, tutorID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.resources[id]
	if !ok || r.v.UploadedBy != tutorID {
		return resource.ErrNotFound
	}
	delete(repo.db.resources, id)
	return nil
}
