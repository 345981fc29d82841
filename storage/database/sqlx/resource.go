package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/resource"
)

const resourceColumns = "id, title, type, url, description, subject, uploaded_by, created_at, updated_at"

type resourceRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Type        string    `db:"type"`
	URL         string    `db:"url"`
	Description string    `db:"description"`
	Subject     string    `db:"subject"`
	UploadedBy  string    `db:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r resourceRow) resource() resource.Resource {
	return resource.Resource{
		ID:          r.ID,
		Title:       r.Title,
		Type:        r.Type,
		URL:         r.URL,
		Description: r.Description,
		Subject:     r.Subject,
		UploadedBy:  r.UploadedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, r resource.Resource) (resource.Resource, error) {
	r.ID = uuid.NewString()
	row := resourceRow{
		ID:          r.ID,
		Title:       r.Title,
		Type:        r.Type,
		URL:         r.URL,
		Description: r.Description,
		Subject:     r.Subject,
		UploadedBy:  r.UploadedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	q := `INSERT INTO resources (` + resourceColumns + `)
		VALUES (:id, :title, :type, :url, :description, :subject, :uploaded_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return r, nil
}

func (repo *resourceRepository) QueryResources(ctx context.Context, subject string) ([]resource.Resource, error) {
	var where conds
	if subject != "" {
		where.add("subject = ?", subject)
	}
	q := `SELECT ` + resourceColumns + ` FROM resources` + where.String() + ` ORDER BY created_at DESC`
	var rows []resourceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	resources := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		resources = append(resources, r.resource())
	}
	return resources, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id, tutorID string) error {
	if !isUUID(id) || !isUUID(tutorID) {
		return resource.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1 AND uploaded_by = $2`, id, tutorID)
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return resource.ErrNotFound
	}
	return nil
}
