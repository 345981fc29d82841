package resource

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

// Types
const (
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeLink     = "link"
)

// allSubjects disables the subject filter.
const allSubjects = "All"

var (
	// errors
	ErrNotFound = core.NotFound("resource not found or unauthorized")
)

type Resource struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	URL         string         `json:"url"`
	Description string         `json:"description"`
	Subject     string         `json:"subject"`
	UploadedBy  string         `json:"-"` // tutor ID
	Uploader    *tutor.Summary `json:"uploaded_by"`
	CreatedAt   time.Time      `json:"created_at"` // UTC
	UpdatedAt   time.Time      `json:"updated_at"` // UTC
}

type NewResource struct {
	Title       string `json:"title" validate:"required,notblank"`
	Type        string `json:"type" validate:"required,oneof=video document link"`
	URL         string `json:"url" validate:"required,notblank"`
	Description string `json:"description"`
	Subject     string `json:"subject" validate:"required,notblank"`
}

// Validate checks nr then trims it; only the type is normalized beforehand.
func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Type = core.CleanString(nr.Type, true /* lower */)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	nr.Title = core.CleanString(nr.Title)
	nr.URL = core.CleanString(nr.URL)
	nr.Description = core.CleanString(nr.Description)
	nr.Subject = core.CleanString(nr.Subject)
	return nil
}

type (
	Repository interface {
		CreateResource(ctx context.Context, r Resource) (Resource, error)
		// QueryResources returns the resources of a subject ("" for all), newest first.
		QueryResources(ctx context.Context, subject string) ([]Resource, error)
		// DeleteResource deletes the resource `id` uploaded by `tutorID`, or returns ErrNotFound.
		DeleteResource(ctx context.Context, id, tutorID string) error
	}

	TutorService interface {
		GetByID(ctx context.Context, id string) (tutor.Tutor, error)
		GetByUserID(ctx context.Context, userID string) (tutor.Tutor, error)
	}

	Service struct {
		repo   Repository
		tutors TutorService
	}
)

func NewService(repo Repository, tutors TutorService) *Service {
	return &Service{repo: repo, tutors: tutors}
}

func (svc *Service) List(ctx context.Context, subject string) ([]Resource, error) {
	subject = core.CleanString(subject)
	if subject == allSubjects {
		subject = ""
	}
	resources, err := svc.repo.QueryResources(ctx, subject)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	uploaders := make(map[string]*tutor.Summary)
	for i, r := range resources {
		summary, ok := uploaders[r.UploadedBy]
		if !ok {
			t, err := svc.tutors.GetByID(ctx, r.UploadedBy)
			if err != nil && errors.Cause(err) != tutor.ErrNotFound {
				return nil, errors.Wrap(err, "finding tutor by ID")
			} else if err == nil {
				summary = t.Summary()
			}
			uploaders[r.UploadedBy] = summary
		}
		resources[i].Uploader = summary
	}
	if resources == nil {
		resources = []Resource{}
	}
	return resources, nil
}

// Share publishes a resource on behalf of the tutor User.
func (svc *Service) Share(ctx context.Context, usr user.User, nr NewResource) (Resource, error) {
	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return Resource{}, err
	}

	now := time.Now().UTC()
	r, err := svc.repo.CreateResource(ctx, Resource{
		Title:       nr.Title,
		Type:        nr.Type,
		URL:         nr.URL,
		Description: nr.Description,
		Subject:     nr.Subject,
		UploadedBy:  t.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Resource{}, errors.Wrap(err, "creating resource")
	}
	r.Uploader = t.Summary()
	return r, nil
}

// Delete removes a resource shared by the tutor User.
func (svc *Service) Delete(ctx context.Context, usr user.User, id string) error {
	t, err := svc.tutors.GetByUserID(ctx, usr.ID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteResource(ctx, id, t.ID)
}
