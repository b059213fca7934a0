package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// maxTaskTitles bounds the seed task list a template carries, mirroring the 10-entry cap the validation package
// applies to tag-shaped arrays elsewhere.
const maxTaskTitles = 10

// templateStore is the slice of store.TemplateRepository the service needs.
type templateStore interface {
	Create(ctx context.Context, t store.Template) error
	Get(ctx context.Context, templateID string) (store.Template, error)
	Update(ctx context.Context, ownerID, templateID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, ownerID, templateID string) error
	ListByOwner(ctx context.Context, ownerID string, page store.Page) ([]store.Template, string, error)
}

// TemplateService implements CRUD for reusable quest templates (spec.md §3's `TEMPLATE#<id>` row), a sibling of the
// quest lifecycle Service rather than a method on it since templates have no state machine of their own.
type TemplateService struct {
	templates templateStore
}

func NewTemplateService(templates *store.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

// CreateTemplateRequest is the input for TemplateService.Create.
type CreateTemplateRequest struct {
	Title        string
	Description  string
	Privacy      store.TemplatePrivacy
	DurationDays int
	TaskTitles   []string
}

func (s *TemplateService) Create(ctx context.Context, ownerID string, req CreateTemplateRequest) (store.Template, error) {
	var verrs validation.Errors
	verrs.Require("title", req.Title)
	verrs.Enum("privacy", string(req.Privacy), string(store.TemplatePublic), string(store.TemplateFollowers), string(store.TemplatePrivate))
	verrs.IntRange("durationDays", req.DurationDays, 1, 365)
	if len(req.TaskTitles) > maxTaskTitles {
		verrs.Add("taskTitles", fmt.Sprintf("must have at most %d entries", maxTaskTitles))
	}
	if err := verrs.Err("template is invalid"); err != nil {
		return store.Template{}, err
	}

	titles := make([]string, len(req.TaskTitles))
	for i, t := range req.TaskTitles {
		titles[i] = validation.Sanitize(t)
	}

	now := time.Now().UTC()
	t := store.Template{
		TemplateID:   uuid.NewString(),
		OwnerID:      ownerID,
		Title:        validation.Sanitize(req.Title),
		Description:  validation.Sanitize(req.Description),
		Privacy:      req.Privacy,
		DurationDays: req.DurationDays,
		TaskTitles:   titles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return store.Template{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// Get fetches a template by id, enforcing its privacy setting against the caller. A public template is visible to
// anyone; followers and private templates are visible only to their owner, since this module carries no follow
// graph to resolve the "followers" tier against.
func (s *TemplateService) Get(ctx context.Context, callerID, templateID string) (store.Template, error) {
	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return store.Template{}, translateTemplateNotFound(err)
	}
	if t.Privacy != store.TemplatePublic && t.OwnerID != callerID {
		return store.Template{}, apierrors.New(apierrors.NotFound, "template not found")
	}
	return t, nil
}

// List pages through the caller's own templates in ascending template-id order (not creation order).
func (s *TemplateService) List(ctx context.Context, ownerID string, page store.Page) ([]store.Template, string, error) {
	return s.templates.ListByOwner(ctx, ownerID, page)
}

// UpdateTemplateRequest is the input for TemplateService.Update; zero-value fields are left unchanged.
type UpdateTemplateRequest struct {
	Title        string
	Description  string
	Privacy      store.TemplatePrivacy
	DurationDays *int
	TaskTitles   []string
}

func (s *TemplateService) Update(ctx context.Context, callerID, templateID string, req UpdateTemplateRequest) (store.Template, error) {
	var verrs validation.Errors
	if req.Privacy != "" {
		verrs.Enum("privacy", string(req.Privacy), string(store.TemplatePublic), string(store.TemplateFollowers), string(store.TemplatePrivate))
	}
	if req.DurationDays != nil {
		verrs.IntRange("durationDays", *req.DurationDays, 1, 365)
	}
	if len(req.TaskTitles) > maxTaskTitles {
		verrs.Add("taskTitles", fmt.Sprintf("must have at most %d entries", maxTaskTitles))
	}
	if err := verrs.Err("template update is invalid"); err != nil {
		return store.Template{}, err
	}

	var updated store.Template
	err := store.WithRetry(ctx, func() error {
		t, err := s.templates.Get(ctx, templateID)
		if err != nil {
			return translateTemplateNotFound(err)
		}
		if t.OwnerID != callerID {
			return apierrors.New(apierrors.PermissionDenied, "only the owner may edit this template")
		}

		title := t.Title
		if req.Title != "" {
			title = validation.Sanitize(req.Title)
		}
		description := t.Description
		if req.Description != "" {
			description = validation.Sanitize(req.Description)
		}
		privacy := t.Privacy
		if req.Privacy != "" {
			privacy = req.Privacy
		}
		durationDays := t.DurationDays
		if req.DurationDays != nil {
			durationDays = *req.DurationDays
		}
		taskTitles := t.TaskTitles
		if req.TaskTitles != nil {
			taskTitles = make([]string, len(req.TaskTitles))
			for i, tt := range req.TaskTitles {
				taskTitles[i] = validation.Sanitize(tt)
			}
		}
		now := time.Now().UTC()

		updateErr := s.templates.Update(ctx, t.OwnerID, templateID, t.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET title = :ti, description = :d, privacy = :p, durationDays = :dd, taskTitles = :tt, updatedAt = :u", nil, map[string]any{
				":ti": title,
				":d":  description,
				":p":  privacy,
				":dd": durationDays,
				":tt": taskTitles,
				":u":  now,
			}, nil
		})
		if updateErr != nil {
			return updateErr
		}

		updated = t
		updated.Title, updated.Description, updated.Privacy = title, description, privacy
		updated.DurationDays, updated.TaskTitles, updated.UpdatedAt = durationDays, taskTitles, now
		updated.Version++
		return nil
	})
	return updated, err
}

func (s *TemplateService) Delete(ctx context.Context, callerID, templateID string) error {
	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return translateTemplateNotFound(err)
	}
	if t.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the owner may delete this template")
	}
	return s.templates.Delete(ctx, callerID, templateID)
}

func translateTemplateNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.New(apierrors.NotFound, "template not found")
	}
	return fmt.Errorf("get template: %w", err)
}
