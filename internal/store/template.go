package store

import (
	"context"
	"time"
)

// TemplatePrivacy controls who may discover a quest template by id (spec.md §3).
type TemplatePrivacy string

const (
	TemplatePublic    TemplatePrivacy = "public"
	TemplateFollowers TemplatePrivacy = "followers"
	TemplatePrivate   TemplatePrivacy = "private"
)

// Template is a reusable quest template row at USER#<ownerId>/TEMPLATE#<id>, owner-scoped per spec.md §3, with a
// GSI2 projection onto a single fixed partition so it can also be fetched by id alone.
type Template struct {
	PK           string          `dynamodbav:"PK"`
	SK           string          `dynamodbav:"SK"`
	GSI2PK       string          `dynamodbav:"GSI2PK"`
	GSI2SK       string          `dynamodbav:"GSI2SK"`
	TemplateID   string          `dynamodbav:"templateId"`
	OwnerID      string          `dynamodbav:"ownerId"`
	Title        string          `dynamodbav:"title"`
	Description  string          `dynamodbav:"description,omitempty"`
	Privacy      TemplatePrivacy `dynamodbav:"privacy"`
	DurationDays int             `dynamodbav:"durationDays"`
	TaskTitles   []string        `dynamodbav:"taskTitles"`
	CreatedAt    time.Time       `dynamodbav:"createdAt"`
	UpdatedAt    time.Time       `dynamodbav:"updatedAt"`
	Version      int64           `dynamodbav:"version"`
}

// TemplateRepository is the typed Core Store surface for quest templates.
type TemplateRepository struct {
	c *Client
}

func NewTemplateRepository(c *Client) *TemplateRepository { return &TemplateRepository{c: c} }

func (r *TemplateRepository) Create(ctx context.Context, t Template) error {
	t.PK, t.SK = UserPK(t.OwnerID), TemplateSK(t.TemplateID)
	t.GSI2PK, t.GSI2SK = TemplateLookupGSI2PK(), TemplateLookupGSI2SK(t.TemplateID)
	t.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, t)
}

// Get fetches a template by id alone, via the GSI2 lookup projection, independent of its owner.
func (r *TemplateRepository) Get(ctx context.Context, templateID string) (Template, error) {
	res, err := r.c.QueryIndex(ctx, r.c.CoreTable, "GSI2", "GSI2PK", "GSI2SK", TemplateLookupGSI2PK(), TemplateLookupGSI2SK(templateID), Page{Limit: 1})
	if err != nil {
		return Template{}, err
	}
	if len(res.Items) == 0 {
		return Template{}, ErrNotFound
	}
	var t Template
	if err := unmarshalInto(res.Items[0], &t); err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *TemplateRepository) Update(ctx context.Context, ownerID, templateID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.CoreTable, Key{PK: UserPK(ownerID), SK: TemplateSK(templateID)}, expectedVersion, buildUpdate)
}

func (r *TemplateRepository) Delete(ctx context.Context, ownerID, templateID string) error {
	return r.c.Delete(ctx, r.c.CoreTable, Key{PK: UserPK(ownerID), SK: TemplateSK(templateID)})
}

// ListByOwner pages through a user's own templates in ascending template-id order; ids are random UUIDs, so this is
// not creation order.
func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID string, page Page) ([]Template, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(ownerID), "TEMPLATE#", page)
	if err != nil {
		return nil, "", err
	}
	templates := make([]Template, 0, len(res.Items))
	for _, item := range res.Items {
		var t Template
		if err := unmarshalInto(item, &t); err != nil {
			return nil, "", err
		}
		templates = append(templates, t)
	}
	return templates, res.NextCursor, nil
}
