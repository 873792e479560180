// internal/activity/service.go
package activity

import (
	"context"
	"sort"

	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"

	"github.com/google/uuid"
)

// Service records comments and activity log entries. Both are append-only:
// activities are never mutated at all, and comments only allow their Resolved
// and Pinned flags to change after creation.
type Service struct {
	store  docstore.Store
	logger logger.Logger
}

func NewService(store docstore.Store, log logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// AddComment appends a comment to an entity.
func (s *Service) AddComment(ctx context.Context, c *models.Comment, actor string) (*models.Comment, error) {
	if c.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("add comment")
	}
	if c.EntityType == "" || c.EntityID == "" {
		return nil, apperrors.NewInvalidInputError("comment requires entityType and entityId")
	}
	c.ID = uuid.New().String()
	c.CreatedBy = actor

	data, err := docstore.Encode(c)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionComments,
		ID:         c.ID,
		OrgID:      c.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	c.CreatedAt = stored.CreatedAt
	return c, nil
}

// SetCommentFlags updates the only mutable comment fields. Any attempt to
// change other content goes through here or not at all.
func (s *Service) SetCommentFlags(ctx context.Context, orgID, commentID string, resolved, pinned bool, actor string) (*models.Comment, error) {
	var c models.Comment

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionComments, commentID)
		if err != nil {
			return err
		}
		if doc.OrgID != orgID {
			return apperrors.NewNotFoundError(docstore.CollectionComments, commentID)
		}
		if err := docstore.Decode(doc.Data, &c); err != nil {
			return err
		}

		c.Resolved = resolved
		c.Pinned = pinned
		doc.Data, err = docstore.Encode(&c)
		if err != nil {
			return err
		}
		doc.UpdatedBy = actor
		return tx.Update(doc)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCommentBody always fails: the body is immutable after creation.
func (s *Service) UpdateCommentBody(ctx context.Context, orgID, commentID, body string) error {
	return apperrors.NewImmutableFieldError("body")
}

// Record appends an activity log entry. Entries are never updated or deleted.
func (s *Service) Record(ctx context.Context, a *models.Activity, actor string) (*models.Activity, error) {
	if a.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("record activity")
	}
	if a.Action == "" {
		return nil, apperrors.NewInvalidInputError("activity requires an action")
	}
	a.ID = uuid.New().String()
	a.CreatedBy = actor

	data, err := docstore.Encode(a)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionActivities,
		ID:         a.ID,
		OrgID:      a.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	a.CreatedAt = stored.CreatedAt
	return a, nil
}

// ListComments returns an entity's comments, pinned first then newest first.
func (s *Service) ListComments(ctx context.Context, orgID, entityType, entityID string) ([]models.Comment, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionComments,
		OrgID:      orgID,
		Filters: []docstore.Filter{
			{Field: "entityType", Value: entityType},
			{Field: "entityId", Value: entityID},
		},
	})
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		var c models.Comment
		if err := docstore.Decode(doc.Data, &c); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Pinned != comments[j].Pinned {
			return comments[i].Pinned
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// ListActivities returns an entity's audit trail, newest first.
func (s *Service) ListActivities(ctx context.Context, orgID, entityType, entityID string) ([]models.Activity, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionActivities,
		OrgID:      orgID,
		Filters: []docstore.Filter{
			{Field: "entityType", Value: entityType},
			{Field: "entityId", Value: entityID},
		},
	})
	if err != nil {
		return nil, err
	}
	activities := make([]models.Activity, 0, len(docs))
	for _, doc := range docs {
		var a models.Activity
		if err := docstore.Decode(doc.Data, &a); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	return activities, nil
}
