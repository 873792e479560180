// internal/sfoc/service.go
package sfoc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rpas-compliance/internal/checklist"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/metrics"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/status"
	"rpas-compliance/pkg/catalog"

	"github.com/google/uuid"
)

const statsTTL = 5 * time.Minute

// Cache is the subset of the Redis client the service uses for dashboard
// stats.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Service implements SFOC application workflows on top of the document store.
type Service struct {
	store   docstore.Store
	watcher docstore.Watcher
	catalog *catalog.Catalog
	cache   Cache
	logger  logger.Logger
}

// NewService creates an SFOC service. watcher and cache may be nil; the
// corresponding features (live subscriptions, cached stats) degrade
// gracefully.
func NewService(store docstore.Store, watcher docstore.Watcher, cat *catalog.Catalog, cache Cache, log logger.Logger) *Service {
	return &Service{
		store:   store,
		watcher: watcher,
		catalog: cat,
		cache:   cache,
		logger:  log,
	}
}

// CreateApplication creates an application and its full checklist expansion in
// one transaction. Complexity is resolved from the trigger set; every catalog
// entry becomes an item, non-applying ones as not_applicable.
func (s *Service) CreateApplication(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if input.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("create sfoc application")
	}

	app := &models.SFOCApplication{
		ID:              uuid.New().String(),
		OrganizationID:  input.OrganizationID,
		Title:           input.Title,
		Status:          status.StatusDraft,
		ComplexityLevel: status.ComplexityForTriggers(input.Triggers),
		Triggers:        input.Triggers,
		Options:         input.Options,
		AircraftID:      input.AircraftID,
	}

	items := checklist.Expand(s.catalog, app.ID, input.Triggers, input.Options)
	app.PercentComplete = checklist.PercentComplete(items)

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		appData, err := docstore.Encode(app)
		if err != nil {
			return err
		}
		appDoc := &docstore.Document{
			Collection: docstore.CollectionSFOCApplications,
			ID:         app.ID,
			OrgID:      input.OrganizationID,
			Data:       appData,
			CreatedBy:  input.Actor,
		}
		if err := tx.Create(appDoc); err != nil {
			return err
		}

		for i := range items {
			items[i].ID = uuid.New().String()
			items[i].OrganizationID = input.OrganizationID
			itemData, err := docstore.Encode(&items[i])
			if err != nil {
				return err
			}
			itemDoc := &docstore.Document{
				Collection: docstore.CollectionChecklistItems,
				ID:         items[i].ID,
				OrgID:      input.OrganizationID,
				Data:       itemData,
				CreatedBy:  input.Actor,
			}
			if err := tx.Create(itemDoc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to create sfoc application", map[string]interface{}{
			"organizationId": input.OrganizationID,
		})
		return nil, err
	}

	s.invalidateStats(ctx, input.OrganizationID)
	s.logger.Info("sfoc application created", map[string]interface{}{
		"applicationId":  app.ID,
		"organizationId": input.OrganizationID,
		"complexity":     app.ComplexityLevel,
		"checklistItems": len(items),
	})
	return &CreateOutput{Application: app, Checklist: items}, nil
}

// GetApplication loads one application, enforcing the org scope.
func (s *Service) GetApplication(ctx context.Context, orgID, id string) (*models.SFOCApplication, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionSFOCApplications, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionSFOCApplications, id)
	}
	var app models.SFOCApplication
	if err := docstore.Decode(doc.Data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplications returns all applications for one organization.
func (s *Service) ListApplications(ctx context.Context, orgID string) ([]models.SFOCApplication, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionSFOCApplications,
		OrgID:      orgID,
	})
	if err != nil {
		return nil, err
	}

	apps := make([]models.SFOCApplication, 0, len(docs))
	for _, doc := range docs {
		var app models.SFOCApplication
		if err := docstore.Decode(doc.Data, &app); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// TransitionStatus applies a validated status change and appends an activity
// log entry, transactionally.
func (s *Service) TransitionStatus(ctx context.Context, input *TransitionInput) (*models.SFOCApplication, error) {
	var app models.SFOCApplication

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionSFOCApplications, input.ApplicationID)
		if err != nil {
			return err
		}
		if doc.OrgID != input.OrganizationID {
			return apperrors.NewNotFoundError(docstore.CollectionSFOCApplications, input.ApplicationID)
		}
		if err := docstore.Decode(doc.Data, &app); err != nil {
			return err
		}

		if err := status.ValidateTransition(status.SFOCRegistry, app.Status, input.Status); err != nil {
			metrics.TransitionAttempts.WithLabelValues("sfoc", "rejected").Inc()
			return err
		}

		previous := app.Status
		app.Status = input.Status
		app.UpdatedBy = input.Actor
		doc.Data, err = docstore.Encode(&app)
		if err != nil {
			return err
		}
		doc.UpdatedBy = input.Actor
		if err := tx.Update(doc); err != nil {
			return err
		}

		return s.appendActivityTx(tx, input.OrganizationID, input.ApplicationID, input.Actor,
			"status_changed", map[string]interface{}{
				"from": previous,
				"to":   input.Status,
			})
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionAttempts.WithLabelValues("sfoc", "applied").Inc()
	s.invalidateStats(ctx, input.OrganizationID)
	s.logger.Info("sfoc status transition applied", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"status":        input.Status,
	})
	return &app, nil
}

// UpdateRequirementResponse mutates one checklist item and recomputes the
// parent application's completion percentage in the same transaction.
func (s *Service) UpdateRequirementResponse(ctx context.Context, input *ResponseInput) (*models.ChecklistItem, error) {
	var item models.ChecklistItem

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		itemDoc, err := tx.Get(docstore.CollectionChecklistItems, input.ItemID)
		if err != nil {
			return err
		}
		if itemDoc.OrgID != input.OrganizationID {
			return apperrors.NewNotFoundError(docstore.CollectionChecklistItems, input.ItemID)
		}
		if err := docstore.Decode(itemDoc.Data, &item); err != nil {
			return err
		}
		if item.ParentApplicationID != input.ApplicationID {
			return apperrors.NewNotFoundError(docstore.CollectionChecklistItems, input.ItemID)
		}

		if input.Status != "" && input.Status != item.Status {
			if err := status.ValidateTransition(status.ChecklistRegistry, item.Status, input.Status); err != nil {
				metrics.TransitionAttempts.WithLabelValues("checklist", "rejected").Inc()
				return err
			}
			item.Status = input.Status
		}
		if input.Response != "" {
			item.Response = input.Response
		}
		if input.DocumentID != "" {
			item.DocumentID = input.DocumentID
		}
		item.UpdatedBy = input.Actor

		itemDoc.Data, err = docstore.Encode(&item)
		if err != nil {
			return err
		}
		itemDoc.UpdatedBy = input.Actor
		if err := tx.Update(itemDoc); err != nil {
			return err
		}

		return s.recomputeProgressTx(tx, input.OrganizationID, input.ApplicationID, input.Actor, &item)
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionAttempts.WithLabelValues("checklist", "applied").Inc()
	s.invalidateStats(ctx, input.OrganizationID)
	return &item, nil
}

// recomputeProgressTx reloads the application's items inside the transaction
// and writes the fresh percentage back to the application document.
func (s *Service) recomputeProgressTx(tx docstore.Tx, orgID, applicationID, actor string, updated *models.ChecklistItem) error {
	appDoc, err := tx.Get(docstore.CollectionSFOCApplications, applicationID)
	if err != nil {
		return err
	}
	if appDoc.OrgID != orgID {
		return apperrors.NewNotFoundError(docstore.CollectionSFOCApplications, applicationID)
	}
	var app models.SFOCApplication
	if err := docstore.Decode(appDoc.Data, &app); err != nil {
		return err
	}

	items, err := s.itemsForApplicationTx(tx, orgID, applicationID, updated)
	if err != nil {
		return err
	}

	app.PercentComplete = checklist.PercentComplete(items)
	app.UpdatedBy = actor
	appDoc.Data, err = docstore.Encode(&app)
	if err != nil {
		return err
	}
	appDoc.UpdatedBy = actor
	return tx.Update(appDoc)
}

// itemsForApplicationTx gathers all checklist items of an application from the
// transactional view. The just-updated item replaces its stored version so the
// recomputation sees the new status.
func (s *Service) itemsForApplicationTx(tx docstore.Tx, orgID, applicationID string, updated *models.ChecklistItem) ([]models.ChecklistItem, error) {
	docs, err := tx.Query(docstore.Query{
		Collection: docstore.CollectionChecklistItems,
		OrgID:      orgID,
		Filters:    []docstore.Filter{{Field: "parentApplicationId", Value: applicationID}},
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.ChecklistItem, 0, len(docs))
	for _, doc := range docs {
		var item models.ChecklistItem
		if err := docstore.Decode(doc.Data, &item); err != nil {
			return nil, err
		}
		if updated != nil && item.ID == updated.ID {
			item = *updated
		}
		items = append(items, item)
	}
	return items, nil
}

// ListChecklist returns the checklist for one application.
func (s *Service) ListChecklist(ctx context.Context, orgID, applicationID string) ([]models.ChecklistItem, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionChecklistItems,
		OrgID:      orgID,
		Filters:    []docstore.Filter{{Field: "parentApplicationId", Value: applicationID}},
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.ChecklistItem, 0, len(docs))
	for _, doc := range docs {
		var item models.ChecklistItem
		if err := docstore.Decode(doc.Data, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AddDocument appends a file record to the application's documents
// subcollection.
func (s *Service) AddDocument(ctx context.Context, orgID, applicationID string, doc *models.ApplicationDocument) (*models.ApplicationDocument, error) {
	if _, err := s.GetApplication(ctx, orgID, applicationID); err != nil {
		return nil, err
	}

	doc.ID = uuid.New().String()
	doc.OrganizationID = orgID
	data, err := docstore.Encode(doc)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.Subcollection(docstore.CollectionSFOCApplications, applicationID, docstore.SubcollectionDocuments),
		ID:         doc.ID,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  doc.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = stored.CreatedAt
	return doc, nil
}

// AddCommunication appends an entry to the communications subcollection.
func (s *Service) AddCommunication(ctx context.Context, orgID, applicationID string, comm *models.Communication) (*models.Communication, error) {
	if _, err := s.GetApplication(ctx, orgID, applicationID); err != nil {
		return nil, err
	}

	comm.ID = uuid.New().String()
	comm.OrganizationID = orgID
	data, err := docstore.Encode(comm)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.Subcollection(docstore.CollectionSFOCApplications, applicationID, docstore.SubcollectionCommunications),
		ID:         comm.ID,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  comm.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	comm.CreatedAt = stored.CreatedAt
	return comm, nil
}

// WatchApplications subscribes to live application changes for one
// organization.
func (s *Service) WatchApplications(ctx context.Context, orgID string) (<-chan docstore.ChangeEvent, func(), error) {
	if s.watcher == nil {
		return nil, nil, apperrors.NewInternalError(fmt.Errorf("subscriptions not configured"))
	}
	return s.watcher.Watch(ctx, docstore.CollectionSFOCApplications, orgID)
}

// GetStats returns the org dashboard aggregate, cached in Redis with a short
// TTL.
func (s *Service) GetStats(ctx context.Context, orgID string) (*Stats, error) {
	key := statsKey(orgID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var stats Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	apps, err := s.ListApplications(ctx, orgID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: make(map[string]int)}
	var percentSum int
	for _, app := range apps {
		stats.Total++
		stats.ByStatus[app.Status]++
		percentSum += app.PercentComplete
	}
	if stats.Total > 0 {
		stats.AveragePercentDone = percentSum / stats.Total
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, payload, statsTTL); err != nil {
				s.logger.WithError(err).Warn("failed to cache sfoc stats", map[string]interface{}{
					"organizationId": orgID,
				})
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsKey(orgID)); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate sfoc stats cache", map[string]interface{}{
			"organizationId": orgID,
		})
	}
}

func statsKey(orgID string) string {
	return "sfoc:stats:" + orgID
}

func (s *Service) appendActivityTx(tx docstore.Tx, orgID, applicationID, actor, action string, details map[string]interface{}) error {
	entry := &models.Activity{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		EntityType:     "sfocApplication",
		EntityID:       applicationID,
		Action:         action,
		Details:        details,
		CreatedBy:      actor,
	}
	data, err := docstore.Encode(entry)
	if err != nil {
		return err
	}
	return tx.Create(&docstore.Document{
		Collection: docstore.Subcollection(docstore.CollectionSFOCApplications, applicationID, docstore.SubcollectionActivityLog),
		ID:         entry.ID,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  actor,
	})
}
