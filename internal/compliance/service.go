// internal/compliance/service.go
package compliance

import (
	"context"

	"rpas-compliance/internal/checklist"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/metrics"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/status"

	"github.com/google/uuid"
)

// Service manages compliance templates and the applications tracked against
// them. Progress and transition semantics mirror the SFOC workflow.
type Service struct {
	store  docstore.Store
	logger logger.Logger
}

func NewService(store docstore.Store, log logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// CreateTemplate stores a reusable requirement template.
func (s *Service) CreateTemplate(ctx context.Context, tmpl *models.ComplianceTemplate, actor string) (*models.ComplianceTemplate, error) {
	if tmpl.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("create compliance template")
	}
	tmpl.ID = uuid.New().String()
	for i := range tmpl.Requirements {
		if tmpl.Requirements[i].ID == "" {
			tmpl.Requirements[i].ID = uuid.New().String()
		}
	}

	data, err := docstore.Encode(tmpl)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionComplianceTemplates,
		ID:         tmpl.ID,
		OrgID:      tmpl.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	tmpl.CreatedAt = stored.CreatedAt
	return tmpl, nil
}

// GetTemplate loads one template, enforcing the org scope.
func (s *Service) GetTemplate(ctx context.Context, orgID, id string) (*models.ComplianceTemplate, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionComplianceTemplates, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionComplianceTemplates, id)
	}
	var tmpl models.ComplianceTemplate
	if err := docstore.Decode(doc.Data, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// CreateApplication starts tracking an application against a template. Every
// template requirement is materialized as a checklist item in the same
// transaction; non-required requirements become not_applicable so item counts
// stay stable.
func (s *Service) CreateApplication(ctx context.Context, orgID, templateID, title, actor string) (*models.ComplianceApplication, []models.ChecklistItem, error) {
	tmpl, err := s.GetTemplate(ctx, orgID, templateID)
	if err != nil {
		return nil, nil, err
	}

	app := &models.ComplianceApplication{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		TemplateID:     templateID,
		Title:          title,
		Status:         status.StatusDraft,
	}

	items := make([]models.ChecklistItem, 0, len(tmpl.Requirements))
	for _, req := range tmpl.Requirements {
		item := models.ChecklistItem{
			ID:                  uuid.New().String(),
			OrganizationID:      orgID,
			ParentApplicationID: app.ID,
			RequirementID:       req.ID,
			Category:            req.Category,
			Label:               req.Label,
		}
		if req.Required {
			item.Status = status.ItemNotStarted
			item.IsRequired = true
		} else {
			item.Status = status.ItemNotApplicable
		}
		items = append(items, item)
	}
	app.PercentComplete = checklist.PercentComplete(items)

	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		appData, err := docstore.Encode(app)
		if err != nil {
			return err
		}
		if err := tx.Create(&docstore.Document{
			Collection: docstore.CollectionComplianceApplications,
			ID:         app.ID,
			OrgID:      orgID,
			Data:       appData,
			CreatedBy:  actor,
		}); err != nil {
			return err
		}

		for i := range items {
			itemData, err := docstore.Encode(&items[i])
			if err != nil {
				return err
			}
			if err := tx.Create(&docstore.Document{
				Collection: docstore.CollectionChecklistItems,
				ID:         items[i].ID,
				OrgID:      orgID,
				Data:       itemData,
				CreatedBy:  actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("compliance application created", map[string]interface{}{
		"applicationId": app.ID,
		"templateId":    templateID,
		"items":         len(items),
	})
	return app, items, nil
}

// TransitionStatus applies a validated status change to a compliance
// application.
func (s *Service) TransitionStatus(ctx context.Context, orgID, applicationID, requested, actor string) (*models.ComplianceApplication, error) {
	var app models.ComplianceApplication

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionComplianceApplications, applicationID)
		if err != nil {
			return err
		}
		if doc.OrgID != orgID {
			return apperrors.NewNotFoundError(docstore.CollectionComplianceApplications, applicationID)
		}
		if err := docstore.Decode(doc.Data, &app); err != nil {
			return err
		}

		if err := status.ValidateTransition(status.ComplianceRegistry, app.Status, requested); err != nil {
			metrics.TransitionAttempts.WithLabelValues("compliance", "rejected").Inc()
			return err
		}

		app.Status = requested
		app.UpdatedBy = actor
		doc.Data, err = docstore.Encode(&app)
		if err != nil {
			return err
		}
		doc.UpdatedBy = actor
		return tx.Update(doc)
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionAttempts.WithLabelValues("compliance", "applied").Inc()
	return &app, nil
}

// UpdateItem mutates one checklist item and recomputes the application's
// completion percentage transactionally.
func (s *Service) UpdateItem(ctx context.Context, orgID, applicationID, itemID, requested, actor string) (*models.ChecklistItem, error) {
	var item models.ChecklistItem

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		itemDoc, err := tx.Get(docstore.CollectionChecklistItems, itemID)
		if err != nil {
			return err
		}
		if itemDoc.OrgID != orgID {
			return apperrors.NewNotFoundError(docstore.CollectionChecklistItems, itemID)
		}
		if err := docstore.Decode(itemDoc.Data, &item); err != nil {
			return err
		}
		if item.ParentApplicationID != applicationID {
			return apperrors.NewNotFoundError(docstore.CollectionChecklistItems, itemID)
		}

		if err := status.ValidateTransition(status.ChecklistRegistry, item.Status, requested); err != nil {
			return err
		}
		item.Status = requested
		item.UpdatedBy = actor

		itemDoc.Data, err = docstore.Encode(&item)
		if err != nil {
			return err
		}
		itemDoc.UpdatedBy = actor
		if err := tx.Update(itemDoc); err != nil {
			return err
		}

		itemDocs, err := tx.Query(docstore.Query{
			Collection: docstore.CollectionChecklistItems,
			OrgID:      orgID,
			Filters:    []docstore.Filter{{Field: "parentApplicationId", Value: applicationID}},
		})
		if err != nil {
			return err
		}
		items := make([]models.ChecklistItem, 0, len(itemDocs))
		for _, d := range itemDocs {
			var cur models.ChecklistItem
			if err := docstore.Decode(d.Data, &cur); err != nil {
				return err
			}
			if cur.ID == item.ID {
				cur = item
			}
			items = append(items, cur)
		}

		appDoc, err := tx.Get(docstore.CollectionComplianceApplications, applicationID)
		if err != nil {
			return err
		}
		var app models.ComplianceApplication
		if err := docstore.Decode(appDoc.Data, &app); err != nil {
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
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetApplication loads one compliance application, enforcing the org scope.
func (s *Service) GetApplication(ctx context.Context, orgID, id string) (*models.ComplianceApplication, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionComplianceApplications, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionComplianceApplications, id)
	}
	var app models.ComplianceApplication
	if err := docstore.Decode(doc.Data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
