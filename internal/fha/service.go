// internal/fha/service.go
package fha

import (
	"context"
	"sort"
	"time"

	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/risk"

	"github.com/google/uuid"
)

// Service manages formal hazard assessments and the master hazard library.
type Service struct {
	store  docstore.Store
	logger logger.Logger
}

func NewService(store docstore.Store, log logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// applyDerived recomputes the derived risk fields from likelihood and
// severity. RiskScore is never accepted from the caller.
func applyDerived(h *models.Hazard) error {
	score, err := risk.Score(h.Likelihood, h.Severity)
	if err != nil {
		return err
	}
	h.RiskScore = score
	h.RiskLevel = risk.Level(score)

	if h.ResidualLikelihood != 0 || h.ResidualSeverity != 0 {
		residual, err := risk.Score(h.ResidualLikelihood, h.ResidualSeverity)
		if err != nil {
			return err
		}
		h.ResidualRiskScore = residual
		h.ResidualRiskLevel = risk.Level(residual)
	} else {
		h.ResidualRiskScore = 0
		h.ResidualRiskLevel = ""
	}
	return nil
}

// CreateHazard creates a formal hazard with derived risk fields computed.
func (s *Service) CreateHazard(ctx context.Context, hazard *models.Hazard, actor string) (*models.Hazard, error) {
	if hazard.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("create hazard")
	}
	if err := applyDerived(hazard); err != nil {
		return nil, err
	}

	hazard.ID = uuid.New().String()
	if hazard.Status == "" {
		hazard.Status = "open"
	}
	data, err := docstore.Encode(hazard)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionFormalHazards,
		ID:         hazard.ID,
		OrgID:      hazard.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	hazard.CreatedAt = stored.CreatedAt
	hazard.UpdatedAt = stored.UpdatedAt
	return hazard, nil
}

// UpdateHazard rewrites a formal hazard, recomputing derived fields.
func (s *Service) UpdateHazard(ctx context.Context, hazard *models.Hazard, actor string) (*models.Hazard, error) {
	if err := applyDerived(hazard); err != nil {
		return nil, err
	}

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionFormalHazards, hazard.ID)
		if err != nil {
			return err
		}
		if doc.OrgID != hazard.OrganizationID {
			return apperrors.NewNotFoundError(docstore.CollectionFormalHazards, hazard.ID)
		}

		doc.Data, err = docstore.Encode(hazard)
		if err != nil {
			return err
		}
		doc.UpdatedBy = actor
		return tx.Update(doc)
	})
	if err != nil {
		return nil, err
	}
	return hazard, nil
}

// GetHazard loads one formal hazard, enforcing the org scope.
func (s *Service) GetHazard(ctx context.Context, orgID, id string) (*models.Hazard, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionFormalHazards, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionFormalHazards, id)
	}
	var hazard models.Hazard
	if err := docstore.Decode(doc.Data, &hazard); err != nil {
		return nil, err
	}
	return &hazard, nil
}

// ListHazards returns all formal hazards for one organization.
func (s *Service) ListHazards(ctx context.Context, orgID string) ([]models.Hazard, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionFormalHazards,
		OrgID:      orgID,
	})
	if err != nil {
		return nil, err
	}

	hazards := make([]models.Hazard, 0, len(docs))
	for _, doc := range docs {
		var hazard models.Hazard
		if err := docstore.Decode(doc.Data, &hazard); err != nil {
			return nil, err
		}
		hazards = append(hazards, hazard)
	}
	return hazards, nil
}

// CreateMasterHazard adds a library hazard at version 1.
func (s *Service) CreateMasterHazard(ctx context.Context, master *models.MasterHazard, actor string) (*models.MasterHazard, error) {
	if master.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("create master hazard")
	}
	if err := applyDerived(&master.Hazard); err != nil {
		return nil, err
	}

	master.ID = uuid.New().String()
	master.Version = 1
	if master.Status == "" {
		master.Status = "active"
	}
	data, err := docstore.Encode(master)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionMasterFormalHazards,
		ID:         master.ID,
		OrgID:      master.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	master.CreatedAt = stored.CreatedAt
	master.UpdatedAt = stored.UpdatedAt
	return master, nil
}

// UpdateMasterHazard applies the version bump rule: a change to any content
// field increments the version and writes one immutable snapshot of the new
// content to masterFHAVersions; a workflow-only change leaves the version
// untouched and writes no snapshot.
func (s *Service) UpdateMasterHazard(ctx context.Context, master *models.MasterHazard, actor string) (*models.MasterHazard, error) {
	if err := applyDerived(&master.Hazard); err != nil {
		return nil, err
	}

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionMasterFormalHazards, master.ID)
		if err != nil {
			return err
		}
		if doc.OrgID != master.OrganizationID {
			return apperrors.NewNotFoundError(docstore.CollectionMasterFormalHazards, master.ID)
		}

		var current models.MasterHazard
		if err := docstore.Decode(doc.Data, &current); err != nil {
			return err
		}

		bumped := contentChanged(&current.Hazard, &master.Hazard)
		master.Version = current.Version
		if bumped {
			master.Version++
		}

		doc.Data, err = docstore.Encode(master)
		if err != nil {
			return err
		}
		doc.UpdatedBy = actor
		if err := tx.Update(doc); err != nil {
			return err
		}

		if !bumped {
			return nil
		}

		// Stamped here so the decoded snapshot carries the time; the
		// envelope timestamp is set by the store on write.
		snapshot := &models.HazardVersion{
			ID:             uuid.New().String(),
			OrganizationID: master.OrganizationID,
			MasterHazardID: master.ID,
			Version:        master.Version,
			Content:        master.Hazard,
			CreatedAt:      time.Now().UTC(),
			CreatedBy:      actor,
		}
		snapData, err := docstore.Encode(snapshot)
		if err != nil {
			return err
		}
		return tx.Create(&docstore.Document{
			Collection: docstore.CollectionMasterFHAVersions,
			ID:         snapshot.ID,
			OrgID:      master.OrganizationID,
			Data:       snapData,
			CreatedBy:  actor,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("master hazard updated", map[string]interface{}{
		"masterHazardId": master.ID,
		"version":        master.Version,
	})
	return master, nil
}

// GetMasterHazard loads one master hazard, enforcing the org scope.
func (s *Service) GetMasterHazard(ctx context.Context, orgID, id string) (*models.MasterHazard, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionMasterFormalHazards, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionMasterFormalHazards, id)
	}
	var master models.MasterHazard
	if err := docstore.Decode(doc.Data, &master); err != nil {
		return nil, err
	}
	return &master, nil
}

// ListVersions returns the snapshot history of one master hazard, newest
// first.
func (s *Service) ListVersions(ctx context.Context, orgID, masterID string) ([]models.HazardVersion, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionMasterFHAVersions,
		OrgID:      orgID,
		Filters:    []docstore.Filter{{Field: "masterHazardId", Value: masterID}},
	})
	if err != nil {
		return nil, err
	}

	versions := make([]models.HazardVersion, 0, len(docs))
	for _, doc := range docs {
		var v models.HazardVersion
		if err := docstore.Decode(doc.Data, &v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})
	return versions, nil
}

// GetVersion reads one snapshot for restore flows.
func (s *Service) GetVersion(ctx context.Context, orgID, masterID string, version int) (*models.HazardVersion, error) {
	versions, err := s.ListVersions(ctx, orgID, masterID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Version == version {
			return &versions[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError(docstore.CollectionMasterFHAVersions, masterID)
}
