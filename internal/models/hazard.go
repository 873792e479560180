// internal/models/hazard.go
package models

import "time"

// Hazard is a formal hazard assessment (FHA) record. RiskScore is always
// recomputed as Likelihood*Severity on write, never independently settable.
type Hazard struct {
	ID                 string                 `json:"id"`
	OrganizationID     string                 `json:"organizationId"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description,omitempty"`
	Consequences       []string               `json:"consequences,omitempty"`
	Likelihood         int                    `json:"likelihood"`
	Severity           int                    `json:"severity"`
	RiskScore          int                    `json:"riskScore"`
	RiskLevel          string                 `json:"riskLevel"`
	ControlMeasures    []string               `json:"controlMeasures,omitempty"`
	ResidualLikelihood int                    `json:"residualLikelihood,omitempty"`
	ResidualSeverity   int                    `json:"residualSeverity,omitempty"`
	ResidualRiskScore  int                    `json:"residualRiskScore,omitempty"`
	ResidualRiskLevel  string                 `json:"residualRiskLevel,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	Status             string                 `json:"status"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
	CreatedBy          string                 `json:"createdBy"`
	UpdatedBy          string                 `json:"updatedBy"`
}

// MasterHazard is a library hazard template. Version increments only when a
// content field changes; each bump writes one immutable HazardVersion snapshot.
type MasterHazard struct {
	Hazard
	Version int `json:"version"`
}

// HazardVersion is an immutable snapshot of a MasterHazard at a given version.
type HazardVersion struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	MasterHazardID string    `json:"masterHazardId"`
	Version        int       `json:"version"`
	Content        Hazard    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy"`
}
