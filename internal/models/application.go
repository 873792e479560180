// internal/models/application.go
package models

import "time"

// SFOCApplication is a Special Flight Operations Certificate application.
// Status must always be a member of the SFOC status registry.
type SFOCApplication struct {
	ID               string                 `json:"id"`
	OrganizationID   string                 `json:"organizationId"`
	Title            string                 `json:"title"`
	Status           string                 `json:"status"`
	ComplexityLevel  string                 `json:"complexityLevel"`
	Triggers         []string               `json:"triggers"`
	Options          map[string]bool        `json:"options,omitempty"`
	AircraftID       string                 `json:"aircraftId,omitempty"`
	RiskAssessmentID string                 `json:"riskAssessmentId,omitempty"`
	DeclarationID    string                 `json:"declarationId,omitempty"`
	PercentComplete  int                    `json:"percentComplete"`
	RiskFields       map[string]interface{} `json:"riskFields,omitempty"` // SAIL/GRC/ARC, stored opaquely
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
	CreatedBy        string                 `json:"createdBy"`
	UpdatedBy        string                 `json:"updatedBy"`
}

// ComplianceApplication tracks an operator's progress against a compliance template.
type ComplianceApplication struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organizationId"`
	TemplateID      string    `json:"templateId"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	PercentComplete int       `json:"percentComplete"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	CreatedBy       string    `json:"createdBy"`
	UpdatedBy       string    `json:"updatedBy"`
}

// ComplianceTemplate is a reusable set of compliance requirements.
type ComplianceTemplate struct {
	ID             string                   `json:"id"`
	OrganizationID string                   `json:"organizationId"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	Requirements   []ComplianceRequirement  `json:"requirements"`
	Published      bool                     `json:"published"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
	CreatedBy      string                   `json:"createdBy"`
	UpdatedBy      string                   `json:"updatedBy"`
}

type ComplianceRequirement struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}
