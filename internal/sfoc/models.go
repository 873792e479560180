// internal/sfoc/models.go
package sfoc

import "rpas-compliance/internal/models"

// CreateInput is the payload for creating an SFOC application.
type CreateInput struct {
	OrganizationID string          `json:"organizationId"`
	Title          string          `json:"title"`
	Triggers       []string        `json:"triggers"`
	Options        map[string]bool `json:"options,omitempty"`
	AircraftID     string          `json:"aircraftId,omitempty"`
	Actor          string          `json:"actor"`
}

// CreateOutput carries the created application and its expanded checklist.
type CreateOutput struct {
	Application *models.SFOCApplication `json:"application"`
	Checklist   []models.ChecklistItem  `json:"checklist"`
}

// TransitionInput requests a status change on an application.
type TransitionInput struct {
	OrganizationID string `json:"organizationId"`
	ApplicationID  string `json:"applicationId"`
	Status         string `json:"status"`
	Actor          string `json:"actor"`
}

// ResponseInput updates one checklist item and recomputes the parent's
// completion percentage.
type ResponseInput struct {
	OrganizationID string `json:"organizationId"`
	ApplicationID  string `json:"applicationId"`
	ItemID         string `json:"itemId"`
	Status         string `json:"status,omitempty"`
	Response       string `json:"response,omitempty"`
	DocumentID     string `json:"documentId,omitempty"`
	Actor          string `json:"actor"`
}

// Stats is the org-scoped dashboard aggregate.
type Stats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"byStatus"`
	AveragePercentDone int            `json:"averagePercentDone"`
}
