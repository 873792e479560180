// internal/models/checklist.go
package models

import "time"

// ChecklistItem is a per-application expansion of a requirement catalog entry.
// Items are created in bulk with the parent application and are never deleted
// independently of it.
type ChecklistItem struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organizationId"`
	ParentApplicationID string    `json:"parentApplicationId"`
	RequirementID       string    `json:"requirementId"`
	Category            string    `json:"category"`
	Label               string    `json:"label"`
	Status              string    `json:"status"`
	IsRequired          bool      `json:"isRequired"`
	Response            string    `json:"response,omitempty"`
	DocumentID          string    `json:"documentId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	CreatedBy           string    `json:"createdBy"`
	UpdatedBy           string    `json:"updatedBy"`
}
