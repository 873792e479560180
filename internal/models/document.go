// internal/models/document.go
package models

import "time"

// RegistryDocument is a policy-library entry in the document registry,
// indexed in Elasticsearch for search.
type RegistryDocument struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Title          string    `json:"title"`
	Category       string    `json:"category,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	ContentType    string    `json:"contentType,omitempty"`
	StorageRef     string    `json:"storageRef,omitempty"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	CreatedBy      string    `json:"createdBy"`
	UpdatedBy      string    `json:"updatedBy"`
}

// Permit is an operational approval with an expiry date that drives reminders.
type Permit struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Title          string    `json:"title"`
	PermitNumber   string    `json:"permitNumber,omitempty"`
	HolderEmail    string    `json:"holderEmail"`
	HolderPhone    string    `json:"holderPhone,omitempty"`
	IssuedAt       time.Time `json:"issuedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	CreatedBy      string    `json:"createdBy"`
	UpdatedBy      string    `json:"updatedBy"`
}

// ApplicationDocument is a file attached to an application (subcollection).
type ApplicationDocument struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	ContentType    string    `json:"contentType,omitempty"`
	StorageRef     string    `json:"storageRef,omitempty"`
	RequirementID  string    `json:"requirementId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy"`
}

// Communication is a logged exchange with the regulator (subcollection).
type Communication struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Direction      string    `json:"direction"` // inbound or outbound
	Subject        string    `json:"subject"`
	Body           string    `json:"body,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy"`
}
