// internal/models/activity.go
package models

import "time"

// Comment is an append-only note scoped to an entity. After creation only
// Resolved and Pinned may change.
type Comment struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	EntityType     string    `json:"entityType"`
	EntityID       string    `json:"entityId"`
	Body           string    `json:"body"`
	Resolved       bool      `json:"resolved"`
	Pinned         bool      `json:"pinned"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy"`
}

// Activity is an append-only audit log entry scoped to an entity.
type Activity struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	EntityType     string                 `json:"entityType"`
	EntityID       string                 `json:"entityId"`
	Action         string                 `json:"action"`
	Details        map[string]interface{} `json:"details,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	CreatedBy      string                 `json:"createdBy"`
}
