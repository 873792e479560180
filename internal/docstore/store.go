// internal/docstore/store.go
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "rpas-compliance/internal/common/errors"
)

// Collection paths. Subcollections use Firestore-style path segments with the
// parent id spliced in via Subcollection.
const (
	CollectionSFOCApplications       = "sfocApplications"
	CollectionComplianceTemplates    = "complianceTemplates"
	CollectionComplianceApplications = "complianceApplications"
	CollectionDocumentRegistry       = "documentRegistry"
	CollectionMasterFormalHazards    = "masterFormalHazards"
	CollectionMasterFHAVersions      = "masterFHAVersions"
	CollectionFormalHazards          = "formalHazards"
	CollectionPermits                = "permits"
	CollectionComments               = "comments"
	CollectionActivities             = "activities"
	CollectionChecklistItems         = "checklistItems"
	CollectionQuizAttempts           = "quizAttempts"
	SubcollectionDocuments           = "documents"
	SubcollectionCommunications      = "communications"
	SubcollectionActivityLog         = "activityLog"
)

// Subcollection builds a nested collection path, e.g.
// sfocApplications/app-1/documents.
func Subcollection(parent, parentID, name string) string {
	return strings.Join([]string{parent, parentID, name}, "/")
}

// Document is the stored envelope. Data holds the entity fields; the envelope
// carries identity, tenancy, audit fields and the optimistic revision.
type Document struct {
	Collection string                 `json:"collection"`
	ID         string                 `json:"id"`
	OrgID      string                 `json:"orgId"`
	Data       map[string]interface{} `json:"data"`
	Revision   int64                  `json:"revision"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	CreatedBy  string                 `json:"createdBy"`
	UpdatedBy  string                 `json:"updatedBy"`
}

// Filter is a field equality predicate against the document data.
type Filter struct {
	Field string
	Value interface{}
}

// Query selects documents from one collection. OrgID is mandatory: every
// query is tenant-scoped and queries without it are rejected.
type Query struct {
	Collection string
	OrgID      string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Validate enforces the multi-tenancy invariant.
func (q Query) Validate() error {
	if q.Collection == "" {
		return apperrors.NewInternalError(fmt.Errorf("collection is required"))
	}
	if q.OrgID == "" {
		return apperrors.NewMissingOrganizationError("query " + q.Collection)
	}
	return nil
}

// Change event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// ChangeEvent describes one document mutation, delivered to subscribers.
type ChangeEvent struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	Doc        *Document `json:"doc,omitempty"`
	At         time.Time `json:"at"`
}

// Tx is the handle passed to RunTransaction callbacks. Updates are
// revision-conditional: a write against a stale revision aborts the
// transaction with a conflict error.
type Tx interface {
	Get(collection, id string) (*Document, error)
	Query(q Query) ([]*Document, error)
	Create(doc *Document) error
	Update(doc *Document) error
	Delete(collection, id string) error
}

// Store is the document store. Writes attach server timestamps and audit
// fields; reads and queries are tenant-scoped.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, doc *Document) (*Document, error)
	Update(ctx context.Context, doc *Document) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]*Document, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// ListOrgIDs enumerates the organizations holding documents in a
	// collection. Used by background scanners that fan out per tenant.
	ListOrgIDs(ctx context.Context, collection string) ([]string, error)
}

// Watcher delivers live change events for a collection, filtered to one
// organization. The returned cancel func must be called on teardown.
type Watcher interface {
	Watch(ctx context.Context, collection, orgID string) (<-chan ChangeEvent, func(), error)
}

// Publisher fans out change events after a successful write.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// maxTxAttempts bounds optimistic transaction retries on revision conflicts.
const maxTxAttempts = 3

func validateDoc(doc *Document, forCreate bool) error {
	if doc.Collection == "" {
		return apperrors.NewInternalError(fmt.Errorf("collection is required"))
	}
	if doc.OrgID == "" {
		return apperrors.NewMissingOrganizationError("write " + doc.Collection)
	}
	if !forCreate && doc.ID == "" {
		return apperrors.NewNotFoundError(doc.Collection, "")
	}
	return nil
}
