// internal/docstore/memstore_test.go
package docstore

import (
	"context"
	"testing"

	apperrors "rpas-compliance/internal/common/errors"

	"github.com/stretchr/testify/assert"
)

func createTestDoc(collection, orgID string, data map[string]interface{}) *Document {
	return &Document{
		Collection: collection,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  "user-1",
	}
}

// ==========================
// CRUD Tests
// ==========================

func TestMemStore_CreateAndGet(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"title": "Night Ops"}))
	assert.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, int64(1), doc.Revision)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, "user-1", doc.UpdatedBy)

	got, err := store.Get(ctx, "permits", doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Night Ops", got.Data["title"])
}

func TestMemStore_Get_NotFound(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(context.Background(), "permits", "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemStore_Create_MissingOrganization(t *testing.T) {
	store := NewMemStore()
	_, err := store.Create(context.Background(), &Document{
		Collection: "permits",
		Data:       map[string]interface{}{},
	})
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingOrganization, apperrors.AsAppError(err).Code)
}

func TestMemStore_Update_BumpsRevision(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"title": "v1"}))
	assert.NoError(t, err)

	doc.Data["title"] = "v2"
	updated, err := store.Update(ctx, doc)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)

	got, err := store.Get(ctx, "permits", doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, "v2", got.Data["title"])
}

func TestMemStore_Update_StaleRevisionConflicts(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"title": "v1"}))
	assert.NoError(t, err)

	stale := *doc
	doc.Data["title"] = "v2"
	_, err = store.Update(ctx, doc)
	assert.NoError(t, err)

	stale.Data = map[string]interface{}{"title": "concurrent"}
	_, err = store.Update(ctx, &stale)
	assert.True(t, apperrors.IsConflict(err))
}

func TestMemStore_Delete(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{}))
	assert.NoError(t, err)

	assert.NoError(t, store.Delete(ctx, "permits", doc.ID))
	_, err = store.Get(ctx, "permits", doc.ID)
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(store.Delete(ctx, "permits", doc.ID)))
}

// ==========================
// Query Tests
// ==========================

func TestMemStore_Query_ScopedToOrganization(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"status": "active"}))
	assert.NoError(t, err)
	_, err = store.Create(ctx, createTestDoc("permits", "org-2", map[string]interface{}{"status": "active"}))
	assert.NoError(t, err)

	docs, err := store.Query(ctx, Query{Collection: "permits", OrgID: "org-1"})
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "org-1", docs[0].OrgID)
}

func TestMemStore_Query_RequiresOrganization(t *testing.T) {
	store := NewMemStore()
	_, err := store.Query(context.Background(), Query{Collection: "permits"})
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingOrganization, apperrors.AsAppError(err).Code)
}

func TestMemStore_Query_RequiresCollection(t *testing.T) {
	store := NewMemStore()
	_, err := store.Query(context.Background(), Query{OrgID: "org-1"})
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.AsAppError(err).Code)
	assert.Contains(t, apperrors.AsAppError(err).Details, "collection is required")
}

func TestMemStore_Create_RequiresCollection(t *testing.T) {
	store := NewMemStore()
	_, err := store.Create(context.Background(), &Document{OrgID: "org-1", CreatedBy: "user-1"})
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.AsAppError(err).Code)
}

func TestMemStore_Query_FiltersAndLimit(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for _, st := range []string{"active", "active", "expired"} {
		_, err := store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"status": st}))
		assert.NoError(t, err)
	}

	docs, err := store.Query(ctx, Query{
		Collection: "permits",
		OrgID:      "org-1",
		Filters:    []Filter{{Field: "status", Value: "active"}},
	})
	assert.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.Query(ctx, Query{
		Collection: "permits",
		OrgID:      "org-1",
		Limit:      1,
	})
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
}

// ==========================
// Transaction Tests
// ==========================

func TestMemStore_RunTransaction_AllOrNothing(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	err := store.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Create(createTestDoc("permits", "org-1", map[string]interface{}{"n": 1})); err != nil {
			return err
		}
		if err := tx.Create(createTestDoc("permits", "org-1", map[string]interface{}{"n": 2})); err != nil {
			return err
		}
		return apperrors.NewCatalogInvalidError("abort")
	})
	assert.Error(t, err)

	docs, err := store.Query(ctx, Query{Collection: "permits", OrgID: "org-1"})
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemStore_RunTransaction_Commits(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	err := store.RunTransaction(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.Create(createTestDoc("permits", "org-1", map[string]interface{}{"n": i})); err != nil {
				return err
			}
		}
		return nil
	})
	assert.NoError(t, err)

	docs, err := store.Query(ctx, Query{Collection: "permits", OrgID: "org-1"})
	assert.NoError(t, err)
	assert.Len(t, docs, 3)
}

// ==========================
// Watch Tests
// ==========================

func TestMemStore_Watch_DeliversScopedEvents(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	events, cancel, err := store.Watch(ctx, "permits", "org-1")
	assert.NoError(t, err)
	defer cancel()

	_, err = store.Create(ctx, createTestDoc("permits", "org-1", map[string]interface{}{"title": "mine"}))
	assert.NoError(t, err)
	_, err = store.Create(ctx, createTestDoc("permits", "org-2", map[string]interface{}{"title": "other org"}))
	assert.NoError(t, err)
	_, err = store.Create(ctx, createTestDoc("comments", "org-1", map[string]interface{}{"title": "other collection"}))
	assert.NoError(t, err)

	event := <-events
	assert.Equal(t, EventCreated, event.Type)
	assert.Equal(t, "org-1", event.OrgID)
	assert.Equal(t, "mine", event.Doc.Data["title"])

	select {
	case extra := <-events:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}
}

func TestMemStore_Watch_NoEventsOnRollback(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	events, cancel, err := store.Watch(ctx, "permits", "org-1")
	assert.NoError(t, err)
	defer cancel()

	err = store.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Create(createTestDoc("permits", "org-1", map[string]interface{}{})); err != nil {
			return err
		}
		return apperrors.NewCatalogInvalidError("abort")
	})
	assert.Error(t, err)

	select {
	case event := <-events:
		t.Fatalf("unexpected event after rollback: %+v", event)
	default:
	}
}

func TestMemStore_Watch_UnsubscribeClosesChannel(t *testing.T) {
	store := NewMemStore()

	events, cancel, err := store.Watch(context.Background(), "permits", "org-1")
	assert.NoError(t, err)

	cancel()
	_, open := <-events
	assert.False(t, open)
}
