// internal/docstore/memstore.go
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "rpas-compliance/internal/common/errors"
)

// MemStore is an in-memory Store and Watcher with the same semantics as the
// Postgres implementation, used in tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	docs     map[string]*Document // key: collection + "\x00" + id
	watchers []*memWatcher
	inTx     bool
	pending  []ChangeEvent
}

type memWatcher struct {
	collection string
	orgID      string
	events     chan ChangeEvent
	closed     bool
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*Document)}
}

func memKey(collection, id string) string {
	return collection + "\x00" + id
}

func cloneDoc(doc *Document) *Document {
	clone := *doc
	if doc.Data != nil {
		raw, _ := json.Marshal(doc.Data)
		var data map[string]interface{}
		json.Unmarshal(raw, &data)
		clone.Data = data
	}
	return &clone
}

func (s *MemStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[memKey(collection, id)]
	if !ok {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	return cloneDoc(doc), nil
}

func (s *MemStore) Create(ctx context.Context, doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(doc)
}

func (s *MemStore) createLocked(doc *Document) (*Document, error) {
	if err := validateDoc(doc, true); err != nil {
		return nil, err
	}
	prepareCreate(doc)

	key := memKey(doc.Collection, doc.ID)
	if _, exists := s.docs[key]; exists {
		return nil, apperrors.NewRevisionConflictError(doc.Collection, doc.ID)
	}
	s.docs[key] = cloneDoc(doc)
	s.notifyLocked(ChangeEvent{
		Type: EventCreated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: cloneDoc(doc), At: doc.CreatedAt,
	})
	return doc, nil
}

func (s *MemStore) Update(ctx context.Context, doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(doc)
}

func (s *MemStore) updateLocked(doc *Document) (*Document, error) {
	if err := validateDoc(doc, false); err != nil {
		return nil, err
	}
	key := memKey(doc.Collection, doc.ID)
	current, ok := s.docs[key]
	if !ok {
		return nil, apperrors.NewNotFoundError(doc.Collection, doc.ID)
	}
	if current.Revision != doc.Revision || current.OrgID != doc.OrgID {
		return nil, apperrors.NewRevisionConflictError(doc.Collection, doc.ID)
	}

	doc.Revision++
	doc.UpdatedAt = time.Now().UTC()
	doc.CreatedAt = current.CreatedAt
	doc.CreatedBy = current.CreatedBy
	s.docs[key] = cloneDoc(doc)
	s.notifyLocked(ChangeEvent{
		Type: EventUpdated, Collection: doc.Collection, ID: doc.ID,
		OrgID: doc.OrgID, Doc: cloneDoc(doc), At: doc.UpdatedAt,
	})
	return doc, nil
}

func (s *MemStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(collection, id)
}

func (s *MemStore) deleteLocked(collection, id string) error {
	key := memKey(collection, id)
	doc, ok := s.docs[key]
	if !ok {
		return apperrors.NewNotFoundError(collection, id)
	}
	delete(s.docs, key)
	s.notifyLocked(ChangeEvent{
		Type: EventDeleted, Collection: collection, ID: id,
		OrgID: doc.OrgID, At: time.Now().UTC(),
	})
	return nil
}

func (s *MemStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(q)
}

func (s *MemStore) ListOrgIDs(ctx context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var orgIDs []string
	for _, doc := range s.docs {
		if doc.Collection != collection || seen[doc.OrgID] {
			continue
		}
		seen[doc.OrgID] = true
		orgIDs = append(orgIDs, doc.OrgID)
	}
	sort.Strings(orgIDs)
	return orgIDs, nil
}

func (s *MemStore) queryLocked(q Query) ([]*Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var docs []*Document
	for _, doc := range s.docs {
		if doc.Collection != q.Collection || doc.OrgID != q.OrgID {
			continue
		}
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		docs = append(docs, cloneDoc(doc))
	}

	sort.Slice(docs, func(i, j int) bool {
		var less bool
		if q.OrderBy != "" {
			less = fmt.Sprint(docs[i].Data[q.OrderBy]) < fmt.Sprint(docs[j].Data[q.OrderBy])
		} else {
			less = docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		if q.Descending {
			return !less
		}
		return less
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func matchesFilters(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := doc.Data[f.Field]
		if !ok || fmt.Sprint(value) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// RunTransaction executes fn under the store lock, applying all writes
// atomically. A callback error rolls every write back.
func (s *MemStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*Document, len(s.docs))
	for k, v := range s.docs {
		snapshot[k] = v
	}

	s.inTx = true
	s.pending = nil
	tx := &memTx{store: s}
	err := fn(tx)
	s.inTx = false

	if err != nil {
		s.docs = snapshot
		s.pending = nil
		return err
	}
	for _, event := range s.pending {
		s.notifyLocked(event)
	}
	s.pending = nil
	return nil
}

func (s *MemStore) Watch(ctx context.Context, collection, orgID string) (<-chan ChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &memWatcher{
		collection: collection,
		orgID:      orgID,
		events:     make(chan ChangeEvent, 16),
	}
	s.watchers = append(s.watchers, w)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w.closed {
			return
		}
		w.closed = true
		close(w.events)
		for i, cur := range s.watchers {
			if cur == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
	}
	return w.events, cancel, nil
}

// notifyLocked delivers an event to matching watchers. Inside a transaction
// events are buffered and delivered only after the callback succeeds.
func (s *MemStore) notifyLocked(event ChangeEvent) {
	if s.inTx {
		s.pending = append(s.pending, event)
		return
	}
	for _, w := range s.watchers {
		if w.closed || w.collection != event.Collection || w.orgID != event.OrgID {
			continue
		}
		select {
		case w.events <- event:
		default:
		}
	}
}

// memTx applies writes directly under the store lock held by RunTransaction.
type memTx struct {
	store *MemStore
}

func (t *memTx) Get(collection, id string) (*Document, error) {
	doc, ok := t.store.docs[memKey(collection, id)]
	if !ok {
		return nil, apperrors.NewNotFoundError(collection, id)
	}
	return cloneDoc(doc), nil
}

func (t *memTx) Query(q Query) ([]*Document, error) {
	return t.store.queryLocked(q)
}

func (t *memTx) Create(doc *Document) error {
	_, err := t.store.createLocked(doc)
	return err
}

func (t *memTx) Update(doc *Document) error {
	_, err := t.store.updateLocked(doc)
	return err
}

func (t *memTx) Delete(collection, id string) error {
	return t.store.deleteLocked(collection, id)
}

var (
	_ Store   = (*MemStore)(nil)
	_ Watcher = (*MemStore)(nil)
	_ Tx      = (*memTx)(nil)
)
