// internal/search/registry.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

const DefaultIndex = "document-registry"

// Registry manages the document registry. The docstore is the source of
// truth; every write is mirrored into the Elasticsearch index so the policy
// library is searchable by title, tags, and category.
type Registry struct {
	store  docstore.Store
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewRegistry(store docstore.Store, es *elasticsearch.Client, index string, log logger.Logger) *Registry {
	if index == "" {
		index = DefaultIndex
	}
	return &Registry{store: store, es: es, index: index, logger: log}
}

// CreateDocument stores a registry entry and indexes it.
func (r *Registry) CreateDocument(ctx context.Context, d *models.RegistryDocument, actor string) (*models.RegistryDocument, error) {
	if d.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("create registry document")
	}
	if d.Title == "" {
		return nil, apperrors.NewInvalidInputError("registry document requires a title")
	}
	d.ID = uuid.New().String()
	d.Version = 1

	data, err := docstore.Encode(d)
	if err != nil {
		return nil, err
	}
	stored, err := r.store.Create(ctx, &docstore.Document{
		Collection: docstore.CollectionDocumentRegistry,
		ID:         d.ID,
		OrgID:      d.OrganizationID,
		Data:       data,
		CreatedBy:  actor,
	})
	if err != nil {
		return nil, err
	}
	d.CreatedAt = stored.CreatedAt
	d.UpdatedAt = stored.UpdatedAt

	r.indexDocument(ctx, d)
	return d, nil
}

// UpdateDocument bumps the entry version and re-indexes it.
func (r *Registry) UpdateDocument(ctx context.Context, d *models.RegistryDocument, actor string) (*models.RegistryDocument, error) {
	err := r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(docstore.CollectionDocumentRegistry, d.ID)
		if err != nil {
			return err
		}
		if doc.OrgID != d.OrganizationID {
			return apperrors.NewNotFoundError(docstore.CollectionDocumentRegistry, d.ID)
		}
		var current models.RegistryDocument
		if err := docstore.Decode(doc.Data, &current); err != nil {
			return err
		}
		d.Version = current.Version + 1
		d.CreatedAt = current.CreatedAt
		d.CreatedBy = current.CreatedBy

		doc.Data, err = docstore.Encode(d)
		if err != nil {
			return err
		}
		doc.UpdatedBy = actor
		return tx.Update(doc)
	})
	if err != nil {
		return nil, err
	}

	r.indexDocument(ctx, d)
	return d, nil
}

// DeleteDocument removes the entry from the store and the index.
func (r *Registry) DeleteDocument(ctx context.Context, orgID, id string) error {
	doc, err := r.store.Get(ctx, docstore.CollectionDocumentRegistry, id)
	if err != nil {
		return err
	}
	if doc.OrgID != orgID {
		return apperrors.NewNotFoundError(docstore.CollectionDocumentRegistry, id)
	}
	if err := r.store.Delete(ctx, docstore.CollectionDocumentRegistry, id); err != nil {
		return err
	}

	req := esapi.DeleteRequest{Index: r.index, DocumentID: id}
	res, err := req.Do(ctx, r.es)
	if err != nil {
		r.logger.Warn("failed to delete registry document from index", map[string]interface{}{
			"documentId": id,
			"error":      err.Error(),
		})
		return nil
	}
	res.Body.Close()
	return nil
}

// GetDocument loads one entry from the store.
func (r *Registry) GetDocument(ctx context.Context, orgID, id string) (*models.RegistryDocument, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionDocumentRegistry, id)
	if err != nil {
		return nil, err
	}
	if doc.OrgID != orgID {
		return nil, apperrors.NewNotFoundError(docstore.CollectionDocumentRegistry, id)
	}
	var d models.RegistryDocument
	if err := docstore.Decode(doc.Data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SearchInput selects registry entries. Keywords match title and category,
// tags filter exactly, and the org scope is always applied.
type SearchInput struct {
	OrganizationID string
	Keywords       string
	Tags           []string
	Category       string
	From           int
	Size           int
}

type SearchResult struct {
	Documents []models.RegistryDocument
	TotalHits int
}

// Search runs a full-text query against the registry index.
func (r *Registry) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	if input.OrganizationID == "" {
		return nil, apperrors.NewMissingOrganizationError("search registry")
	}
	if input.Size <= 0 {
		input.Size = 20
	}

	body, err := json.Marshal(buildSearchQuery(input))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{r.index},
		Body:  bytes.NewReader(body),
		From:  &input.From,
		Size:  &input.Size,
	}
	res, err := req.Do(ctx, r.es)
	if err != nil {
		return nil, apperrors.NewSearchFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchFailedError(fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.RegistryDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchFailedError(err)
	}

	result := &SearchResult{TotalHits: parsed.Hits.Total.Value}
	for _, hit := range parsed.Hits.Hits {
		result.Documents = append(result.Documents, hit.Source)
	}
	return result, nil
}

// indexDocument mirrors a registry entry into Elasticsearch. Index failures
// are logged, not propagated: the docstore write already committed and the
// index can be rebuilt.
func (r *Registry) indexDocument(ctx context.Context, d *models.RegistryDocument) {
	payload, err := json.Marshal(d)
	if err != nil {
		r.logger.Warn("failed to marshal registry document for indexing", map[string]interface{}{
			"documentId": d.ID,
			"error":      err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: d.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, r.es)
	if err != nil {
		r.logger.Warn("failed to index registry document", map[string]interface{}{
			"documentId": d.ID,
			"error":      err.Error(),
		})
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		r.logger.Warn("index request rejected", map[string]interface{}{
			"documentId": d.ID,
			"status":     res.Status(),
		})
	}
}

func buildSearchQuery(input SearchInput) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{
		map[string]interface{}{
			"term": map[string]interface{}{"organizationId": input.OrganizationID},
		},
	}

	if input.Keywords != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  input.Keywords,
				"fields": []string{"title^3", "category", "tags^2"},
				"type":   "best_fields",
			},
		})
	}
	if input.Category != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"category": input.Category},
		})
	}
	if len(input.Tags) > 0 {
		tags := append([]string(nil), input.Tags...)
		sort.Strings(tags)
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"tags": tags},
		})
	}

	boolQuery := map[string]interface{}{"filter": filterClauses}
	if len(mustClauses) > 0 {
		boolQuery["must"] = mustClauses
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{"_score", map[string]interface{}{"updatedAt": "desc"}},
	}
}
