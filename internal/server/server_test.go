// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rpas-compliance/internal/activity"
	"rpas-compliance/internal/aifn"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/compliance"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/fha"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/search"
	"rpas-compliance/internal/sfoc"
	"rpas-compliance/internal/training"
	"rpas-compliance/pkg/catalog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// Create a test logger that implements your logger.Logger interface
type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl // Simple implementation for testing
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// esStubTransport answers every Elasticsearch request with a fixed body so
// the registry can run without a cluster.
type esStubTransport struct {
	respBody string
}

func (ft *esStubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ft.respBody
	if body == "" {
		body = "{}"
	}
	resp := httptest.NewRecorder()
	resp.Header().Set("X-Elastic-Product", "Elasticsearch")
	resp.WriteString(body)
	return resp.Result(), nil
}

type stubGenerator struct{}

func (g *stubGenerator) GenerateQuizQuestions(ctx context.Context, req aifn.QuizRequest) (*aifn.QuizResponse, error) {
	questions := make([]aifn.QuizQuestion, req.QuestionCount)
	for i := range questions {
		questions[i] = aifn.QuizQuestion{
			Question:      fmt.Sprintf("Question %d about %s", i+1, req.Topic),
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: 0,
		}
	}
	return &aifn.QuizResponse{Questions: questions}, nil
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Entries: []catalog.Entry{
		{ID: "ops_manual", Category: "documentation", Label: "Operations Manual", AlwaysRequired: true},
		{ID: "hazard", Category: "safety", Label: "Hazard Assessment", AlwaysRequired: true},
	}}
}

func newTestMux(t *testing.T, esBody string) *http.ServeMux {
	store := docstore.NewMemStore()
	log := newTestLogger(t)

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: &esStubTransport{respBody: esBody},
	})
	require.NoError(t, err)

	srv := New(
		sfoc.NewService(store, store, testCatalog(), nil, log),
		compliance.NewService(store, log),
		fha.NewService(store, log),
		search.NewRegistry(store, esClient, search.DefaultIndex, log),
		training.NewService(store, &stubGenerator{}, log),
		activity.NewService(store, log),
		log,
	)

	mux := http.NewServeMux()
	srv.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, orgID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(orgHeader, orgID)
	req.Header.Set(actorHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

// ==========================
// SFOC Route Tests
// ==========================

func TestServer_CreateAndGetApplication(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/sfoc/applications", "org-1", map[string]interface{}{
		"title": "Survey Flight",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out sfoc.CreateOutput
	decodeBody(t, rec, &out)
	require.NotNil(t, out.Application)
	assert.Equal(t, "org-1", out.Application.OrganizationID)
	assert.Len(t, out.Checklist, 2)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/sfoc/applications/"+out.Application.ID, "org-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another tenant cannot see it.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/sfoc/applications/"+out.Application.ID, "org-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TransitionStatus_Invalid(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/sfoc/applications", "org-1", map[string]interface{}{
		"title": "Survey Flight",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out sfoc.CreateOutput
	decodeBody(t, rec, &out)

	// Draft cannot jump straight to submitted.
	rec = doJSON(t, mux, http.MethodPut, "/api/v1/sfoc/applications/"+out.Application.ID+"/status", "org-1", map[string]string{
		"status": "submitted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_STATUS_TRANSITION")

	rec = doJSON(t, mux, http.MethodPut, "/api/v1/sfoc/applications/"+out.Application.ID+"/status", "org-1", map[string]string{
		"status": "ready_for_review",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Stats(t *testing.T) {
	mux := newTestMux(t, "")

	doJSON(t, mux, http.MethodPost, "/api/v1/sfoc/applications", "org-1", map[string]interface{}{"title": "A"})
	doJSON(t, mux, http.MethodPost, "/api/v1/sfoc/applications", "org-1", map[string]interface{}{"title": "B"})

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/sfoc/stats", "org-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats sfoc.Stats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["draft"])
}

// ==========================
// Compliance Route Tests
// ==========================

func TestServer_ComplianceFlow(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/compliance/templates", "org-1", models.ComplianceTemplate{
		Name: "Part IX Audit",
		Requirements: []models.ComplianceRequirement{
			{Label: "Insurance certificate", Required: true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var tmpl models.ComplianceTemplate
	decodeBody(t, rec, &tmpl)
	require.NotEmpty(t, tmpl.ID)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/compliance/applications", "org-1", map[string]string{
		"templateId": tmpl.ID,
		"title":      "Annual audit",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Application models.ComplianceApplication `json:"application"`
		Items       []models.ChecklistItem       `json:"items"`
	}
	decodeBody(t, rec, &created)
	require.Len(t, created.Items, 1)

	rec = doJSON(t, mux, http.MethodPut,
		"/api/v1/compliance/applications/"+created.Application.ID+"/items/"+created.Items[0].ID,
		"org-1", map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ==========================
// Hazard Route Tests
// ==========================

func TestServer_CreateAndListHazards(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/hazards", "org-1", models.Hazard{
		Title:      "Loss of C2 link",
		Likelihood: 3,
		Severity:   4,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var hazard models.Hazard
	decodeBody(t, rec, &hazard)
	assert.Equal(t, 12, hazard.RiskScore)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/hazards", "org-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hazards []models.Hazard
	decodeBody(t, rec, &hazards)
	assert.Len(t, hazards, 1)
}

// ==========================
// Comment Route Tests
// ==========================

func TestServer_Comments(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/comments", "org-1", models.Comment{
		EntityType: "sfoc_application",
		EntityID:   "app-1",
		Body:       "Missing the insurance certificate.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var comment models.Comment
	decodeBody(t, rec, &comment)

	rec = doJSON(t, mux, http.MethodPut, "/api/v1/comments/"+comment.ID+"/flags", "org-1", map[string]bool{
		"resolved": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Comment
	decodeBody(t, rec, &updated)
	assert.True(t, updated.Resolved)
	assert.Equal(t, comment.Body, updated.Body)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/comments?entityType=sfoc_application&entityId=app-1", "org-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []models.Comment
	decodeBody(t, rec, &comments)
	assert.Len(t, comments, 1)
}

// ==========================
// Registry and Training Route Tests
// ==========================

func TestServer_RegistrySearch(t *testing.T) {
	searchResponse := `{
		"hits": {
			"total": {"value": 1},
			"hits": [
				{"_source": {"id": "doc-1", "organizationId": "org-1", "title": "Night Operations Plan"}}
			]
		}
	}`
	mux := newTestMux(t, searchResponse)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/registry/search?q=night&tags=night", "org-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result search.SearchResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 1, result.TotalHits)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "Night Operations Plan", result.Documents[0].Title)
}

func TestServer_StartQuiz(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/training/quizzes", "org-1", map[string]interface{}{
		"topic":         "night operations",
		"questionCount": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var attempt models.QuizAttempt
	decodeBody(t, rec, &attempt)
	assert.Len(t, attempt.Questions, 4)
	assert.Equal(t, "user-1", attempt.UserID)
}

// ==========================
// Error Handling Tests
// ==========================

func TestServer_MalformedBody(t *testing.T) {
	mux := newTestMux(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hazards", strings.NewReader("{not json"))
	req.Header.Set(orgHeader, "org-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestServer_MissingOrganization(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/sfoc/applications", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_ORGANIZATION")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, "")

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/sfoc/applications", "org-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
