// internal/aifn/client_test.go
package aifn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rpas-compliance/internal/common/config"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func createTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.FunctionsConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 2000,
	}, newTestLogger(t))
	client.retryCfg = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return client, server
}

func TestClient_GenerateQuizQuestions(t *testing.T) {
	var gotPath, gotKey string
	var gotReq QuizRequest

	client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(QuizResponse{
			Questions: []QuizQuestion{
				{Question: "Minimum distance from bystanders for a small RPAS?", Options: []string{"10m", "30m", "100m"}, CorrectOption: 1},
			},
		})
	}))

	resp, err := client.GenerateQuizQuestions(context.Background(), QuizRequest{Topic: "vlos", QuestionCount: 1})
	require.NoError(t, err)

	assert.Equal(t, "/generateQuizQuestions", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "vlos", gotReq.Topic)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, 1, resp.Questions[0].CorrectOption)
}

func TestClient_GenerateScenario_RetriesServerErrors(t *testing.T) {
	var calls int32

	client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ScenarioResponse{Title: "Night survey", Narrative: "A powerline inspection after dark.", Decisions: []string{"abort", "continue"}})
	}))

	resp, err := client.GenerateScenario(context.Background(), ScenarioRequest{OperationType: "night"})
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "Night survey", resp.Title)
}

func TestClient_ChunkDocumentContent_NoRetry(t *testing.T) {
	var calls int32

	client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.ChunkDocumentContent(context.Background(), ChunkRequest{DocumentID: "doc-1", Content: "text"})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClient_HTTPClientTimeout(t *testing.T) {
	// The http.Client's own timeout must classify as FUNCTION_TIMEOUT, not
	// FUNCTION_CALL_FAILED, even when the caller's context has no deadline.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.FunctionsConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 50,
	}, newTestLogger(t))

	_, err := client.ChunkDocumentContent(context.Background(), ChunkRequest{DocumentID: "doc-1"})

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFunctionTimeout, apperrors.AsAppError(err).Code)
}

func TestClient_ContextDeadlineTimeout(t *testing.T) {
	client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ChunkDocumentContent(ctx, ChunkRequest{DocumentID: "doc-1"})

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFunctionTimeout, apperrors.AsAppError(err).Code)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   apperrors.Code
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, code: apperrors.CodePermissionDenied},
		{name: "not found", status: http.StatusNotFound, code: apperrors.CodeDocumentNotFound},
		{name: "bad request", status: http.StatusBadRequest, code: apperrors.CodeFunctionCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.ChunkDocumentContent(context.Background(), ChunkRequest{DocumentID: "doc-1"})
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.AsAppError(err).Code)
		})
	}
}

func TestClient_GenerateReadinessNudge(t *testing.T) {
	client, _ := createTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(NudgeResponse{Message: "Two requirements left before submission."})
	}))

	resp, err := client.GenerateReadinessNudge(context.Background(), NudgeRequest{
		ApplicationID:   "app-1",
		PercentComplete: 80,
		Status:          "draft",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Two requirements")
}
