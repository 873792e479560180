// internal/aifn/client.go
package aifn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"rpas-compliance/internal/common/config"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/httpclient"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/metrics"
	"rpas-compliance/internal/common/retry"
)

// Function names exposed by the serverless endpoint.
const (
	FnGenerateQuizQuestions  = "generateQuizQuestions"
	FnGenerateScenario       = "generateScenario"
	FnGenerateReadinessNudge = "generateReadinessNudge"
	FnChunkDocumentContent   = "chunkDocumentContent"
)

// Client calls named JSON-in/JSON-out serverless functions. The generate
// calls are idempotent and retried with backoff; chunking is not retried
// because re-invocation duplicates stored chunks.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
	retryCfg   retry.Config
	logger     logger.Logger
}

func NewClient(cfg config.FunctionsConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpclient.NewClient(timeout),
		retryCfg:   retry.DefaultConfig,
		logger:     log,
	}
}

// QuizQuestion is one generated multiple-choice question.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Explanation   string   `json:"explanation,omitempty"`
}

type QuizRequest struct {
	Topic         string `json:"topic"`
	QuestionCount int    `json:"questionCount"`
	Difficulty    string `json:"difficulty,omitempty"`
}

type QuizResponse struct {
	Questions []QuizQuestion `json:"questions"`
}

type ScenarioRequest struct {
	OperationType string   `json:"operationType"`
	Triggers      []string `json:"triggers,omitempty"`
}

type ScenarioResponse struct {
	Title       string   `json:"title"`
	Narrative   string   `json:"narrative"`
	Decisions   []string `json:"decisions"`
	HazardNotes []string `json:"hazardNotes,omitempty"`
}

type NudgeRequest struct {
	ApplicationID   string `json:"applicationId"`
	PercentComplete int    `json:"percentComplete"`
	Status          string `json:"status"`
}

type NudgeResponse struct {
	Message string `json:"message"`
}

type ChunkRequest struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	ChunkSize  int    `json:"chunkSize,omitempty"`
}

type ChunkResponse struct {
	Chunks []string `json:"chunks"`
}

// GenerateQuizQuestions asks the endpoint for training quiz questions.
func (c *Client) GenerateQuizQuestions(ctx context.Context, req QuizRequest) (*QuizResponse, error) {
	var resp QuizResponse
	if err := c.callWithRetry(ctx, FnGenerateQuizQuestions, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateScenario asks for a practice operation scenario.
func (c *Client) GenerateScenario(ctx context.Context, req ScenarioRequest) (*ScenarioResponse, error) {
	var resp ScenarioResponse
	if err := c.callWithRetry(ctx, FnGenerateScenario, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateReadinessNudge asks for a short progress reminder message.
func (c *Client) GenerateReadinessNudge(ctx context.Context, req NudgeRequest) (*NudgeResponse, error) {
	var resp NudgeResponse
	if err := c.callWithRetry(ctx, FnGenerateReadinessNudge, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChunkDocumentContent splits document content for retrieval. Not retried.
func (c *Client) ChunkDocumentContent(ctx context.Context, req ChunkRequest) (*ChunkResponse, error) {
	var resp ChunkResponse
	if err := c.call(ctx, FnChunkDocumentContent, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) callWithRetry(ctx context.Context, name string, payload, out interface{}) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.call(ctx, name, payload, out)
	})
}

func (c *Client) call(ctx context.Context, name string, payload, out interface{}) error {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, name)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if isTimeout(ctx, err) {
			return apperrors.NewFunctionTimeoutError(name)
		}
		return apperrors.NewFunctionCallFailedError(name, err)
	}
	defer resp.Body.Close()

	metrics.RequestDuration.WithLabelValues("functions", name).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		appErr := apperrors.FromHTTPStatus(resp.StatusCode, string(raw))
		c.logger.Warn("function call failed", map[string]interface{}{
			"function": name,
			"status":   resp.StatusCode,
		})
		return appErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewFunctionCallFailedError(name, err)
	}
	return nil
}

// isTimeout reports whether the request failed on a deadline: either the
// caller's context or the HTTP client's own timeout.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
