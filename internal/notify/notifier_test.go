// internal/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"rpas-compliance/internal/common/config"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	Calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.Calls = append(m.Calls, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.Calls = append(m.Calls, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

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

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() config.NotificationConfig {
	cfg := config.NotificationConfig{ScanInterval: 1000}
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "compliance@rpas.example"
	cfg.SMS.Enabled = true
	return cfg
}

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func createTestNotifier(t *testing.T) (*Notifier, *docstore.MemStore, *MockSESService, *MockSNSService) {
	t.Helper()
	store := docstore.NewMemStore()
	mockSES := &MockSESService{}
	mockSNS := &MockSNSService{}
	n := NewNotifier(store, createTestConfig(), mockSES, mockSNS, newTestLogger(t))
	n.now = func() time.Time { return testNow }
	return n, store, mockSES, mockSNS
}

func storeTestPermit(t *testing.T, store *docstore.MemStore, orgID string, permit models.Permit) {
	t.Helper()
	permit.ID = uuid.New().String()
	permit.OrganizationID = orgID
	data, err := docstore.Encode(&permit)
	require.NoError(t, err)
	_, err = store.Create(context.Background(), &docstore.Document{
		Collection: docstore.CollectionPermits,
		ID:         permit.ID,
		OrgID:      orgID,
		Data:       data,
		CreatedBy:  "test",
	})
	require.NoError(t, err)
}

// ==========================
// Tests
// ==========================

func TestNotifier_Scan_EmailWindows(t *testing.T) {
	n, store, mockSES, mockSNS := createTestNotifier(t)

	storeTestPermit(t, store, "org-1", models.Permit{
		Title:       "Safe permit",
		HolderEmail: "ops@one.example",
		ExpiresAt:   testNow.AddDate(0, 6, 0),
	})
	storeTestPermit(t, store, "org-1", models.Permit{
		Title:       "Warning permit",
		HolderEmail: "ops@one.example",
		ExpiresAt:   testNow.AddDate(0, 0, 20),
	})
	storeTestPermit(t, store, "org-2", models.Permit{
		Title:       "Expired permit",
		HolderEmail: "ops@two.example",
		ExpiresAt:   testNow.AddDate(0, 0, -1),
	})

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.EmailsSent)
	assert.Equal(t, 0, result.SMSSent)
	assert.Equal(t, 0, result.Failures)
	assert.Len(t, mockSES.Calls, 2)
	assert.Empty(t, mockSNS.Calls)
}

func TestNotifier_Scan_CriticalSendsSMS(t *testing.T) {
	n, store, mockSES, mockSNS := createTestNotifier(t)

	storeTestPermit(t, store, "org-1", models.Permit{
		Title:        "SFOC urban",
		PermitNumber: "SFOC-2026-014",
		HolderEmail:  "ops@one.example",
		HolderPhone:  "+15145550100",
		ExpiresAt:    testNow.AddDate(0, 0, 3),
	})

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.EmailsSent)
	assert.Equal(t, 1, result.SMSSent)
	require.Len(t, mockSES.Calls, 1)
	assert.Contains(t, *mockSES.Calls[0].Message.Subject.Data, "expires within 7 days")
	require.Len(t, mockSNS.Calls, 1)
	assert.Equal(t, "+15145550100", *mockSNS.Calls[0].PhoneNumber)
}

func TestNotifier_Scan_NoSMSWithoutPhone(t *testing.T) {
	n, store, _, mockSNS := createTestNotifier(t)

	storeTestPermit(t, store, "org-1", models.Permit{
		Title:       "No phone on file",
		HolderEmail: "ops@one.example",
		ExpiresAt:   testNow.AddDate(0, 0, 2),
	})

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.EmailsSent)
	assert.Equal(t, 0, result.SMSSent)
	assert.Empty(t, mockSNS.Calls)
}

func TestNotifier_Scan_DisabledChannels(t *testing.T) {
	n, store, mockSES, mockSNS := createTestNotifier(t)
	n.config.Email.Enabled = false
	n.config.SMS.Enabled = false

	storeTestPermit(t, store, "org-1", models.Permit{
		Title:       "Critical but muted",
		HolderEmail: "ops@one.example",
		HolderPhone: "+15145550100",
		ExpiresAt:   testNow.AddDate(0, 0, 2),
	})

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.EmailsSent)
	assert.Equal(t, 0, result.SMSSent)
	assert.Empty(t, mockSES.Calls)
	assert.Empty(t, mockSNS.Calls)
}

func TestNotifier_Scan_SendFailureCounted(t *testing.T) {
	n, store, mockSES, _ := createTestNotifier(t)
	mockSES.SendEmailFunc = func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("throttled")
	}

	storeTestPermit(t, store, "org-1", models.Permit{
		Title:       "Failing send",
		HolderEmail: "ops@one.example",
		ExpiresAt:   testNow.AddDate(0, 0, 10),
	})

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.EmailsSent)
	assert.Equal(t, 1, result.Failures)
}

func TestNotifier_Scan_EmptyStore(t *testing.T) {
	n, _, mockSES, _ := createTestNotifier(t)

	result, err := n.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Scanned)
	assert.Empty(t, mockSES.Calls)
}
