// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"time"

	"rpas-compliance/internal/common/config"
	apperrors "rpas-compliance/internal/common/errors"
	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/docstore"
	"rpas-compliance/internal/models"
	"rpas-compliance/internal/risk"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier scans permits across tenants and reminds holders of upcoming
// expiries. Email goes out for warning and critical windows; SMS only for
// critical, and only when a phone number is on file.
type Notifier struct {
	store     docstore.Store
	config    config.NotificationConfig
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
	now       func() time.Time
}

func NewNotifier(store docstore.Store, cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		store:     store,
		config:    cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log,
		now:       time.Now,
	}
}

// ScanResult summarizes one scan pass.
type ScanResult struct {
	Scanned    int
	EmailsSent int
	SMSSent    int
	Failures   int
}

// Run scans on the configured interval until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	interval := time.Duration(n.config.ScanInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := n.Scan(ctx)
			if err != nil {
				n.logger.Error("permit scan failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			n.logger.Info("permit scan complete", map[string]interface{}{
				"scanned":    result.Scanned,
				"emailsSent": result.EmailsSent,
				"smsSent":    result.SMSSent,
				"failures":   result.Failures,
			})
		}
	}
}

// Scan walks every tenant's permits once. Send failures are counted and
// logged but do not stop the pass.
func (n *Notifier) Scan(ctx context.Context) (*ScanResult, error) {
	orgIDs, err := n.store.ListOrgIDs(ctx, docstore.CollectionPermits)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	for _, orgID := range orgIDs {
		docs, err := n.store.Query(ctx, docstore.Query{
			Collection: docstore.CollectionPermits,
			OrgID:      orgID,
		})
		if err != nil {
			n.logger.Error("failed to list permits", map[string]interface{}{
				"organizationId": orgID,
				"error":          err.Error(),
			})
			result.Failures++
			continue
		}

		for _, doc := range docs {
			var permit models.Permit
			if err := docstore.Decode(doc.Data, &permit); err != nil {
				result.Failures++
				continue
			}
			result.Scanned++
			n.remind(ctx, &permit, result)
		}
	}
	return result, nil
}

func (n *Notifier) remind(ctx context.Context, permit *models.Permit, result *ScanResult) {
	window := risk.ExpiryWindow(permit.ExpiresAt, n.now())
	if window == risk.ExpiryOK {
		return
	}

	subject, body := renderReminder(permit, window)

	if n.config.Email.Enabled && permit.HolderEmail != "" {
		if err := n.sendEmail(ctx, permit.HolderEmail, subject, body); err != nil {
			n.logger.Error("permit reminder email failed", map[string]interface{}{
				"permitId": permit.ID,
				"error":    err.Error(),
			})
			result.Failures++
		} else {
			result.EmailsSent++
		}
	}

	if n.config.SMS.Enabled && permit.HolderPhone != "" && window == risk.ExpiryCritical {
		if err := n.sendSMS(ctx, permit.HolderPhone, body); err != nil {
			n.logger.Error("permit reminder SMS failed", map[string]interface{}{
				"permitId": permit.ID,
				"error":    err.Error(),
			})
			result.Failures++
		} else {
			result.SMSSent++
		}
	}
}

func renderReminder(permit *models.Permit, window string) (string, string) {
	expiry := permit.ExpiresAt.Format("2006-01-02")
	switch window {
	case risk.ExpiryExpired:
		return fmt.Sprintf("Permit %s has expired", permit.Title),
			fmt.Sprintf("Permit %s (%s) expired on %s. Operations under it must stop until it is renewed.", permit.Title, permit.PermitNumber, expiry)
	case risk.ExpiryCritical:
		return fmt.Sprintf("Permit %s expires within 7 days", permit.Title),
			fmt.Sprintf("Permit %s (%s) expires on %s. Renew it now to avoid an operational gap.", permit.Title, permit.PermitNumber, expiry)
	default:
		return fmt.Sprintf("Permit %s expires soon", permit.Title),
			fmt.Sprintf("Permit %s (%s) expires on %s. Plan its renewal.", permit.Title, permit.PermitNumber, expiry)
	}
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	if err != nil {
		return apperrors.NewNotificationFailedError("email", err)
	}
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return apperrors.NewNotificationFailedError("sms", err)
	}
	return nil
}
