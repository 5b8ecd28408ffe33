// internal/notify/dispatcher.go
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"placement-backend/internal/common/config"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/common/metrics"
	"placement-backend/internal/models"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var priorityRank = map[string]int{
	models.PriorityLow:    0,
	models.PriorityNormal: 1,
	models.PriorityHigh:   2,
}

// Dispatcher is the production Emitter. Every event is persisted to the
// notifications table and published on the recipient's Redis channel; email
// and SMS channels are config-gated, with SMS further gated by priority.
// No delivery path returns an error to the caller.
type Dispatcher struct {
	cfg       config.NotificationConfig
	db        *sql.DB
	redis     *redis.Client
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewDispatcher(cfg config.NotificationConfig, db *sql.DB, rdb *redis.Client, sesClient SESService, snsClient SNSService, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		db:        db,
		redis:     rdb,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
	}
}

// Emit delivers one notification. Fire-and-forget: all failures are logged
// and counted, never surfaced.
func (d *Dispatcher) Emit(ctx context.Context, userID int64, notification models.Notification) {
	notification.UserID = userID
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.Priority == "" {
		notification.Priority = models.PriorityNormal
	}
	if notification.CreatedAt == "" {
		notification.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	d.persist(ctx, notification)
	d.publish(ctx, notification)

	email, phone, err := d.recipientContact(ctx, userID)
	if err != nil {
		d.logger.Warn("recipient not found", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
		return
	}

	if d.cfg.Email.Enabled && email != "" {
		if err := d.sendEmail(ctx, email, notification.Title, notification.Message); err != nil {
			d.logger.Error("email send failed", map[string]interface{}{
				"error":          err,
				"notificationId": notification.ID,
			})
			metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
		} else {
			metrics.NotificationsSent.WithLabelValues("email", "sent").Inc()
		}
	}

	if d.cfg.SMS.Enabled && phone != "" && d.meetsSMSThreshold(notification.Priority) {
		if err := d.sendSMS(ctx, phone, notification.Message); err != nil {
			d.logger.Error("SMS send failed", map[string]interface{}{
				"error":          err,
				"notificationId": notification.ID,
			})
			metrics.NotificationsSent.WithLabelValues("sms", "failed").Inc()
		} else {
			metrics.NotificationsSent.WithLabelValues("sms", "sent").Inc()
		}
	}
}

// persist writes the notification row so the user sees it in-app even when
// every push channel is down.
func (d *Dispatcher) persist(ctx context.Context, n models.Notification) {
	if d.db == nil {
		return
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, priority, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, metadata)
	if err != nil {
		d.logger.Error("notification persist failed", map[string]interface{}{
			"error":          err,
			"notificationId": n.ID,
		})
		metrics.NotificationsSent.WithLabelValues("database", "failed").Inc()
		return
	}
	metrics.NotificationsSent.WithLabelValues("database", "sent").Inc()
}

// publish pushes the event to the user's channel for any live websocket
// bridge to pick up.
func (d *Dispatcher) publish(ctx context.Context, n models.Notification) {
	if d.redis == nil {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return
	}

	channel := fmt.Sprintf("notifications:user:%d", n.UserID)
	if err := d.redis.Publish(ctx, channel, payload).Err(); err != nil {
		d.logger.Warn("redis publish failed", map[string]interface{}{
			"error":   err,
			"channel": channel,
		})
		metrics.NotificationsSent.WithLabelValues("redis", "failed").Inc()
		return
	}
	metrics.NotificationsSent.WithLabelValues("redis", "sent").Inc()
}

func (d *Dispatcher) recipientContact(ctx context.Context, userID int64) (string, string, error) {
	var email string
	var phone sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT email, phone FROM users WHERE id = $1`, userID).Scan(&email, &phone)
	if err != nil {
		return "", "", err
	}
	return email, phone.String, nil
}

func (d *Dispatcher) meetsSMSThreshold(priority string) bool {
	threshold := d.cfg.SMS.PriorityThreshold
	if threshold == "" {
		threshold = models.PriorityHigh
	}
	return priorityRank[priority] >= priorityRank[threshold]
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	if d.sesClient == nil {
		return fmt.Errorf("ses client not configured")
	}
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.cfg.Email.FromEmail),
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, message string) error {
	if d.snsClient == nil {
		return fmt.Errorf("sns client not configured")
	}
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
