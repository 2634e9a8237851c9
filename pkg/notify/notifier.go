package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

// Notifier delivers one notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// NATSNotifier publishes each notification as JSON on <prefix>.<recipient_id>. The messaging
// bot subscribes to the prefix and renders the payload for its transport.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("lessonsync-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewNATSNotifier wraps an established connection.
func NewNATSNotifier(conn *nats.Conn, prefix string) *NATSNotifier {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = "lessons.notify"
	}
	return &NATSNotifier{conn: conn, prefix: prefix}
}

// Subject returns the subject a recipient's notifications are published on.
func (n *NATSNotifier) Subject(recipientID string) string {
	return n.prefix + "." + recipientID
}

func (n *NATSNotifier) Notify(ctx context.Context, notification models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if notification.RecipientID == "" {
		return fmt.Errorf("notification has no recipient")
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.conn.Publish(n.Subject(notification.RecipientID), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notification models.Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(notification.Kind)),
		zap.String("recipient_id", notification.RecipientID),
		zap.String("series_id", notification.SeriesID),
		zap.String("original_date", notification.OriginalDate.String()),
	}
	if notification.RequestID != "" {
		fields = append(fields, zap.String("request_id", notification.RequestID))
	}
	if notification.NewSlot != nil {
		fields = append(fields, zap.String("new_slot", notification.NewSlot.String()))
	}
	n.logger.Info("notification", fields...)
	return nil
}
