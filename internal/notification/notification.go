package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindUserCreated is emitted when an exchange creates a user.
	KindUserCreated = "identity.user.created"
	// KindWalletsReconciled is emitted when an exchange changed a user's stored wallets.
	KindWalletsReconciled = "identity.wallets.reconciled"
)

// Event describes an identity change other systems may react to.
type Event struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Inserted   []string  `json:"inserted,omitempty"`
	Deleted    []string  `json:"deleted,omitempty"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", event.Kind),
		slog.String("user_id", event.UserID),
		slog.Int("inserted", len(event.Inserted)),
		slog.Int("deleted", len(event.Deleted)),
	)
	return nil
}
