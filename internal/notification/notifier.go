package notification

import (
	"context"
	"log/slog"
)

// Event kinds emitted by the money-movement services.
const (
	KindWalletFunded     = "wallet_funded"
	KindTransferReceived = "transfer_received"
	KindPayoutSent       = "payout_sent"
)

// Event is a user-facing notification about a completed money movement.
type Event struct {
	Kind      string
	AccountID string
	Reference string
	Amount    int64
	Currency  string
	Detail    string
}

// Notifier delivers events to users. Delivery is best effort; services never
// fail a posting because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LoggerNotifier writes notifications to the structured log, standing in for a
// push or SMS gateway.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a notifier backed by the given logger.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Notify(_ context.Context, event Event) {
	n.logger.Info("notification",
		"kind", event.Kind,
		"account_id", event.AccountID,
		"reference", event.Reference,
		"amount", event.Amount,
		"currency", event.Currency,
		"detail", event.Detail,
	)
}

// NopNotifier drops every event. Test double and default wiring fallback.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
