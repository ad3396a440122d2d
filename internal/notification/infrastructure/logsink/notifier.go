package logsink

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/cafe-order-core/internal/notification/domain"
)

// Notifier writes customer notices to the log. It stands in for the SMS and
// email channels.
type Notifier struct {
	log *slog.Logger
}

func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) Notify(ctx context.Context, notice domain.Notice) error {
	n.log.InfoContext(ctx, "customer notified",
		"order_id", notice.OrderID,
		"kind", notice.Kind,
		"customer", notice.Customer,
		"message", notice.Message,
	)
	return nil
}
