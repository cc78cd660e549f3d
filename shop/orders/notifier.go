package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/sender"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/order"
)

// AdminLister resolves the chats that receive order announcements.
type AdminLister interface {
	AdminChatIDs(ctx context.Context) ([]int64, error)
}

// Enqueuer schedules outbound calls; *sender.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, j sender.Job) error
}

// Notifier announces orders to every admin chat.
type Notifier struct {
	transport chat.Transport
	admins    AdminLister
	queue     Enqueuer
}

// NewNotifier sends through queue when it is non-nil, synchronously otherwise.
func NewNotifier(transport chat.Transport, admins AdminLister, queue Enqueuer) *Notifier {
	return &Notifier{transport: transport, admins: admins, queue: queue}
}

// RecordOrder sends AdminMessage(o) to each admin. Delivery failures are
// logged by the queue; only admin lookup and enqueue errors are returned.
func (n *Notifier) RecordOrder(ctx context.Context, o order.Order) error {
	ids, err := n.admins.AdminChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("orders: list admins: %w", err)
	}
	if len(ids) == 0 {
		logger.LogEvent(ctx, logger.Orders, slog.LevelWarn, "notify.no_admins",
			slog.String("order_id", o.ID.String()),
		)
		return nil
	}

	msg := chat.Message{Text: AdminMessage(o)}
	for _, id := range ids {
		adminID := id
		run := func(ctx context.Context) error {
			_, err := n.transport.SendText(ctx, adminID, msg)
			return err
		}
		if n.queue == nil {
			if err := run(ctx); err != nil {
				return fmt.Errorf("orders: notify %d: %w", adminID, err)
			}
			continue
		}
		if err := n.queue.Enqueue(ctx, sender.Job{Action: "order.notify", ChatID: adminID, Run: run}); err != nil {
			return fmt.Errorf("orders: enqueue notify %d: %w", adminID, err)
		}
	}
	logger.LogEvent(ctx, logger.Orders, slog.LevelInfo, "notify.admins",
		slog.String("order_id", o.ID.String()),
		slog.Int("admins", len(ids)),
	)
	return nil
}
