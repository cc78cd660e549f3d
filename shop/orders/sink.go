// Package orders stores and announces finalized orders.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/shop/order"
)

// Sink consumes finalized orders.
type Sink interface {
	RecordOrder(ctx context.Context, o order.Order) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, o order.Order) error

// RecordOrder calls f.
func (f SinkFunc) RecordOrder(ctx context.Context, o order.Order) error { return f(ctx, o) }

// Multi hands an order to every sink in turn. One failing sink does not stop the others.
type Multi []Sink

// RecordOrder runs all sinks and joins their errors.
func (m Multi) RecordOrder(ctx context.Context, o order.Order) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.RecordOrder(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	attrs := []slog.Attr{
		slog.String("order_id", o.ID.String()),
		slog.Int("sinks", len(m)),
		slog.Int("total", o.Total),
		slog.String("status", logger.Status(err)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, logger.ErrAttr(err))
	}
	logger.LogEvent(ctx, logger.Orders, level, "order.record", attrs...)
	return err
}

// AdminMessage renders the plain-text order announcement sent to admins.
func AdminMessage(o order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Нове замовлення від %s\n", o.FullName())
	fmt.Fprintf(&b, "Телефон: %s\n", o.CustomerPhone)
	fmt.Fprintf(&b, "Вид оплати: %s\nАдреса доставки: %s\n\n", o.PaymentMethod, o.DeliveryAddress)
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "%s - Кількість: %d, Ціна за одиницю: %d, Ціна всього: %d\n",
			l.ProductName, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	fmt.Fprintf(&b, "\nЗагальна сума: %d грн", o.Total)
	return b.String()
}
