package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
	"github.com/m3rciful/storebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Counters tracks how many messages a single update produced and whether any carried a keyboard.
type Counters struct {
	messages atomic.Int32
	kb       atomic.Bool
}

type countersKey struct{}

// WithCounters attaches fresh counters to ctx.
func WithCounters(ctx context.Context) (context.Context, *Counters) {
	c := &Counters{}
	return context.WithValue(ctx, countersKey{}, c), c
}

// CountersFrom returns the counters attached to ctx, if any.
func CountersFrom(ctx context.Context) (*Counters, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(countersKey{}).(*Counters)
	return c, ok && c != nil
}

// CountMessage records one outbound message against the update carried by ctx.
// Calls without counters in ctx are ignored.
func CountMessage(ctx context.Context, hasKB bool) {
	c, ok := CountersFrom(ctx)
	if !ok {
		return
	}
	c.messages.Add(1)
	if hasKB {
		c.kb.Store(true)
	}
}

// Snapshot returns the message count and keyboard flag.
func (c *Counters) Snapshot() (int, bool) {
	if c == nil {
		return 0, false
	}
	return int(c.messages.Load()), c.kb.Load()
}

// metricsContext wraps tele.Context so replies sent straight through it are counted too.
type metricsContext struct {
	tele.Context
	ctx context.Context
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && keyboard.HasInline(v.ReplyMarkup) {
				return true
			}
		case *tele.ReplyMarkup:
			if keyboard.HasInline(v) {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		CountMessage(m.ctx, hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		CountMessage(m.ctx, hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware attaches per-update counters to the stored request context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if _, ok := CountersFrom(ctx); !ok {
			ctx, _ = WithCounters(ctx)
			tghelpers.StoreContext(c, ctx)
		}
		return next(metricsContext{Context: c, ctx: ctx})
	}
}

// GetCounters reads message count and keyboard presence flags for the update.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	counters, _ := CountersFrom(ctx)
	return counters.Snapshot()
}
