package router

import (
	"log/slog"
	"sync/atomic"
	"time"

	tg "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/callbacks"
	"github.com/m3rciful/storebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// ackContext remembers whether the handler already answered the callback query.
type ackContext struct {
	tele.Context
	answered atomic.Bool
}

func (a *ackContext) Respond(resp ...*tele.CallbackResponse) error {
	a.answered.Store(true)
	return a.Context.Respond(resp...)
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Every query is answered exactly once: by the handler, or with an empty
// acknowledgement after it returns.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		target, ok := reg.GetCallback(key)
		if !ok || target == nil {
			target = opts.NotFound
			if target == nil {
				target = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}

		ac := &ackContext{Context: c}
		defer func() {
			if !ac.answered.Load() {
				_ = c.Respond()
			}
		}()
		return handleWithSummary(ac, name, start, "", "", func() error {
			if target == nil {
				return nil
			}
			return target(ac)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
