package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/middleware"
	tgsender "github.com/m3rciful/storebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// Wire runs after the bot and dispatcher exist and returns routes that depend on them.
	Wire func(ctx context.Context, rt Runtime) ([]Route, error)

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// DispatcherOptionsFrom maps the sender config section.
func DispatcherOptionsFrom(cfg coreconfig.SenderConfig) tgsender.Options {
	return tgsender.Options{
		QueueSize:  cfg.QueueSize,
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
	}
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	pollerOpts := PollerOptionsFrom(cfg)
	poller := BuildPoller(pollerOpts)

	buildStart := time.Now()
	onError := func(err error, c tele.Context) {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.handler_error",
			logger.ErrAttr(err),
		)
	}
	lanes := middleware.NewChatLanes(onError)
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(pollerOpts.LongPollTimeout()),
		// updates are handed to chat lanes one by one, in arrival order
		Synchronous: true,
		OnError:     onError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcherOpts := opts.DispatcherOptions
		if dispatcherOpts == (tgsender.Options{}) {
			dispatcherOpts = DispatcherOptionsFrom(cfg.Sender)
		}
		dispatcher = tgsender.NewDispatcher(dispatcherOpts)
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
	}

	logMode(ctx, cfg, poller, buildTook, !opts.DisableWebhookCleanup)

	routes := opts.Routes
	if opts.Wire != nil {
		extra, err := opts.Wire(ctx, rt)
		if err != nil {
			dispatcher.Close()
			return fmt.Errorf("telegram: wiring failed: %w", err)
		}
		routes = append(routes, extra...)
	}

	bot.Use(lanes.Middleware)
	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	wired := 0
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
		wired++
	}
	names, _ := logger.SummarizeStrings(MiddlewareNames(opts.Middlewares), 8)
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "tg.wire",
		slog.Int("routes", wired),
		slog.String("middlewares", names),
	)

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	// ctx is already done here; shutdown gets a fresh deadline of its own
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := lanes.Wait(stopCtx); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.drain",
			slog.Int("chats", lanes.Active()),
			logger.ErrAttr(err),
		)
	}
	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(stopCtx, rt)
	}

	dispatcher.Close()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	}

	return nil
}

func logMode(ctx context.Context, cfg *coreconfig.Config, poller tele.Poller, buildTook time.Duration, cleanup bool) {
	switch p := poller.(type) {
	case *tele.Webhook:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	case *tele.LongPoller:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)

		if cleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			err := deleteWebhook(ctx, cfg.Telegram.Token, false)
			level := slog.LevelInfo
			attrs := []slog.Attr{slog.String("mode", "polling"), slog.String("status", logger.Status(err))}
			if err != nil {
				level = slog.LevelWarn
				attrs = append(attrs, logger.ErrAttr(err))
			}
			logger.LogEvent(ctx, logger.TG, level, "delete_webhook", attrs...)
		}
	}
}

func deleteWebhook(ctx context.Context, token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	body := "drop_pending_updates=false"
	if dropPending {
		body = "drop_pending_updates=true"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.New("deleteWebhook request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
