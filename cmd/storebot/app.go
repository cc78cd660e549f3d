package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/storebot/core/bootstrap"
	corecmd "github.com/m3rciful/storebot/core/cmd"
	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	coretelegram "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/shop/bot"
	"github.com/m3rciful/storebot/shop/catalog"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/orders"
	"github.com/m3rciful/storebot/shop/session"
	"github.com/m3rciful/storebot/shop/settings"
)

// app holds the infrastructure opened at bootstrap.
type app struct {
	cfg      *coreconfig.Config
	db       *sqlx.DB
	catalog  catalog.Catalog
	settings settings.Store
}

func bootstrapApp(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg.Shop.CatalogFile)
	if err != nil {
		closeDB(res.DB)
		return nil, err
	}

	store, err := settings.Open(context.Background(), cfg)
	if err != nil {
		closeDB(res.DB)
		return nil, fmt.Errorf("app: open settings: %w", err)
	}

	return &app{cfg: cfg, db: res.DB, catalog: cat, settings: store}, nil
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		logger.Info(context.Background(), "app", "catalog.default")
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: load catalog: %w", err)
	}
	logger.Info(context.Background(), "app", "catalog.loaded",
		slog.String("path", path),
		slog.Int("products", len(cat.List())),
	)
	return cat, nil
}

// TelegramRunOptions builds the runtime; shop routes are wired once the bot exists.
func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    coretelegram.NewRegistry(),
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, bot.Limited),
		Wire:        a.wire,
		OnStop:      a.stop,
	}, nil
}

func (a *app) wire(_ context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	transport := chat.NewTelebotTransport(rt.Bot)

	fileSink, err := orders.NewFileSink(a.cfg.Shop.OrdersDir)
	if err != nil {
		return nil, err
	}
	sinks := orders.Multi{fileSink}

	var lister bot.OrderLister
	if a.db != nil {
		repo := orders.NewRepository(a.db)
		sinks = append(sinks, repo)
		lister = repo
	}
	sinks = append(sinks, orders.NewNotifier(transport, a.settings, rt.Dispatcher))

	manager := session.NewManager(session.Options{
		Catalog:      a.catalog,
		Transport:    transport,
		Admins:       a.settings,
		Sink:         sinks,
		WelcomePhoto: a.cfg.Shop.WelcomePhoto,
		WelcomeText:  a.cfg.Shop.WelcomeText,
	})

	handlers := bot.New(bot.Options{
		Shop:      manager,
		Transport: transport,
		Orders:    lister,
	})
	if err := handlers.Register(rt.Registry); err != nil {
		return nil, err
	}
	return handlers.Routes(rt.Registry), nil
}

func (a *app) stop(ctx context.Context, rt coretelegram.Runtime) error {
	var errs []error
	if err := a.settings.Close(); err != nil {
		errs = append(errs, fmt.Errorf("app: close settings: %w", err))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close db: %w", err))
		}
	}
	if rt.Dispatcher != nil {
		logger.Info(ctx, "app", "stopped",
			slog.Uint64("notifications_sent", rt.Dispatcher.Completed()),
			slog.Uint64("notification_errors", rt.Dispatcher.ErrorCount()),
		)
	}
	return errors.Join(errs...)
}

func closeDB(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}
