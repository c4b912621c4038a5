package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rexliu/motoshop/pkg/api"
	"github.com/rexliu/motoshop/pkg/config"
	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/events"
	"github.com/rexliu/motoshop/pkg/session"
	"github.com/rexliu/motoshop/pkg/shop"
	"github.com/rexliu/motoshop/pkg/storage/sqlstore"
)

// daemon holds what must be closed on shutdown, in close order.
type daemon struct {
	store     *sqlstore.Store
	publisher events.Publisher
	sessions  session.Store
	services  api.Services
	logger    *zap.Logger
}

func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*daemon, error) {
	d := &daemon{logger: logger}
	ok := false
	defer func() {
		if !ok {
			d.close()
		}
	}()

	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:   cfg.Storage.Driver,
		DSN:      cfg.Storage.DSN,
		MaxConns: cfg.Storage.MaxConns,
		Logger:   logger.Named("storage"),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	d.store = store
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	switch cfg.Session.Backend {
	case "redis":
		rs, err := session.DialRedis(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		d.sessions = rs
	default:
		d.sessions = session.NewMemory(cfg.Session.TTL)
	}

	switch cfg.Events.Backend {
	case "amqp":
		pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, fmt.Errorf("connect event broker: %w", err)
		}
		d.publisher = pub
	default:
		d.publisher = events.Nop{}
	}

	opts := []shop.Option{
		shop.WithLogger(logger),
		shop.WithPublisher(d.publisher),
		shop.WithLowStockThreshold(cfg.Inventory.LowStockThreshold),
	}
	d.services = api.Services{
		Orders:    shop.NewOrders(store, opts...),
		Inventory: shop.NewInventory(store, opts...),
		Catalog:   shop.NewCatalog(store, opts...),
		Auth:      shop.NewAuth(store, d.sessions, shop.PlainCredentials, opts...),
	}
	logger.Info("backends ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("sessions", cfg.Session.Backend),
		zap.String("events", cfg.Events.Backend))
	ok = true
	return d, nil
}

func (d *daemon) close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("close store", zap.Error(err))
		}
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if d.sessions != nil {
		if err := d.sessions.Close(); err != nil {
			d.logger.Warn("close sessions", zap.Error(err))
		}
	}
}

// bootstrap creates the first admin account on an empty user table.
type bootstrap struct {
	user     string
	password string
}

func (b bootstrap) ensureAdmin(ctx context.Context, catalog *shop.Catalog, logger *zap.Logger) error {
	users, err := catalog.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}
	if b.password == "" {
		logger.Warn("no users exist; set " + config.EnvPrefix + "_ADMIN_PASSWORD to create the first admin")
		return nil
	}
	u, err := catalog.CreateUser(ctx, core.User{
		Username: b.user,
		Password: b.password,
		FullName: "Administrator",
		Role:     core.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin %q: %w", b.user, err)
	}
	logger.Info("created admin account", zap.String("username", u.Username), zap.Int64("id", u.ID))
	return nil
}
