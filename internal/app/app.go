package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/config"
	"github.com/kirinyoku/venuebook/internal/gateway"
	"github.com/kirinyoku/venuebook/internal/notify"
	"github.com/kirinyoku/venuebook/internal/postgres"
	"github.com/kirinyoku/venuebook/internal/redis"
	mongorepo "github.com/kirinyoku/venuebook/internal/repository/mongo"
	postgresrepo "github.com/kirinyoku/venuebook/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/service"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	"github.com/kirinyoku/venuebook/internal/service/invoice"
	"github.com/kirinyoku/venuebook/internal/service/payment"
	httpgin "github.com/kirinyoku/venuebook/internal/transport/http/gin"
	"github.com/kirinyoku/venuebook/internal/uow"
)

const (
	catalogTTL     = 5 * time.Minute
	catalogMissTTL = 30 * time.Second
	idempotencyTTL = 2 * time.Hour
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server

	pool     *pgxpool.Pool
	rdb      *goredis.Client
	mongo    *mongo.Client
	migrator *Migrator

	services  *service.Services
	pubsub    *redis.VenueDayPubSub
	scheduler *Scheduler
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:               cfg.Postgres.DSN(),
		AppName:           cfg.Postgres.AppName,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnIdle:       cfg.Postgres.MaxConnIdle,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	migrator, err := NewMigrator(pgxPool, logger)
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	if err := migrator.Run(ctx); err != nil {
		_ = migrator.Close()
		pgxPool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		_ = migrator.Close()
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	mongoClient, err := mongorepo.Connect(ctx, mongorepo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		_ = rdb.Close()
		_ = migrator.Close()
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize mongo: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb, redisrepo.WithMissTTL(catalogMissTTL))
	pubsub := redis.NewVenueDayPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, idempotencyTTL)

	dir := catalog.NewCached(mongorepo.NewDirectory(mongoClient.Database(cfg.Mongo.Database)), cache, catalogTTL)

	var publisher invoice.Publisher = notify.NewLogPublisher(logger)
	if cfg.AMQP.URL != "" {
		publisher = notify.NewAMQPPublisher(cfg.AMQP.URL, logger)
	}

	var gw gateway.Client
	if cfg.Gateway.Sandbox {
		logger.Warn("payment gateway running in sandbox mode")
		gw = gateway.NewSandbox(cfg.Gateway.KeySecret)
	} else {
		gw = gateway.NewRazorpay(gateway.Config{
			BaseURL:   cfg.Gateway.BaseURL,
			KeyID:     cfg.Gateway.KeyID,
			KeySecret: cfg.Gateway.KeySecret,
			Timeout:   cfg.Gateway.Timeout,
		})
	}

	// Initialize services
	services := service.NewServices(uow.NewUoW(store), dir, cache, pubsub, gw, publisher, logger, service.Config{
		Availability: availability.Config{},
		Payment: payment.Config{
			Currency:   cfg.Billing.Currency,
			RequestTTL: cfg.Billing.RequestTTL,
		},
		Invoice: invoice.Config{
			TaxRateBps: cfg.Billing.TaxRateBps,
			Currency:   cfg.Billing.Currency,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, limiter, cfg.Auth.JWTSecret, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		pool:      pgxPool,
		rdb:       rdb,
		mongo:     mongoClient,
		migrator:  migrator,
		services:  services,
		pubsub:    pubsub,
		scheduler: NewScheduler(services.Payment, cfg.ExpirySweepInterval, logger),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Drop busy-window cache entries changed by other instances
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, a.services.Availability.Forget)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("venue day subscription: %w", err)
		}
		return nil
	})

	// Expire overdue payment requests
	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := a.httpServer.Shutdown(ctx)
		a.close(ctx)
		return err
	})

	return g.Wait()
}

func (a *App) close(ctx context.Context) {
	if err := a.migrator.Close(); err != nil {
		a.logger.Warn("closing migrator connection", "error", err)
	}
	if err := a.mongo.Disconnect(ctx); err != nil {
		a.logger.Warn("disconnecting mongo", "error", err)
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("closing redis", "error", err)
	}
	a.pool.Close()
}
