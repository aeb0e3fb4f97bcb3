package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/api/router"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/config"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/messaging"
	"github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-booking/internal/worker"
)

func main() {
	// .env は任意
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Log.Env, cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("サーバー起動エラー", zap.Error(err))
	}
	log.Info("サーバーが正常にシャットダウンしました")
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET が設定されていません")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB接続
	db, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsDir); err != nil {
		return err
	}

	checks := map[string]handler.Checker{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}

	// Redis は任意。接続できない場合はロック・キャッシュ・レート制限なしで動く
	var (
		lockManager redisinfra.LockManagerInterface
		cache       redisinfra.AvailabilityCacheInterface
		limiter     redisinfra.RateLimiterInterface
		publisher   application.EventPublisher
	)
	redisClient, err := redisinfra.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn("Redisに接続できないため、ロックとキャッシュを無効化します", zap.Error(err))
	} else {
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
		cache = redisinfra.NewAvailabilityCache(redisClient)
		if cfg.RateLimit.Enabled {
			limiter = redisinfra.NewTokenBucketLimiter(redisClient,
				cfg.RateLimit.Capacity, cfg.RateLimit.RefillTokens, cfg.RateLimit.RefillInterval, cfg.RateLimit.TTL)
		}
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }

		if cfg.Messaging.Enabled {
			pub, bus, err := newEventBus(redisClient, cfg.Messaging.Topic, log)
			if err != nil {
				return err
			}
			defer pub.Close()
			publisher = bus
		}
	}

	m := metrics.New()

	bookingService, eventService, queryService := newServices(db, cfg, m, lockManager, cache, publisher)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, m)

	router.Register(e, router.Handlers{
		Health:  handler.NewHealthHandler(checks),
		Booking: handler.NewBookingHandler(bookingService, queryService),
		Event:   handler.NewEventHandler(eventService, queryService),
		Report:  handler.NewReportHandler(queryService),
	}, router.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimiter:     limiter,
		RateLimitPrefix: cfg.RateLimit.Prefix,
		Metrics:         cfg.Metrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("サーバー起動", zap.String("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Booking.CleanerEnabled() {
		cleaner := worker.NewStaleBookingCleaner(bookingService,
			cfg.Booking.CleanupInterval, cfg.Booking.PendingTTL, cfg.Booking.CleanupBatch)
		g.Go(func() error {
			cleaner.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("サーバーをシャットダウンしています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newServices(
	db *sqlx.DB,
	cfg *config.Config,
	m *metrics.Metrics,
	lockManager redisinfra.LockManagerInterface,
	cache redisinfra.AvailabilityCacheInterface,
	publisher application.EventPublisher,
) (*application.BookingService, *application.EventService, *application.QueryService) {
	eventRepo := postgres.NewEventRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	queryRepo := postgres.NewBookingQueryRepository(db)
	txManager := postgres.NewTxManager(db)

	bookingService := application.NewBookingService(txManager, bookingRepo, eventRepo, lockManager, cache, publisher,
		application.BookingOptions{
			LockTTL:        cfg.Booking.LockTTL,
			LockRetries:    cfg.Booking.LockRetries,
			LockRetryDelay: cfg.Booking.LockRetryDelay,
			Metrics:        m,
		})
	eventService := application.NewEventService(eventRepo, cache)
	queryService := application.NewQueryService(queryRepo, eventRepo, cache, cfg.Cache.AvailabilityTTL)
	return bookingService, eventService, queryService
}

func newEventBus(client *goredis.Client, topic string, log *zap.Logger) (message.Publisher, application.EventPublisher, error) {
	wmLogger := messaging.NewZapLoggerAdapter(log)
	pub, err := messaging.NewRedisPublisher(client, wmLogger)
	if err != nil {
		return nil, nil, err
	}
	bus, err := messaging.NewEventBus(pub, topic, wmLogger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}
	return pub, bus, nil
}
