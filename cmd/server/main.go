package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "time/tzdata"

	"github.com/iliyamo/store-reservation/internal/config"
	"github.com/iliyamo/store-reservation/internal/database"
	"github.com/iliyamo/store-reservation/internal/geocode"
	"github.com/iliyamo/store-reservation/internal/handler"
	"github.com/iliyamo/store-reservation/internal/logger"
	"github.com/iliyamo/store-reservation/internal/middleware"
	"github.com/iliyamo/store-reservation/internal/observability"
	"github.com/iliyamo/store-reservation/internal/queue"
	"github.com/iliyamo/store-reservation/internal/repository"
	"github.com/iliyamo/store-reservation/internal/repository/memory"
	"github.com/iliyamo/store-reservation/internal/reservation"
	"github.com/iliyamo/store-reservation/internal/router"
	"github.com/iliyamo/store-reservation/internal/store"
)

const (
	serviceName    = "store-reservation"
	serviceVersion = "1.0.0"
)

// backend is what the services and auth endpoints need from storage.
type backend interface {
	reservation.Repository
	store.Repository
	handler.AuthStore
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		zap.L().Fatal("load .env", zap.Error(err))
	}
	cfg, err := config.Load()
	log := logger.New(serviceName, cfg.LogLevel, cfg.Env)
	defer log.Sync()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, serviceVersion, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("setup tracing", zap.Error(err))
	}

	repo, closeRepo := openBackend(ctx, cfg, log)
	defer closeRepo()

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, running without cache and rate limit", zap.Error(err))
		rdb = nil
	}

	var publisher reservation.Publisher
	checks := map[string]handler.Checker{}
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, serviceName, log.Named("publisher"))
		if err != nil {
			log.Warn("rabbitmq unavailable, reservation events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			publisher = pub
			checks["rabbitmq"] = pub
			go func() {
				_ = queue.NewConsumer(cfg.RabbitURL, cfg.EventLogPath, log.Named("consumer")).Run(ctx)
			}()
		}
	}

	reservations := reservation.NewService(repo, publisher, log.Named("reservation"), cfg.Location)
	var geo store.Geocoder
	if cfg.KakaoRestKey != "" {
		geo = geocode.NewKakao(cfg.KakaoRestKey, "", log.Named("geocode"))
	} else {
		log.Warn("KAKAO_REST_KEY not set, stores are saved without coordinates")
	}
	stores := store.NewService(repo, geo, reservations, log.Named("store"))
	storeCache := middleware.NewCacheInvalidator(config.LoadCacheConfig(), rdb, log.Named("cache"))

	if cfg.RetentionDays > 0 {
		go reservations.RunRetention(ctx, cfg.RetentionDays, 24*time.Hour)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echomw.Recover())
	e.Use(middleware.Metrics())

	router.Register(e,
		router.Handlers{
			Health:       handler.NewHealthHandler(checks),
			Auth:         handler.NewAuthHandler(cfg, repo, log.Named("auth")),
			Stores:       handler.NewStoreHandler(stores, storeCache, log.Named("store")),
			Reservations: handler.NewReservationHandler(reservations, storeCache, log.Named("reservation")),
		},
		redisMiddleware(rdb, log),
		cfg.JWTSecret,
	)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown", zap.Error(err))
	}
}

// openBackend selects the storage named by STORAGE.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (backend, func()) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}
	return repository.NewMySQL(db), func() { _ = db.Close() }
}

func redisMiddleware(rdb *redis.Client, log *zap.Logger) router.Middleware {
	return router.Middleware{
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log.Named("cache")),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")),
	}
}
