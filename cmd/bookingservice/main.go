package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/cabbook/internal/booking/dispatch"
	"github.com/example/cabbook/internal/booking/domain"
	"github.com/example/cabbook/internal/booking/handler"
	"github.com/example/cabbook/internal/booking/repository"
	"github.com/example/cabbook/internal/booking/rpc"
	"github.com/example/cabbook/internal/booking/service"
	"github.com/example/cabbook/internal/config"
	"github.com/example/cabbook/internal/http/middleware"
	outboxworker "github.com/example/cabbook/internal/outbox"
	"github.com/example/cabbook/pkg/observability"
	outboxpkg "github.com/example/cabbook/pkg/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	logger := observability.SetupLogger("booking-service", cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "booking-service", nil)
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background()) //nolint:errcheck
	}

	checks := map[string]observability.ReadyCheck{}

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal("postgres migrate", zap.Error(err))
		}
		checks["postgres"] = db.PingContext
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("bookingservice")); err == nil {
			natsConn = conn
			defer conn.Drain() //nolint:errcheck
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	store := buildStore(db, natsConn, logger, cfg)
	idem := buildIdempotency(redisClient, cfg)

	svc := service.New(store, dispatch.New(), domain.SystemClock{}, idem, logger.Named("service"),
		service.WithTimeout(cfg.OpTimeout))

	var limiter *middleware.RateLimiter
	if redisClient != nil {
		limiter = middleware.NewRateLimiter(redisClient, logger.Named("ratelimit"),
			middleware.RateConfig{Rate: cfg.ReadRate, Burst: cfg.ReadBurst},
			middleware.RateConfig{Rate: cfg.WriteRate, Burst: cfg.WriteBurst})
	}

	r := chi.NewRouter()
	r.Mount("/observability", observability.MetricsRouter(checks))
	r.Mount("/", handler.NewHTTP(svc, limiter.Middleware).Router())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else if db != nil {
		logger.Warn("outbox worker disabled, events stay in the outbox table until NATS is configured")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}
	grpcSrv := rpc.NewGRPCServer(svc, logger.Named("grpc"))

	go func() {
		logger.Info("booking grpc listening", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("booking http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
}

// buildStore picks Postgres with the outbox when a DSN is configured,
// otherwise the in-memory store publishing straight to NATS.
func buildStore(db *sql.DB, natsConn *nats.Conn, logger *zap.Logger, cfg config.Config) domain.Transactor {
	if db != nil {
		return repository.NewPostgresStore(db, cfg.EventsSubject, logger.Named("postgres"))
	}
	return repository.NewMemoryStore(
		repository.WithPublisher(outboxpkg.NewPublisher(natsConn, cfg.EventsSubject)),
		repository.WithLogger(logger.Named("memory")),
	)
}

func buildIdempotency(redisClient *redis.Client, cfg config.Config) domain.IdempotencyRepository {
	if redisClient == nil {
		return repository.NewMemoryIdempotencyRepo(cfg.IdempotencyTTL)
	}
	return repository.NewRedisIdempotencyRepo(redisClient, "", cfg.IdempotencyTTL)
}
