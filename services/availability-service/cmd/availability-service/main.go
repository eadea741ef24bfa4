package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msaldawsari/chaletbook/libs/config"
	"github.com/msaldawsari/chaletbook/libs/db"
	"github.com/msaldawsari/chaletbook/libs/httpx"
	"github.com/msaldawsari/chaletbook/libs/kafkax"
	otelx "github.com/msaldawsari/chaletbook/libs/otel"
	"github.com/msaldawsari/chaletbook/libs/runtime"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/availability"
	availcache "github.com/msaldawsari/chaletbook/services/availability-service/internal/cache"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/consumer"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/handlers"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/inbox"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/jobs"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/model"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/outbox"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/pricing"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/service"
	"github.com/msaldawsari/chaletbook/services/availability-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func promotionFromEnv(logger *slog.Logger) pricing.Promotion {
	pct := config.Float("PROMOTION_PERCENT", 0)
	until := config.String("PROMOTION_UNTIL", "")
	if pct <= 0 || until == "" {
		return pricing.Promotion{}
	}
	cutoff, err := time.Parse(time.RFC3339, until)
	if err != nil {
		logger.Warn("invalid PROMOTION_UNTIL, promotion disabled", "value", until)
		return pricing.Promotion{}
	}
	return pricing.Promotion{Percentage: pct, EffectiveUntil: cutoff}
}

func main() {
	serviceName := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer rdb.Close()
	} else {
		logger.Warn("redis not configured, availability cache disabled")
	}

	store := storage.NewStore(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	cache := availcache.New(rdb, logger, config.String("CACHE_PREFIX", "availability"))

	svc := service.New(store, cache, logger, service.Config{
		BookingGraceMinutes: config.Int("BOOKING_GRACE_MINUTES", 15),
		AvailabilityTTL:     config.Duration("AVAILABILITY_CACHE_TTL", time.Hour),
		SearchTTL:           config.Duration("SEARCH_CACHE_TTL", 30*time.Minute),
		Promotion:           promotionFromEnv(logger),
		Diagnostic:          config.Bool("DIAGNOSTIC_ERRORS", false),
	})

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	expirer := jobs.NewExpirer(pool, bookingRepo, outboxRepo, svc, logger, jobs.ExpirerConfig{
		Hold:     config.Duration("PENDING_BOOKING_HOLD", 30*time.Minute),
		Interval: config.Duration("PENDING_EXPIRY_INTERVAL", time.Minute),
	})
	go expirer.Run(ctx)

	startChannelSyncConsumer(ctx, pool, store, svc, logger)

	availabilityHandler := handlers.NewAvailabilityHandler(svc, logger)
	bookingHandler := handlers.NewBookingHandler(svc, store, bookingRepo, outboxRepo, logger)
	blockHandler := handlers.NewBlockHandler(pool, store, outboxRepo, svc, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck()})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/availability", availabilityHandler.Check)
	mux.HandleFunc("/api/v1/availability/combinations", availabilityHandler.Combinations)
	mux.HandleFunc("/api/v1/pricing", availabilityHandler.Pricing)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/validate", bookingHandler.Validate)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/blocks", blockHandler.Handle)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         10 * time.Minute,
		}))
	}
	rateLimit := config.Int("RATE_LIMIT", 120)
	rateWindow := config.Duration("RATE_LIMIT_WINDOW", time.Minute)
	if rdb != nil {
		// Shared counters across replicas when redis is available.
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, rateWindow, serviceName)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, rateWindow).Middleware())
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// startChannelSyncConsumer mirrors reservations synced from external booking
// channels into local blocked dates, so channel-held dates never sell twice.
func startChannelSyncConsumer(ctx context.Context, pool *db.Pool, store *storage.Store, svc *service.AvailabilityService, logger *slog.Logger) {
	topic := config.String("KAFKA_CONSUME_TOPIC", "channel.reservation.synced.v1")
	brokers := config.String("KAFKA_BROKERS", "")
	if topic == "" || brokers == "" {
		logger.Warn("channel sync consumer disabled")
		return
	}

	inboxRepo := inbox.NewRepository(pool)
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "availability-service"),
		Topic:   topic,
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			ChaletID string   `json:"chalet_id"`
			Dates    []string `json:"dates"`
			SlotID   string   `json:"slot_id"`
			Action   string   `json:"action"`
			Source   string   `json:"source"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		chaletID, err := uuid.Parse(payload.ChaletID)
		if err != nil || len(payload.Dates) == 0 {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		var slotID *uuid.UUID
		if payload.SlotID != "" {
			id, err := uuid.Parse(payload.SlotID)
			if err != nil {
				logger.Error("invalid slot id in event", "topic", msg.Topic)
				return nil
			}
			slotID = &id
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txStore := store.WithTx(tx)
		var dates []time.Time
		for _, raw := range payload.Dates {
			date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
			if err != nil {
				logger.Error("invalid date in event", "value", raw, "topic", msg.Topic)
				return nil
			}
			date = availability.DateOnly(date)
			dates = append(dates, date)

			if payload.Action == "released" {
				if err := txStore.DeleteBlockedDate(ctx, chaletID, date, slotID); err != nil {
					return err
				}
				continue
			}
			if _, err := txStore.UpsertBlockedDate(ctx, model.BlockedDate{
				ChaletID: chaletID,
				Date:     date,
				SlotID:   slotID,
				Reason:   "channel_sync",
				Note:     payload.Source,
			}); err != nil {
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}

		svc.ClearAvailabilityCache(ctx, chaletID, dates...)
		return nil
	})
	go eventConsumer.Run(ctx)
}
