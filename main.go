package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"parcel-sorter/internal/circuitbreaker"
	"parcel-sorter/internal/common/logging"
	"parcel-sorter/internal/config"
	"parcel-sorter/internal/enrichment"
	"parcel-sorter/internal/events"
	"parcel-sorter/internal/events/kafka"
	"parcel-sorter/internal/events/rabbitmq"
	"parcel-sorter/internal/orchestrator"
	"parcel-sorter/internal/ratelimit"
	"parcel-sorter/internal/server"
	"parcel-sorter/internal/sorting"
	"parcel-sorter/internal/storage"
	_ "parcel-sorter/internal/storage/postgres"
	_ "parcel-sorter/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// The in-process bus always runs: it carries decisions to the audit log.
	// An external broker backend, when configured, receives the same stream.
	bus := events.NewBus()
	bus.Subscribe(events.TypeRuleMatchCompleted, recordDecision(store))

	publisher, err := buildPublisher(cfg, bus)
	if err != nil {
		log.Fatalf("Failed to initialize event backend: %v", err)
	}
	defer publisher.Close()

	engine := sorting.NewEngine(store, sorting.SystemClock{}, cfg.RuleCacheTTL)

	orch := orchestrator.New(engine, publisher, orchestrator.Options{
		QueueCapacity:       cfg.QueueCapacity,
		CartVolumeThreshold: cartVolumeThreshold(cfg),
		Enricher:            buildEnricher(cfg),
		EnrichmentTimeout:   cfg.EnrichmentTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.ProcessQueue(ctx)

	janitor := orchestrator.NewJanitor(orch.Store(), publisher, cfg.ContextTTL)
	if err := janitor.Start(cfg.ContextSweepSchedule); err != nil {
		log.Fatalf("Failed to start context janitor: %v", err)
	}
	defer janitor.Stop()

	srv := server.New(store, engine, orch, cfg, buildLimiter(cfg))
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info("HTTP server starting",
			logging.String("port", cfg.Port),
			logging.String("database", cfg.DatabaseType),
			logging.String("event_backend", cfg.EventBackend),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP server shutdown failed", err)
	}
	cancel()
}

// buildPublisher registers the broker backends, then composes the in-process
// bus with the configured external backend.
func buildPublisher(cfg *config.Config, bus *events.Bus) (events.Publisher, error) {
	registry := events.NewRegistry()
	registry.Register("rabbitmq", func() (events.Publisher, error) {
		return rabbitmq.NewPublisher(&rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
		})
	})
	registry.Register("kafka", func() (events.Publisher, error) {
		return kafka.NewPublisher(&kafka.Config{
			Brokers: strings.Split(cfg.KafkaBrokers, ","),
			Topic:   cfg.KafkaTopic,
		})
	})

	if cfg.EventBackend == "inproc" {
		return bus, nil
	}

	external, err := registry.Create(cfg.EventBackend)
	if err != nil {
		return nil, err
	}
	return events.NewFanout(bus, external), nil
}

// recordDecision writes each chute assignment to the audit log.
func recordDecision(store storage.Store) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		data, ok := event.Data.(events.RuleMatchCompletedData)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for %s", event.Data, event.Type)
		}
		return store.RecordDecision(ctx, &storage.Decision{
			ParcelID:   event.ParcelID,
			Chute:      data.Chute,
			RuleID:     data.RuleID,
			CartNumber: data.CartNumber,
			CartCount:  data.CartCount,
			Sequence:   data.Sequence,
			DecidedAt:  event.OccurredAt,
		})
	}
}

// redisClient builds the shared Redis client, or nil when no address is
// configured.
func redisClient(cfg *config.Config) *redis.Client {
	if cfg.RedisAddress == "" {
		return nil
	}
	db, _ := strconv.Atoi(cfg.RedisDB)
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       db,
	})
}

// buildEnricher wires the third-party lookup client behind a circuit breaker,
// wrapped in a Redis cache when one is configured. A nil return disables
// enrichment.
func buildEnricher(cfg *config.Config) orchestrator.Enricher {
	if cfg.EnrichmentURL == "" {
		return nil
	}

	client, err := enrichment.NewHTTPClient(&enrichment.HTTPConfig{
		URL:     cfg.EnrichmentURL,
		Timeout: cfg.EnrichmentTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize enrichment client: %v", err)
	}

	var enricher enrichment.Enricher = enrichment.NewBreakerEnricher(client, circuitbreaker.EnrichmentConfig)

	if rc := redisClient(cfg); rc != nil {
		enricher = enrichment.NewCachedEnricher(enricher, rc, cfg.EnrichmentCacheTTL)
	}
	return enricher
}

// buildLimiter rate-limits device ingest when Redis is available.
func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	rc := redisClient(cfg)
	if rc == nil {
		return nil
	}
	return ratelimit.NewLimiter(rc, nil)
}

func cartVolumeThreshold(cfg *config.Config) decimal.Decimal {
	threshold, err := decimal.NewFromString(cfg.CartVolumeThreshold)
	if err != nil {
		logging.Warn("invalid CART_VOLUME_THRESHOLD, double-cart detection disabled",
			logging.String("value", cfg.CartVolumeThreshold),
		)
		return decimal.Zero
	}
	return threshold
}
