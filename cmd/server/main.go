// Command server wires the participant lifecycle service: the record API,
// the upstream reconciliation consumer and the outbound notification
// producer. Business logic lives in the internal packages; main only builds
// the object graph and owns the process lifecycle.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"deltaker/internal/consent"
	"deltaker/internal/decision"
	"deltaker/internal/history"
	jwttoken "deltaker/internal/jwt_token"
	"deltaker/internal/notification"
	"deltaker/internal/participant"
	"deltaker/internal/platform/config"
	"deltaker/internal/platform/httpserver"
	"deltaker/internal/platform/logger"
	"deltaker/internal/platform/metrics"
	"deltaker/internal/platform/postgres"
	"deltaker/internal/platform/redis"
	"deltaker/internal/reconciler"
	"deltaker/internal/registry"
	"deltaker/internal/resolver"
	httptransport "deltaker/internal/transport/http"
	id "deltaker/pkg/domain"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: postgres when a database is configured, memory otherwise so
	// the service still runs in local development.
	var (
		records   participant.Store = participant.NewInMemoryStore()
		samtykker consent.Store     = consent.NewInMemoryStore()
		vedtak    decision.Store    = decision.NewInMemoryStore()
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		records = participant.NewPostgresStore(pool)
		samtykker = consent.NewPostgresStore(pool)
		vedtak = decision.NewPostgresStore(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var nameCache *goredis.Client
	if redisClient, err := redis.New(cfg.Redis); err != nil {
		log.Warn("redis unavailable, name lookups go uncached", "error", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		nameCache = redisClient.Client
	}

	publisher, err := notification.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic, log, m)
	if err != nil {
		log.Error("failed to build kafka producer", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	engine, err := participant.NewEngine(records, publisher, log, m)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	consentSvc, err := consent.NewService(samtykker, records, log)
	if err != nil {
		log.Error("failed to build consent service", "error", err)
		os.Exit(1)
	}
	consentSvc.SetPendingTTL(cfg.PendingConsentTTL)
	decisionSvc, err := decision.NewService(vedtak, records, log)
	if err != nil {
		log.Error("failed to build decision service", "error", err)
		os.Exit(1)
	}

	// Registry and directory collaborators are ports; the in-process fakes
	// stand in until the real upstream clients are configured.
	persons := &registry.MockPersonClient{WithAdresse: true}
	programs := &registry.MockGjennomforingClient{}
	names := resolver.NewCachedResolver(&resolver.MockDirectoryClient{}, nameCache, config.NameCacheTTL, log)
	timeline := history.NewAggregator(names, log)

	enabled := make([]id.Tiltakstype, 0, len(cfg.EnabledTiltakstyper))
	for _, raw := range cfg.EnabledTiltakstyper {
		t, err := id.ParseTiltakstype(raw)
		if err != nil {
			log.Error("invalid entry in ENABLED_TILTAKSTYPER", "value", raw, "error", err)
			os.Exit(1)
		}
		enabled = append(enabled, t)
	}
	rec, err := reconciler.NewReconciler(records, persons, programs, enabled, log, m)
	if err != nil {
		log.Error("failed to build reconciler", "error", err)
		os.Exit(1)
	}
	consumer, err := reconciler.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.UpstreamTopic, rec, log)
	if err != nil {
		log.Error("failed to build kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "deltaker", "deltaker-api")
	handler := httptransport.NewHandler(engine, consentSvc, decisionSvc, timeline, records, persons, programs, log)
	router := httptransport.NewRouter(handler, jwttoken.NewJWTServiceAdapter(jwtSvc), log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting deltaker service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting upstream consumer",
			"topic", cfg.Kafka.UpstreamTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(srv, shutdownGrace)
	})

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
