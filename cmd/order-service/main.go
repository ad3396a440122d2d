package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/cafe-order-core/internal/blob"
	catalogapp "github.com/dmehra2102/cafe-order-core/internal/catalog/application"
	catalogpg "github.com/dmehra2102/cafe-order-core/internal/catalog/infrastructure/postgres"
	invapp "github.com/dmehra2102/cafe-order-core/internal/inventory/application"
	invpg "github.com/dmehra2102/cafe-order-core/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/cafe-order-core/internal/order/application"
	orderhttp "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/postgres"
	payapp "github.com/dmehra2102/cafe-order-core/internal/payment/application"
	paypg "github.com/dmehra2102/cafe-order-core/internal/payment/infrastructure/postgres"
	pricingapp "github.com/dmehra2102/cafe-order-core/internal/pricing/application"
	pricingpg "github.com/dmehra2102/cafe-order-core/internal/pricing/infrastructure/postgres"
	resapp "github.com/dmehra2102/cafe-order-core/internal/reservation/application"
	respg "github.com/dmehra2102/cafe-order-core/internal/reservation/infrastructure/postgres"
	"github.com/dmehra2102/cafe-order-core/internal/settings"
	"github.com/dmehra2102/cafe-order-core/migrations"
	"github.com/dmehra2102/cafe-order-core/pkg/config"
	"github.com/dmehra2102/cafe-order-core/pkg/idempotency"
	"github.com/dmehra2102/cafe-order-core/pkg/logging"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
	"github.com/dmehra2102/cafe-order-core/pkg/postgres"
	"github.com/dmehra2102/cafe-order-core/pkg/shutdown"
	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load("order-service", *configPath)
	if err != nil {
		logging.New("order-service", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Service, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Service, cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres setup
	pool, err := postgres.Connect(ctx, cfg.Postgres.URL, log)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool, migrations.FS, log); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	hours, err := settings.NewHours(cfg.Venue)
	if err != nil {
		log.Error("invalid opening hours", "err", err)
		os.Exit(1)
	}
	blobs, err := blob.NewFileStore(log, cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		log.Error("blob store init failed", "err", err)
		os.Exit(1)
	}

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, cfg.Redis.TTL)

	// Domain services
	catalog := catalogapp.NewService(catalogpg.NewRepository(log, pool))
	pricing := pricingpg.NewRepository(log, pool)
	tables := resapp.NewAllocator(log, respg.NewRepository(log, pool), cfg.Venue.ReservationDuration)
	svc := application.NewService(log, application.Deps{
		Orders:    orderpg.NewRepository(log, pool),
		Catalog:   catalog,
		Stock:     invapp.NewGuard(log, invpg.NewRepository(log, pool)),
		Tables:    tables,
		Fees:      pricingapp.NewFeeService(pricing),
		Discounts: pricingapp.NewDiscountService(log, pricing),
		Payments:  payapp.NewLedger(log, paypg.NewRepository(log, pool)),
		Blobs:     blobs,
	})

	// Outbox relay to kafka
	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OutboxTopic)
	relay := outbox.NewRelay(log, outbox.NewPostgresStore(log, pool), dispatch, "order-service-relay")

	scheduler := application.NewScheduler(log, svc, cfg.Venue.ReservationLead, time.Minute)

	handler := orderhttp.NewHandler(log, svc, orderhttp.Options{
		Menu:         catalog,
		Availability: tables,
		Hours:        hours,
		Auth:         orderhttp.NewAuthenticator(cfg.Auth.JWTSecret),
		Idempotency:  idem,
	})
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	if strings.HasPrefix(cfg.Blob.BaseURL, "/") {
		// proofs are served locally unless a CDN base url is configured
		r.Handle(cfg.Blob.BaseURL+"/*", http.StripPrefix(cfg.Blob.BaseURL, http.FileServer(http.Dir(blobs.Dir()))))
	}
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTP.Addr, "hours", hours.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown.Drain(10*time.Second, srv.Shutdown)
	})

	if err := g.Wait(); err != nil {
		log.Error("order-service stopped with error", "err", err)
	}
	if err := shutdown.Drain(5*time.Second,
		func(context.Context) error { return writer.Close() },
		tp.Shutdown,
	); err != nil {
		log.Warn("shutdown incomplete", "err", err)
	}
	log.Info("order-service shutdown complete")
}
