package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KretovDmitry/gophermart-pricing-service/internal/auth"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/cbr"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/config"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/exchange"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/metrics"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/notify"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/payment"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/postgres"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/pricing"
	"github.com/KretovDmitry/gophermart-pricing-service/internal/shipping"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/accesslog"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/limiter"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/logger"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/netutil"
	"github.com/KretovDmitry/gophermart-pricing-service/pkg/unzip"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nanmu42/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := postgres.Connect(serverCtx, cfg, logger)
	if err != nil {
		return err
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	if err = postgres.Migrate(db); err != nil {
		return err
	}

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Init exchange rates store and its central bank source.
	rateSource, err := cbr.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to init rate source: %w", err)
	}

	exchangeRepo, err := exchange.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init exchange repository: %w", err)
	}

	exchangeService, err := exchange.NewService(exchangeRepo, rateSource, trManager, logger, m)
	if err != nil {
		return fmt.Errorf("failed to init exchange service: %w", err)
	}

	scheduler, err := exchange.NewScheduler(exchangeService, logger,
		cfg.Rates.RefreshInterval, cfg.Rates.RefreshOnStart, cfg.HTTPServer.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("failed to init rates scheduler: %w", err)
	}

	// Init shipping rate table.
	shippingRepo, err := shipping.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init shipping repository: %w", err)
	}

	shippingService, err := shipping.NewService(shippingRepo, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init shipping service: %w", err)
	}

	// Init pricing engine.
	pricingEngine, err := pricing.NewEngine(exchangeService, shippingService, logger, m)
	if err != nil {
		return fmt.Errorf("failed to init pricing engine: %w", err)
	}

	// Init payment confirmations.
	sink, closeSink, err := newSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init notification sink: %w", err)
	}
	defer closeSink()

	dispatcher, err := notify.NewDispatcher(sink, logger, m,
		cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.SendTimeout, cfg.HTTPServer.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("failed to init notification dispatcher: %w", err)
	}

	// Init payment webhook reconciler.
	paymentRepo, err := payment.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init payment repository: %w", err)
	}

	paymentService, err := payment.NewService(paymentRepo, trManager, dispatcher, logger, m)
	if err != nil {
		return fmt.Errorf("failed to init payment service: %w", err)
	}

	allowList, err := netutil.ParseAllowList(cfg.Webhook.AllowedNetworks)
	if err != nil {
		return fmt.Errorf("failed to parse webhook allowed networks: %w", err)
	}
	if allowList.Len() == 0 {
		logger.Warn("webhook allow-list is empty, every payment webhook will be rejected")
	}

	// Shared fixed window limiter.
	fw := limiter.NewFixedWindow()
	fw.StartJanitor(cfg.Limits.SweepInterval)
	defer fw.Stop()

	clientKey := netutil.KeyFunc(cfg.HTTPServer.TrustProxyHeaders)
	limit := func(scope string, l config.Limit) func(http.Handler) http.Handler {
		return limiter.Middleware(fw, scope, l.Requests, l.Window, clientKey, m.Limited)
	}

	adminOnly := auth.AdminOnly(cfg, logger)

	// Create root router.
	router := initRootRouter(logger)

	// Init handlers for exchange rate routes.
	exchange.HandlerWithOptions(exchangeService, exchange.ChiServerOptions{
		BaseURL:          "/api/admin",
		BaseRouter:       router,
		Middlewares:      []exchange.MiddlewareFunc{adminOnly},
		WriteMiddlewares: []exchange.MiddlewareFunc{limit("rates", cfg.Limits.Rates)},
		ErrorHandlerFunc: exchange.ErrorHandlerFunc,
	})

	// Init handlers for shipping rate routes.
	shipping.HandlerWithOptions(shippingService, shipping.ChiServerOptions{
		BaseRouter:       router,
		AdminMiddlewares: []shipping.MiddlewareFunc{adminOnly, limit("shipping", cfg.Limits.Shipping)},
		ErrorHandlerFunc: shipping.ErrorHandlerFunc,
	})

	// Init handlers for pricing routes.
	pricing.HandlerWithOptions(pricingEngine, pricing.ChiServerOptions{
		BaseURL:          "/api/pricing",
		BaseRouter:       router,
		ErrorHandlerFunc: pricing.ErrorHandlerFunc,
	})

	// Init handlers for payment provider routes.
	payment.HandlerWithOptions(paymentService, payment.ChiServerOptions{
		BaseURL:          "/api/payments",
		BaseRouter:       router,
		Middlewares:      webhookMiddlewares(allowList, cfg, logger, m),
		ErrorHandlerFunc: payment.ErrorHandlerFunc,
	})

	router.Handle("/metrics", metrics.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.With(r.Context()).Errorf("health check: %s", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Start background jobs.
	scheduler.Run()
	dispatcher.Run()

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	// No more webhooks: finish the refresh in flight and drain queued confirmations.
	scheduler.Stop()
	dispatcher.Stop()

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}

// webhookMiddlewares guards the provider callback by origin only. Deliveries
// from the provider are never throttled.
func webhookMiddlewares(
	allowList *netutil.AllowList, cfg *config.Config, logger logger.Logger, m *metrics.Metrics,
) []payment.MiddlewareFunc {
	return []payment.MiddlewareFunc{
		payment.OriginAllowList(allowList, cfg.HTTPServer.TrustProxyHeaders, logger, m),
	}
}

// newSink publishes to kafka when brokers are configured and only logs otherwise.
func newSink(cfg *config.Config, logger logger.Logger) (notify.Sink, func(), error) {
	if len(notify.ParseBrokers(cfg.Notify.KafkaBrokers)) == 0 {
		logger.Warn("no kafka brokers configured, payment confirmations are only logged")
		return notify.NewLogSink(logger), func() {}, nil
	}

	sink, err := notify.NewKafkaSink(cfg.Notify.KafkaBrokers, cfg.Notify.Topic)
	if err != nil {
		return nil, nil, err
	}

	return sink, func() {
		if err := sink.Close(); err != nil {
			logger.Errorf("close kafka writer: %s", err)
		}
	}, nil
}
