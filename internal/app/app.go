package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/localshop/internal/domain/cart"
	"github.com/xenking/localshop/internal/domain/checkout"
	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/stats"
	"github.com/xenking/localshop/internal/events"
	"github.com/xenking/localshop/internal/handler"
	"github.com/xenking/localshop/internal/storage/postgres"
	"github.com/xenking/localshop/pkg/health"
	"github.com/xenking/localshop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health probes.
	checker := health.NewChecker()
	checker.AddReadiness("postgres", 5*time.Second, health.PingCheck(pool))
	checker.AddLiveness("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	shipmentRepo := postgres.NewShipmentRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)

	// Stock ledger seeded from the catalog; committed stock levels are
	// written back through the product repository.
	ledger := inventory.NewLedger(
		inventory.WithStockWriter(productRepo),
		inventory.WithLogger(lg.Named("inventory")),
	)
	products, err := productRepo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	for _, p := range products {
		ledger.SetStock(p.ID, p.Quantity)
	}
	lg.Info("Ledger seeded", zap.Int("products", len(products)))

	// Session carts with background abandonment sweep.
	registry := cart.NewRegistry(ledger, productRepo, cfg.Cart.IdleTimeout,
		cart.WithTTL(cfg.Cart.ReservationTTL))
	registry.StartSweeper(ctx, cfg.Cart.SweepInterval)

	// Checkout pipeline and its subscribers.
	pipeline := checkout.NewPipeline(ledger, productRepo, orderRepo, shipmentRepo, invoiceRepo, lg.Named("checkout"))

	collector := stats.NewCollector()
	pipeline.Subscribe(collector.OrderCompleted)

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer, lg.Named("events"))
		publisher.Start(ctx)
		pipeline.Subscribe(publisher.OrderCompleted)
		lg.Info("Kafka publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	// HTTP surface.
	h := handler.NewHandler(
		productRepo,
		customerRepo,
		registry,
		pipeline,
		checkout.NewCreditCard(lg.Named("payment")),
		ledger,
		collector,
	)

	router := chi.NewRouter()
	router.Get("/livez", checker.LiveEndpoint)
	router.Get("/readyz", checker.ReadyEndpoint)
	router.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(router, "localshop-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Session-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}, ctx.Done()),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	checker.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		checker.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if publisher != nil {
			publisher.WaitClosed()
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
