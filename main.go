package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcatalog "github.com/Zhima-Mochi/kitchenledger/internal/application/catalog"
	appcustomer "github.com/Zhima-Mochi/kitchenledger/internal/application/customer"
	appinventory "github.com/Zhima-Mochi/kitchenledger/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	apppayment "github.com/Zhima-Mochi/kitchenledger/internal/application/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/application/pricing"
	dominv "github.com/Zhima-Mochi/kitchenledger/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
	"github.com/Zhima-Mochi/kitchenledger/internal/domain/uow"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/config"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/id"
	inventoryworker "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/inventory/worker"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/observability/zaplogger"
	orderworker "github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/order/worker"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/paystack"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/rediscache"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/sandboxpay"
	"github.com/Zhima-Mochi/kitchenledger/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	httppresentation "github.com/Zhima-Mochi/kitchenledger/internal/presentation/http"
	mcppresentation "github.com/Zhima-Mochi/kitchenledger/internal/presentation/mcp"
	workerpresentation "github.com/Zhima-Mochi/kitchenledger/internal/presentation/worker"

	"golang.org/x/sync/errgroup"
)

const (
	modeHTTP = "http"
	modeMCP  = "mcp"
)

func main() {
	mode := flag.String("mode", modeHTTP, "serving mode: http or mcp (stdio)")
	flag.Parse()

	if err := run(*mode); err != nil {
		fmt.Fprintln(os.Stderr, "kitchenledger:", err)
		os.Exit(1)
	}
}

func run(mode string) error {
	if mode != modeHTTP && mode != modeMCP {
		return fmt.Errorf("unknown mode %q", mode)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOutput := "stdout"
	if mode == modeMCP {
		logOutput = "stderr"
	}
	baseLogger, err := zaplogger.New(zaplogger.Options{
		Level:  cfg.LogLevel,
		Output: logOutput,
		File:   cfg.LogFile,
		Fixed: []observability.Field{
			observability.F("service", cfg.ServiceName),
			observability.F("env", cfg.Env),
			observability.F("version", cfg.Version),
		},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	systemLogger := baseLogger.System()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, oteltrace.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTelEndpoint,
		URLPath:        cfg.OTelURLPath,
		Insecure:       cfg.OTelInsecure,
		Headers:        cfg.OTelHeaders(),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			systemLogger.Warn("otel_shutdown_error", observability.F("error", err))
		}
	}()

	reg := prometrics.New("", "")
	counters, histograms := prometrics.Standard(reg)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), baseLogger, counters, histograms)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	systemLogger.Info("store_ready", observability.F("driver", cfg.StoreDriver))

	bus := outbox.NewBus(tel)
	wrap := func(name string, h domoutbox.Handler) domoutbox.Handler {
		return workerpresentation.Observe(tel, name, h)
	}

	if len(cfg.KafkaBrokers) > 0 {
		fwd := kafka.NewForwarder(kafka.NewWriter(cfg.KafkaBrokers), cfg.KafkaTopicPrefix, tel)
		defer func() {
			if err := fwd.Close(); err != nil {
				systemLogger.Warn("kafka_close_error", observability.F("error", err))
			}
		}()
		for _, name := range eventNames() {
			bus.Subscribe(name, wrap("kafka_forwarder", fwd.Handle))
		}
		systemLogger.Info("kafka_forwarder_enabled", observability.F("brokers", cfg.KafkaBrokers))
	}

	var (
		cache   apporder.Cache
		limiter httppresentation.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb, err := rediscache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		cache = rediscache.NewOrderCache(rdb, cfg.OrderCacheTTL)
		if cfg.RateLimit > 0 {
			limiter = rediscache.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateWindow)
		}
		systemLogger.Info("redis_enabled", observability.F("addr", cfg.RedisAddr))
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	ids := id.NewUUIDGenerator()
	calc := appcatalog.NewCalculator()
	ledger := appinventory.NewLedger(ids, tel)

	customers := appcustomer.NewService(store, ids, tel)
	catalog := appcatalog.NewService(store, calc, ids, tel)
	inventory := appinventory.NewService(store, ledger, calc, ids, bus, tel)
	payments := apppayment.NewService(store, gateway, ids, apppayment.Options{
		Currency:    cfg.PaymentCurrency,
		CallbackURL: cfg.PaymentCallbackURL,
		Publisher:   bus,
	}, tel)
	orders := apporder.NewCoordinator(apporder.Dependencies{
		UnitOfWork:    store,
		Calculator:    calc,
		Ledger:        ledger,
		Pricing:       pricing.NewValidator(cfg.DeliveryFee, cfg.PriceTolerance),
		Payments:      payments,
		IDs:           ids,
		Publisher:     bus,
		Cache:         cache,
		Observability: tel,
	})

	inventoryworker.New(store, calc, bus, wrap, tel).Start()
	if cache != nil {
		orderworker.New(cache, bus, wrap, tel).Start()
	}

	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		bus.Stop(stopCtx)
	}()

	if mode == modeMCP {
		srv := mcppresentation.NewServer(mcppresentation.Services{
			Orders:    orders,
			Inventory: inventory,
			Catalog:   catalog,
		}, cfg.Version, tel)
		systemLogger.Info("mcp_server_start")
		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		systemLogger.Info("mcp_server_stopped")
		return nil
	}

	var opts []httppresentation.Option
	if limiter != nil {
		opts = append(opts, httppresentation.WithRateLimiter(limiter))
	}
	handler := httppresentation.NewHandler(httppresentation.Services{
		Orders:    orders,
		Inventory: inventory,
		Catalog:   catalog,
		Payments:  payments,
		Customers: customers,
	}, tel, opts...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
			return err
		}
		systemLogger.Info("http_server_stopped")
		return nil
	})
	return g.Wait()
}

// openStore returns the unit of work selected by STORE_DRIVER and its closer.
func openStore(ctx context.Context, cfg config.Config) (uow.UnitOfWork, func(), error) {
	if cfg.StoreDriver == "memory" {
		return memory.NewStore(), func() {}, nil
	}
	dialect, err := sqlstore.DialectFor(cfg.StoreDriver)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func newGateway(cfg config.Config) (dompay.Gateway, error) {
	switch cfg.PaymentProvider {
	case "paystack":
		return paystack.NewClient(cfg.PaystackSecretKey, paystack.WithBaseURL(cfg.PaystackBaseURL)), nil
	case "sandbox":
		return sandboxpay.New(cfg.SandboxSuccessRate), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
}

// eventNames lists every event forwarded to Kafka.
func eventNames() []string {
	return []string{
		domorder.OrderCreatedEvent{}.EventName(),
		domorder.OrderUpdatedEvent{}.EventName(),
		domorder.OrderCancelledEvent{}.EventName(),
		dominv.StatusChangedEvent{}.EventName(),
		dompay.SettledEvent{}.EventName(),
	}
}
