package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/auth"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/domain/otp"
	"github.com/vinitamart/storefront/internal/domain/product"
	"github.com/vinitamart/storefront/internal/handler"
	"github.com/vinitamart/storefront/internal/notify"
	"github.com/vinitamart/storefront/internal/payment"
	"github.com/vinitamart/storefront/internal/payment/stripe"
	storemongo "github.com/vinitamart/storefront/internal/storage/mongo"
	"github.com/vinitamart/storefront/internal/storage/postgres"
	"github.com/vinitamart/storefront/pkg/health"
	"github.com/vinitamart/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the notification
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	if err := cfg.validateServer(); err != nil {
		return err
	}
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

	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck("postgres", pool),
	})
	healthSvc.Register(health.Liveness, health.Check{
		Name:    "goroutines",
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})

	// Catalog and address book: Postgres unless MongoDB is configured.
	var (
		catalog product.Catalog = postgres.NewProductRepository(pool)
		book    address.Book    = postgres.NewAddressRepository(pool)
	)
	if cfg.Mongo.URI != "" {
		client, err := storemongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return errors.Wrap(err, "connect mongo")
		}
		defer func() {
			if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
				lg.Warn("Disconnect mongo", zap.Error(err))
			}
		}()
		db := client.Database(cfg.Mongo.Database)
		if err := storemongo.EnsureIndexes(ctx, db); err != nil {
			return errors.Wrap(err, "ensure mongo indexes")
		}
		catalog = storemongo.NewProductRepository(db)
		book = storemongo.NewAddressRepository(db)
		healthSvc.Register(health.Readiness, health.Check{
			Name:    "mongo",
			Timeout: 5 * time.Second,
			Func: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
		})
		lg.Info("Using MongoDB catalog", zap.String("database", cfg.Mongo.Database))
	}

	// Notifications.
	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	sender, err := newSender(cfg, lg)
	if err != nil {
		return err
	}
	sink, sinkCloser, err := newSink(cfg, renderer, sender)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinkCloser.Close(); err != nil {
			lg.Warn("Close notification sink", zap.Error(err))
		}
	}()
	dispatcher, err := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
	}, sink, lg.Named("notify"), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}
	healthSvc.Register(health.Liveness, health.Check{
		Name:    "notify_queue",
		Timeout: time.Second,
		Func:    health.QueueDepthCheck(dispatcher.Len, dispatcher.Cap()),
		// Fail only on sustained saturation.
		FailureThreshold: 10,
	})

	// Payments.
	var (
		gateway  order.PaymentGateway = disabledGateway{}
		webhooks handler.WebhookParser
	)
	if cfg.Payment.StripeSecretKey != "" {
		upc, err := cfg.UnitPriceConfig()
		if err != nil {
			return err
		}
		pricer, err := payment.NewUnitPricer(upc)
		if err != nil {
			return errors.Wrap(err, "unit pricer")
		}
		provider := stripe.New(stripe.Config{
			SecretKey:     cfg.Payment.StripeSecretKey,
			WebhookSecret: cfg.Payment.StripeWebhookSecret,
			Currency:      cfg.Payment.Currency,
		}, pricer)
		gateway, webhooks = provider, provider
	} else {
		lg.Warn("Stripe secret key not set, online payments are disabled")
	}

	// Domain services.
	rate, err := cfg.SurchargeRate()
	if err != nil {
		return err
	}
	orderService, err := order.NewService(
		order.Config{SurchargeRate: rate, ConfirmViaWebhook: cfg.Payment.ConfirmViaWebhook},
		catalog,
		book,
		postgres.NewOrderRepository(pool),
		gateway,
		notify.NewOrderNotifier(dispatcher, cfg.SMTP.SellerEmail),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	otpService := otp.NewService(postgres.NewOTPRepository(pool), notify.NewOTPSender(renderer, sender), otp.Config{
		TTL:         cfg.OTP.TTL,
		VerifiedTTL: cfg.OTP.VerifiedTTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Pepper:      []byte(cfg.OTP.Pepper),
	})
	addressService := address.NewService(book, otpService, cfg.OTP.RequireVerification)
	authService, err := auth.NewService(auth.Config{
		Secret:             []byte(cfg.Auth.JWTSecret),
		TokenTTL:           cfg.Auth.TokenTTL,
		SellerEmail:        cfg.Auth.SellerEmail,
		SellerPasswordHash: cfg.Auth.SellerPasswordHash,
	})
	if err != nil {
		return errors.Wrap(err, "create auth service")
	}

	// HTTP handlers.
	otpLimiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.OTPLimit.Max,
		Window:  cfg.OTPLimit.Window,
		Message: "Too many OTP requests, please try again later",
	})
	h := handler.New(
		handler.Config{
			FrontendURL:   cfg.FrontendURL,
			SecureCookies: cfg.Auth.SecureCookies,
			OTPLimiter:    otpLimiter,
		},
		orderService,
		addressService,
		otpService,
		authService,
		catalog,
		webhooks,
	)

	// Mux: health endpoints + gin API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.Handler(health.Liveness))
	mux.HandleFunc("/readyz", healthSvc.Handler(health.Readiness))
	mux.Handle("/api/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key", "Stripe-Signature"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// The dispatcher stops only after the server has drained.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		otpLimiter.RunSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		healthSvc.Start(gctx, 10*time.Second)
		healthSvc.SetReady(true)
		<-gctx.Done()

		// Graceful shutdown: drop readiness, drain, then stop.
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopDispatch()
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// disabledGateway rejects online checkout when no provider is configured.
type disabledGateway struct{}

var errPaymentsDisabled = errors.New("online payments are not configured")

func (disabledGateway) CreateCheckout(context.Context, order.CheckoutRequest) (*order.CheckoutSession, error) {
	return nil, errPaymentsDisabled
}

func (disabledGateway) ExpireCheckout(context.Context, string) error {
	return errPaymentsDisabled
}
