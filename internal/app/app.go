// Package app wires configuration, storage, the checkout simulation and the
// HTTP server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/checkout"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/product"
	"github.com/xenking/comeia-checkout/internal/events"
	"github.com/xenking/comeia-checkout/internal/gateway"
	"github.com/xenking/comeia-checkout/internal/handler"
	"github.com/xenking/comeia-checkout/internal/storage/memory"
	"github.com/xenking/comeia-checkout/internal/storage/postgres"
	"github.com/xenking/comeia-checkout/internal/storage/redis"
	"github.com/xenking/comeia-checkout/pkg/health"
	"github.com/xenking/comeia-checkout/pkg/httpmiddleware"
)

// stores groups the persistence backends selected by the configuration.
type stores struct {
	products product.Repository
	carts    cart.Store
	orders   order.Repository
	users    identity.UserRepository
	sessions identity.SessionStore
}

// Telemetry is satisfied by the go-faster/sdk application telemetry.
type Telemetry = httpmiddleware.Telemetry

// server is the assembled application.
type server struct {
	handler  http.Handler
	health   *health.Health
	checkout *checkout.Service

	stopTracking context.CancelFunc
	closers      []func()
}

// Close stops order tracking and releases the storage clients.
func (s *server) Close() {
	s.stopTracking()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer selects the storage backends and assembles the handler chain.
// Health checks are registered but not started.
func newServer(ctx context.Context, lg *zap.Logger, t Telemetry, cfg *Config) (_ *server, rerr error) {
	s := &server{health: health.New()}
	defer func() {
		if rerr != nil {
			for i := len(s.closers) - 1; i >= 0; i-- {
				s.closers[i]()
			}
		}
	}()
	s.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st := stores{
		carts:    memory.NewCartStore(),
		products: memory.NewProductRepository(product.Seed()),
		orders:   memory.NewOrderRepository(),
		users:    memory.NewUserRepository(identity.SeedAccounts()...),
		sessions: memory.NewSessionStore(),
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		products := postgres.NewProductRepository(pool)
		users := postgres.NewUserRepository(pool)
		if err := products.Upsert(ctx, product.Seed()); err != nil {
			return nil, errors.Wrap(err, "seed products")
		}
		if err := users.Seed(ctx, identity.SeedAccounts()); err != nil {
			return nil, errors.Wrap(err, "seed users")
		}
		st.products = products
		st.users = users
		st.orders = postgres.NewOrderRepository(pool)
		s.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		lg.Info("Using PostgreSQL storage")
	}

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.closers = append(s.closers, func() { _ = client.Close() })

		st.sessions = redis.NewSessionStore(client)
		s.health.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		lg.Info("Using Redis sessions", zap.String("addr", cfg.RedisAddr))
	}

	// Order events go to SSE subscribers and, when configured, Kafka.
	hub := events.NewHub()
	publisher := events.Multi{hub}
	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewWriter(brokers, cfg.Kafka.Topic))
		s.closers = append(s.closers, func() {
			if err := kp.Close(); err != nil {
				lg.Warn("Close kafka writer", zap.Error(err))
			}
		})
		publisher = append(publisher, kp)
		lg.Info("Publishing order events", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	sim := gateway.New(gateway.Config{
		TimeScale: cfg.Checkout.TimeScale,
		BoletoURL: cfg.Checkout.BoletoURL,
	})
	tracker := order.DefaultTrackerConfig()
	tracker.AckDelay = cfg.Checkout.AckDelay
	tracker.Watchdog = cfg.Checkout.Watchdog
	tracker.ExpiredShare = cfg.Checkout.ExpiredShare

	// Trackers outlive requests; they stop with the server.
	trackCtx, stopTracking := context.WithCancel(zctx.Base(context.WithoutCancel(ctx), lg))
	s.stopTracking = stopTracking
	s.closers = append(s.closers, stopTracking)

	checkoutSvc, err := checkout.NewService(trackCtx, checkout.Options{
		Factory:        order.NewFactory(order.FactoryConfig{Delay: cfg.Checkout.CreateDelay}),
		Processor:      sim,
		Orders:         st.orders,
		Publisher:      publisher,
		Tracker:        tracker,
		TracerProvider: t.TracerProvider(),
		MeterProvider:  t.MeterProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout service")
	}
	s.checkout = checkoutSvc
	s.health.AddReadinessCheck("checkout_backlog", time.Second,
		health.BacklogCheck(checkoutSvc.Active, cfg.Health.MaxBacklog))

	h := handler.New(
		handler.Config{
			ImageBaseURL: cfg.ImageBaseURL,
			KeepAlive:    cfg.Checkout.KeepAlive,
		},
		handler.Deps{
			Products: st.products,
			Carts:    st.carts,
			Identity: identity.NewService(st.users, st.sessions, cfg.Session.TTL),
			Checkout: checkoutSvc,
			Hub:      hub,
			Boletos:  sim,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", s.health.LiveEndpoint)
	mux.HandleFunc("/readyz", s.health.ReadyEndpoint)
	h.Register(mux)

	s.handler = httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Location", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: rateLimitKey,
		}),
		httpmiddleware.Instrument("comeia-api", t),
		httpmiddleware.LogRequests(),
	)
	return s, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, t Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	s, err := newServer(ctx, lg, t, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	s.health.Start(ctx, cfg.Health.Interval)
	s.health.SetReady(true)

	srv := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           s.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: drop readiness, drain, then stop.
		<-gctx.Done()
		s.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if active := s.checkout.Active(); active > 0 {
			lg.Info("Expiring in-flight orders", zap.Int("count", active))
		}
		s.stopTracking()
		s.health.Stop()
		return nil
	})
	return g.Wait()
}

// rateLimitKey budgets signed-in clients per session and anonymous ones per
// address.
func rateLimitKey(r *http.Request) string {
	if token := handler.BearerToken(r); token != "" {
		return "token:" + token
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
