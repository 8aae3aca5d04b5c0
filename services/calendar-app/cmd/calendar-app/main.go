package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/config"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/httpx"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/metrics"
	otelx "github.com/md-rashed-zaman/apptremind-calendar/libs/otel"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/backend"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/catalog"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/grid"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/handlers"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/poller"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/session"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/status"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/wizard"
)

func mustDuration(key string, fallback time.Duration) time.Duration {
	d, err := config.Duration(key, fallback)
	if err != nil {
		panic(err)
	}
	return d
}

func mustInt(key string, fallback int) int {
	n, err := config.Int(key, fallback)
	if err != nil {
		panic(err)
	}
	return n
}

// openSessionStore picks where credentials live: an encrypted file on the
// device, redis when several BFF replicas share one login, or memory.
func openSessionStore(logger *slog.Logger) (session.Store, []runtime.ReadyCheck, func(), error) {
	switch kind := strings.ToLower(config.String("SESSION_STORE", "file")); kind {
	case "file":
		passphrase, err := config.RequiredString("SESSION_PASSPHRASE")
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := session.NewFileStore(config.String("SESSION_FILE", "session.bin"), passphrase)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.String("REDIS_ADDR", "localhost:6379"),
			Password: config.String("REDIS_PASSWORD", ""),
		})
		store := session.NewRedisStore(rdb, config.String("SESSION_REDIS_KEY", ""), mustDuration("SESSION_TTL", session.DefaultSessionTTL))
		checks := []runtime.ReadyCheck{{Name: "redis", Check: store.Ping}}
		return store, checks, func() { _ = rdb.Close() }, nil
	case "memory":
		logger.Warn("session store is in memory; sign-in will not survive a restart")
		return session.NewMemoryStore(), nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown SESSION_STORE %q", kind)
	}
}

func apiReadyCheck(client *http.Client, baseURL string) func(context.Context) error {
	target := strings.TrimRight(baseURL, "/") + "/healthz"
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("api health returned %d", resp.StatusCode)
		}
		return nil
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "calendar-app")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clientMetrics := metrics.NewClientMetrics(reg)

	baseURL, err := config.RequiredString("API_BASE_URL")
	if err != nil {
		panic(err)
	}
	ratePerSec, err := config.Float("API_RATE_PER_SEC", 10)
	if err != nil {
		panic(err)
	}
	transport := httpx.Outbound(otelhttp.NewTransport(http.DefaultTransport), logger,
		httpx.NewLimiter(ratePerSec, mustInt("API_BURST", 20)),
		httpx.RetryPolicy{
			MaxRetries:      mustInt("API_MAX_RETRIES", 3),
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			OnRetry: func(attempt int, wait time.Duration) {
				clientMetrics.ObserveRetry("rate_limit")
				logger.Info("api rate limited; backing off", "attempt", attempt, "wait_ms", wait.Milliseconds())
			},
		},
	)
	httpClient := &http.Client{Transport: transport, Timeout: mustDuration("API_TIMEOUT", 15*time.Second)}

	api, err := backend.New(backend.Config{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Logger:     logger,
		Metrics:    clientMetrics,
	})
	if err != nil {
		panic(err)
	}

	store, storeChecks, closeStore, err := openSessionStore(logger)
	if err != nil {
		logger.Error("session store init failed", "err", err)
		panic(err)
	}
	defer closeStore()

	sess := session.NewManager(api, store, session.Options{
		GracePeriod: mustDuration("SESSION_GRACE_PERIOD", session.DefaultGracePeriod),
		Logger:      logger,
	})
	api.SetTokenSource(sess)

	staleTime := mustDuration("CACHE_STALE_TIME", 30*time.Second)
	cat := catalog.New(api, catalog.Options{
		StaleTime: staleTime,
		Timezone:  config.String("BUSINESS_TIMEZONE", ""),
		Metrics:   clientMetrics,
		Logger:    logger,
	})
	appts := catalog.NewAppointments(api, staleTime, logger)
	mutator := status.NewMutator(status.Config{
		API:   api,
		Cache: appts.Cache(),
		Refetch: func(ctx context.Context) {
			_ = appts.Refresh(ctx)
		},
		Metrics: clientMetrics,
		Logger:  logger,
	})
	wiz := wizard.New(wizard.Config{
		Backend: api,
		Logger:  logger,
		OnBooked: func(wizard.Booking) {
			refreshCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			_ = appts.Refresh(refreshCtx)
		},
	})

	sess.OnInvalidated(func(reason string) {
		logger.Info("session ended; clearing local state", "reason", reason)
		cat.Reset()
		appts.Reset()
		wiz.Dismiss()
	})

	hydrateCtx, cancelHydrate := context.WithTimeout(ctx, 15*time.Second)
	if ok, err := sess.Hydrate(hydrateCtx); err != nil {
		logger.Warn("session restore incomplete", "err", err)
	} else {
		logger.Info("session restored", "authenticated", ok)
	}
	cancelHydrate()

	poll := poller.New(func(ctx context.Context) error {
		if !sess.Authenticated() {
			return nil
		}
		return appts.Refresh(ctx)
	}, logger, poller.Config{Interval: mustDuration("POLL_INTERVAL", poller.DefaultInterval)})
	go poll.Run(ctx)

	checks := append([]runtime.ReadyCheck{{Name: "api", Check: apiReadyCheck(&http.Client{Timeout: 2 * time.Second}, baseURL)}}, storeChecks...)
	mux := runtime.NewBaseMux(2*time.Second, checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	auth := handlers.NewAuthHandler(sess, api, logger)
	handlers.Register(mux, handlers.Handlers{
		Auth:     auth,
		Calendar: handlers.NewCalendarHandler(cat, appts, mutator, grid.NewMemo(32), logger, handlers.CalendarConfig{Grid: grid.DefaultConfig()}),
		Wizard:   handlers.NewWizardHandler(wiz, cat, logger),
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar-app")
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
