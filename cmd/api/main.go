package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-vending/internal/admin"
	"github.com/noah-isme/backend-vending/internal/auth"
	"github.com/noah-isme/backend-vending/internal/config"
	"github.com/noah-isme/backend-vending/internal/health"
	"github.com/noah-isme/backend-vending/internal/obs"
	"github.com/noah-isme/backend-vending/internal/quote"
	"github.com/noah-isme/backend-vending/internal/ratelimit"
	"github.com/noah-isme/backend-vending/internal/resilience"
	"github.com/noah-isme/backend-vending/internal/security"
	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "vending-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.TracingSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	store, err := vendingconfig.NewStore(cfg.VendingSchedulePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.VendingSchedulePath).Msg("load vending schedule")
	}
	snap := store.Current()
	logger.Info().Str("version", snap.Version).Int("apps", snap.Apps.Len()).Msg("vending schedule loaded")

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	cacheBreaker := resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("quote_cache").WithLogger(logger)
	quoteSvc := &quote.Service{
		Store:  store,
		Cache:  quote.NewCache(redisClient, cfg.QuoteCacheTTL).WithBreaker(cacheBreaker),
		Logger: logger,
	}
	quoteHandler := &quote.Handler{Svc: quoteSvc}
	adminHandler := &admin.Handler{Store: store, Logger: logger}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:    cfg.AdminJWTSecret,
		Issuer:    cfg.AdminJWTIssuer,
		Audience:  cfg.AdminJWTAudience,
		ClockSkew: cfg.AdminJWTClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise admin token verifier")
	}

	limitStore, err := ratelimit.NewStore(redisClient, "vending:rl:api:")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	var quoteLimiter ratelimit.Limiter = ratelimit.FixedWindow{Store: limitStore}
	if redisClient != nil {
		quoteLimiter = ratelimit.SlidingWindow{Client: redisClient, Prefix: "vending:rl:quote:"}
	}
	onLimitError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	quoteLimit := ratelimit.Handler{
		Limiter: quoteLimiter,
		Config:  ratelimit.Config{Key: ratelimit.PerClientIP("quote"), Window: time.Minute, Max: cfg.QuoteRatePerMin},
		OnError: onLimitError,
	}
	apiLimit := ratelimit.Handler{
		Limiter: ratelimit.FixedWindow{Store: limitStore},
		Config:  ratelimit.Config{Key: ratelimit.PerClientIP("api"), Window: time.Minute, Max: cfg.APIRatePerMin},
		OnError: onLimitError,
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Skip: []string{"/health/", "/metrics"}}.Middleware)
	r.Use(security.CORS(cfg.AllowedOrigins()))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Schedule: store, RedisTimeout: cfg.Obs.RedisReadyTimeout}
	if redisClient != nil {
		healthHandler.Redis = health.RedisChecker{Client: redisClient}
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit.Middleware)
		v.Route("/vending", func(vr chi.Router) {
			quoteHandler.Routes(vr, quoteLimit.Middleware)
		})
		v.Route("/admin", func(a chi.Router) {
			a.Use(verifier.RequireRole(auth.AdminRole))
			a.Post("/vending/reload", adminHandler.Reload)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloadOnHangup(ctx, store, logger)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func connectRedis(cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info().Msg("redis not configured; quote cache disabled and rate limits kept in memory")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("ping redis; continuing, readiness will report it")
	}
	return client
}

func reloadOnHangup(ctx context.Context, store *vendingconfig.Store, logger zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			snap, err := store.Reload()
			if err != nil {
				if obs.ScheduleReloadTotal != nil {
					obs.ScheduleReloadTotal.WithLabelValues("error").Inc()
				}
				logger.Error().Err(err).Msg("vending schedule reload on SIGHUP rejected")
				continue
			}
			if obs.ScheduleReloadTotal != nil {
				obs.ScheduleReloadTotal.WithLabelValues("ok").Inc()
			}
			logger.Info().Str("version", snap.Version).Msg("vending schedule reloaded on SIGHUP")
		}
	}
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
