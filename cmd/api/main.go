package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/cart"
	"github.com/lokastore/storefront-api/internal/catalog"
	"github.com/lokastore/storefront-api/internal/checkout"
	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/config"
	"github.com/lokastore/storefront-api/internal/discount"
	"github.com/lokastore/storefront-api/internal/events"
	"github.com/lokastore/storefront-api/internal/health"
	"github.com/lokastore/storefront-api/internal/notify"
	"github.com/lokastore/storefront-api/internal/obs"
	"github.com/lokastore/storefront-api/internal/order"
	"github.com/lokastore/storefront-api/internal/promo"
	"github.com/lokastore/storefront-api/internal/ratelimit"
	"github.com/lokastore/storefront-api/internal/repo"
	"github.com/lokastore/storefront-api/internal/shipping"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "storefront-api"

	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogRepo := repo.CatalogRepo{Pool: pool}
	discountRepo := repo.DiscountRepo{Pool: pool}
	promoRepo := repo.PromoRepo{Pool: pool}
	cartRepo := repo.CartRepo{Pool: pool}
	orderRepo := repo.OrderRepo{Pool: pool}
	eventRepo := repo.EventRepo{Pool: pool}

	cache := catalog.NewCache(redisClient, cfg.CacheTTL)
	ruleSource := &discount.Service{Store: discountRepo, Cache: cache}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalogRepo,
		Rules: ruleSource,
		Cache: cache,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Svc: catalogService}
	discountHandler := &discount.Handler{Svc: ruleSource, Validate: validator.New()}

	var shipProvider shipping.Provider
	var tracker shipping.Tracker
	if cfg.ShippingAPIURL != "" {
		httpProvider := shipping.NewHTTPProvider(cfg.ShippingAPIURL, cfg.ShippingAPIKey, 10*time.Second)
		shipProvider = httpProvider
		tracker = httpProvider
	} else {
		shipProvider = shipping.MockProvider{}
		tracker = shipping.MockTracker{}
	}
	shipSvc := &shipping.Service{
		Provider: shipProvider,
		R:        redisClient,
		TTL:      cfg.ShippingCacheTTL,
		Logger:   &logger,
	}
	shipHandler := &shipping.Handler{Svc: shipSvc}

	promoSvc := &promo.Service{Store: promoRepo}
	promoHandler := &promo.Handler{Store: promoRepo, Svc: promoSvc, Validate: validator.New()}

	cartSvc := &cart.Service{
		Store:   cartRepo,
		Catalog: catalogService,
		Rules:   ruleSource,
		TTL:     cfg.CartTTL,
		Log:     &logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Promos: promoSvc}

	var notifiers []events.Notifier
	if cfg.EmailEnabled {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Username: redisOpts.Username,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		})
		defer func() {
			if err := asynqClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		notifiers = append(notifiers, notify.Enqueuer{Client: asynqClient})
	}
	bus := &events.Bus{Store: eventRepo, Notifiers: notifiers}

	checkoutSvc := &checkout.Service{
		Pool:     pool,
		Carts:    cartSvc,
		Shipping: shipSvc,
		Promos:   promoSvc,
		Orders:   orderRepo,
		Events:   bus,
		Currency: cfg.Currency,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderSvc := &order.Service{Store: orderRepo, Tracker: tracker, Events: bus}
	orderHandler := &order.Handler{Svc: orderSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	promoLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl"},
		Config: ratelimit.Config{
			Key: func(r *http.Request) string {
				return "promo:" + common.ClientIP(r)
			},
			Window: cfg.PromoApplyWindow,
			Max:    cfg.PromoApplyLimit,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("promo rate limit")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(gatewayUser(cfg.GatewayUserHeader))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", cfg.GatewayUserHeader},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Route("/shipping", func(s chi.Router) {
			s.Get("/couriers", shipHandler.Couriers)
			s.Get("/couriers/{courierId}/packages", shipHandler.Packages)
			s.Get("/quote", shipHandler.Quote)
		})

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{lineId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{lineId}", cartHandler.RemoveItem)
				g.Put("/{id}/shipping", cartHandler.SelectShipping)
				g.With(promoLimit.Middleware).Post("/{id}/promo", cartHandler.ApplyPromo)
				g.Delete("/{id}/promo", cartHandler.RemovePromo)
			})
		})

		v.Get("/checkout/quote", checkoutHandler.Quote)
		v.With(idem.Middleware, requireUser).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(requireUser)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)
			authR.Post("/orders/{orderId}/cancel", orderHandler.Cancel)
			authR.Get("/orders/{orderId}/tracking", orderHandler.Track)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(requireUser)
			admin.Get("/discount-rules", discountHandler.List)
			admin.Post("/discount-rules", discountHandler.Create)
			admin.Put("/discount-rules/{id}", discountHandler.Update)
			admin.Delete("/discount-rules/{id}", discountHandler.Delete)
			admin.Get("/promos", promoHandler.List)
			admin.Post("/promos", promoHandler.Create)
			admin.Put("/promos/{code}", promoHandler.Update)
			admin.Post("/promos/preview", promoHandler.Preview)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// gatewayUser trusts the authenticated user header injected by the API
// gateway in front of this service.
func gatewayUser(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(common.WithUserID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.UserID(r.Context()); !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
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
