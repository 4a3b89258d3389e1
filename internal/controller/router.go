package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mucyo/paypack-orders/internal/config"
	"github.com/mucyo/paypack-orders/internal/domain/order"
	"github.com/mucyo/paypack-orders/internal/infrastructure/observability"
	redisinfra "github.com/mucyo/paypack-orders/internal/infrastructure/redis"
	customMW "github.com/mucyo/paypack-orders/internal/middleware"
	"github.com/mucyo/paypack-orders/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Pool          *pgxpool.Pool
	RedisClient   *redis.Client
	OrderRepo     order.Repository
	OrderService  *service.OrderService
	ReplayCache   *redisinfra.ReplayCache
	WebhookSecret string
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
	ServerConfig  config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	orderH := NewOrderController(deps.OrderService, deps.OrderRepo, deps.Metrics)
	webhookH := NewWebhookController(deps.OrderService, deps.ReplayCache, deps.WebhookSecret, deps.Metrics, deps.Logger)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/orders", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMin))

		r.Post("/", orderH.Create)
		r.Get("/", orderH.List)
		r.Get("/{id}", orderH.Get)
		r.Get("/{id}/events", orderH.GetEvents)
		r.Post("/{id}/pay", orderH.Pay)
	})

	// No rate limit here: Paypack retries deliveries and shedding them only
	// delays reconciliation.
	r.Post("/webhooks/paypack", webhookH.HandlePaypackEvent)

	return r
}
