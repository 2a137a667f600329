package shopsubscriptions

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/payment/paymentwebhook"
	shopregister "github.com/zoomarket/shop-subscriptions/internal/http/handlers/shop/register"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/cancel"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/create"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/health"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/paymentstatus"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/read"
	"github.com/zoomarket/shop-subscriptions/internal/http/handlers/subscription/retry"
	"github.com/zoomarket/shop-subscriptions/internal/http/middlewarectx"
	"github.com/zoomarket/shop-subscriptions/internal/lib/jwt"
	subscriptionservice "github.com/zoomarket/shop-subscriptions/internal/services/subscription"
	"github.com/zoomarket/shop-subscriptions/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, subscriptionService *subscriptionservice.SubscriptionService, db *repository.Storage, jwtMaker jwt.Maker) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией: операции владельца магазина
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/shops", shopregister.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions", create.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, subscriptionService).ServeHTTP)
			r.Delete("/subscriptions/{id}", cancel.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{id}/retry", retry.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/{id}/payment-status", paymentstatus.New(logger, subscriptionService).ServeHTTP)
		})

		// Webhook от платёжного шлюза (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, subscriptionService).ServeHTTP)

		r.Get("/health", health.New(logger, db).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
