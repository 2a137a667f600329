// Package shopsubscriptions собирает HTTP-приложение подписок магазинов:
// хранилище, кэш, платёжный шлюз и маршруты.
package shopsubscriptions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/zoomarket/shop-subscriptions/internal/cache"
	"github.com/zoomarket/shop-subscriptions/internal/config"
	"github.com/zoomarket/shop-subscriptions/internal/lib/jwt"
	"github.com/zoomarket/shop-subscriptions/internal/migrations"
	"github.com/zoomarket/shop-subscriptions/internal/paymentprovider"
	subscriptionservice "github.com/zoomarket/shop-subscriptions/internal/services/subscription"
	"github.com/zoomarket/shop-subscriptions/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New создает приложение: подключает Postgres, применяет миграции,
// поднимает Redis и платёжный шлюз, регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	gateway := paymentprovider.NewClient(cfg.AccessToken, cfg.APIURL, cfg.GatewayTimeout)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	subscriptionService := subscriptionservice.NewSubscriptionService(db, gateway, cacheRedis, cfg.Lifecycle, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, subscriptionService, db, jwtMaker)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run запускает HTTP-сервер и корректно останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", slog.String("error", closeErr.Error()))
		}
		return err
	}
}
