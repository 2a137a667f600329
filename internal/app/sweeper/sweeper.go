// Package sweeper собирает фонового контроллёра сроков подписок:
// хранилище, платёжный шлюз и публикацию событий в RabbitMQ.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/zoomarket/shop-subscriptions/internal/cache"
	"github.com/zoomarket/shop-subscriptions/internal/config"
	"github.com/zoomarket/shop-subscriptions/internal/paymentprovider"
	"github.com/zoomarket/shop-subscriptions/internal/rabbitmq"
	subscriptionservice "github.com/zoomarket/shop-subscriptions/internal/services/subscription"
	sweeperservice "github.com/zoomarket/shop-subscriptions/internal/services/sweeper"
	"github.com/zoomarket/shop-subscriptions/internal/storage/repository"
)

// App представляет фоновый сервис обхода сроков подписок.
type App struct {
	sweeperService *sweeperservice.SweeperService
	conn           *amqp.Connection
	ch             *amqp.Channel
	logger         *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := db.CheckDatabaseReady(ctx)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр фонового сервиса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	gateway := paymentprovider.NewClient(cfg.AccessToken, cfg.APIURL, cfg.GatewayTimeout)
	subscriptionService := subscriptionservice.NewSubscriptionService(db, gateway, cacheRedis, cfg.Lifecycle, logger)
	sweeperService := sweeperservice.NewSweeperService(subscriptionService, cfg.SweepInterval, logger)

	return &App{
		sweeperService: sweeperService,
		conn:           conn,
		ch:             ch,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает периодический обход подписок.
func (a *App) Run(ctx context.Context) error {
	go a.sweeperService.Run(ctx, a.ch)

	<-ctx.Done()

	a.logger.Info("shutting down sweeper service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
