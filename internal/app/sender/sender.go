// Package sender собирает сервис почтовых уведомлений:
// потребители очередей RabbitMQ и SMTP-транспорт.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/zoomarket/shop-subscriptions/internal/config"
	"github.com/zoomarket/shop-subscriptions/internal/lib/smtp"
	"github.com/zoomarket/shop-subscriptions/internal/rabbitmq"
	senderservice "github.com/zoomarket/shop-subscriptions/internal/services/sender"
)

// App представляет сервис отправки уведомлений владельцам магазинов.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New создает приложение: подключается к RabbitMQ и настраивает SMTP-транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей уведомлений и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "notification.expired", a.senderService.SendShopHiddenNotice)
	if err != nil {
		a.logger.Error("failed to start notification.expired consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, "notification.renewal", a.senderService.SendRenewalNotice)
	if err != nil {
		a.logger.Error("failed to start notification.renewal consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
