// Package services содержит фоновый обходчик истечений: по расписанию
// переводит просроченные подписки в expired, запускает продления
// и публикует события для сервиса уведомлений.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/zoomarket/shop-subscriptions/internal/lib/rabbitmq"
	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// LifecycleController выполняет один обход жизненного цикла подписок.
type LifecycleController interface {
	ExpirySweep(ctx context.Context, now time.Time) (expired, renewals []models.LifecycleEvent, err error)
}

// SweeperService запускает обход по тикеру и публикует события в RabbitMQ.
type SweeperService struct {
	controller LifecycleController
	interval   time.Duration
	log        *slog.Logger
}

// NewSweeperService создает новый экземпляр SweeperService.
func NewSweeperService(controller LifecycleController, interval time.Duration, log *slog.Logger) *SweeperService {
	return &SweeperService{
		controller: controller,
		interval:   interval,
		log:        log,
	}
}

// Run выполняет обход сразу и затем по интервалу до отмены контекста.
func (s *SweeperService) Run(ctx context.Context, channel *amqp.Channel) {
	s.runSweep(ctx, channel)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx, channel)
		}
	}
}

func (s *SweeperService) runSweep(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting expiry sweep")
	expired, renewals, err := s.controller.ExpirySweep(ctx, time.Now())
	if err != nil {
		s.log.Error("expiry sweep failed", sl.Err(err))
		return
	}
	if len(expired) == 0 && len(renewals) == 0 {
		s.log.Info("no due subscriptions found")
		return
	}
	s.log.Info("expiry sweep finished",
		"expired", len(expired), "renewals", len(renewals))

	for _, ev := range expired {
		if err := rabbitmq.PublishMessage(channel, rabbitmq.Exchange, rabbitmq.RoutingExpired, ev); err != nil {
			s.log.Error("failed to publish expired event",
				slog.String("shop_id", ev.ShopID), sl.Err(err))
		}
	}
	for _, ev := range renewals {
		if err := rabbitmq.PublishMessage(channel, rabbitmq.Exchange, rabbitmq.RoutingRenewal, ev); err != nil {
			s.log.Error("failed to publish renewal event",
				slog.String("shop_id", ev.ShopID), sl.Err(err))
		}
	}
}
