package rabbitmq

import "github.com/streadway/amqp"

// QueueConfig описывает очередь уведомлений и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Exchange имя обменника для событий жизненного цикла подписок.
const Exchange = "subscriptions"

const (
	// RoutingExpired подписка истекла, магазин скрыт.
	RoutingExpired = "expired"
	// RoutingRenewal начато продление, владельцу нужна оплата.
	RoutingRenewal = "renewal"
)

// GetNotificationQueues возвращает очереди, которые слушает сервис уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.expired", RoutingKey: RoutingExpired},
		{QueueName: "notification.renewal", RoutingKey: RoutingRenewal},
	}
}

// SetupQueues объявляет обменник, очереди уведомлений и их привязки.
func SetupQueues(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	for _, q := range GetNotificationQueues() {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}
