// Package rabbitmq содержит инфраструктуру подключения к RabbitMQ
// и потребления сообщений очередей уведомлений.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"

	librabbitmq "github.com/zoomarket/shop-subscriptions/internal/lib/rabbitmq"
)

// Connect устанавливает соединение с RabbitMQ с повторными попытками.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, настраивает QoS и объявляет обменник
// и очереди уведомлений с привязками.
func SetupChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	if err := librabbitmq.SetupQueues(ch); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}
