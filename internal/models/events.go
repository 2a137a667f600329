package models

import "time"

// LifecycleEvent сообщение о событии жизненного цикла подписки,
// публикуемое в RabbitMQ для сервиса уведомлений.
type LifecycleEvent struct {
	ShopID     string     `json:"shop_id"`
	ShopName   string     `json:"shop_name"`
	OwnerEmail string     `json:"owner_email"`
	Plan       Plan       `json:"plan"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	InitPoint  string     `json:"init_point,omitempty"` // Ссылка на оплату продления
}
