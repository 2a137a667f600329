// Package models содержит доменные структуры магазина и подписки,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// ShopStatus статус видимости магазина в маркетплейсе.
// Магазин виден покупателям только при статусе ShopActive.
type ShopStatus string

const (
	// ShopActive магазин оплачен и виден в поиске и на карте.
	ShopActive ShopStatus = "active"
	// ShopPendingPayment магазин зарегистрирован, оплата подписки не подтверждена.
	ShopPendingPayment ShopStatus = "pending_payment"
	// ShopExpired срок подписки истёк, магазин скрыт.
	ShopExpired ShopStatus = "expired"
	// ShopSuspended магазин заблокирован администратором; снимается только вручную.
	ShopSuspended ShopStatus = "suspended"
)

// Shop представляет магазин продавца.
// Поле Status меняется только контроллером жизненного цикла подписки,
// остальные компоненты читают его как единственный источник истины о видимости.
type Shop struct {
	ID         string     // UUID магазина
	OwnerUID   string     // UID владельца из маркетплейса
	OwnerEmail string     // Email владельца для уведомлений
	Name       string     // Название магазина
	Status     ShopStatus // Текущий статус видимости
	Version    int64      // Версия строки для оптимистичной блокировки
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DummyShop используется для приёма данных регистрации магазина из JSON-запроса.
type DummyShop struct {
	Name       string `json:"name" validate:"required"`              // Название магазина
	OwnerEmail string `json:"owner_email" validate:"required,email"` // Email владельца
}

// Visible сообщает, должен ли магазин показываться покупателям.
func (s *Shop) Visible() bool {
	return s.Status == ShopActive
}
