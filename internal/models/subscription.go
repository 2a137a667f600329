package models

import "time"

// SubscriptionStatus статус подписки магазина.
type SubscriptionStatus string

const (
	// SubscriptionPending платёж создан, подтверждение от шлюза не получено.
	SubscriptionPending SubscriptionStatus = "pending"
	// SubscriptionActive платёж подтверждён, подписка действует до EndDate.
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionExpired срок подписки истёк, терминальный статус.
	SubscriptionExpired SubscriptionStatus = "expired"
	// SubscriptionFailed платёж отклонён шлюзом, возможен повтор через RetryPayment.
	SubscriptionFailed SubscriptionStatus = "failed"
	// SubscriptionCancelled подписка отменена владельцем, терминальный статус.
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Plan тариф подписки магазина.
type Plan string

const (
	// PlanRetailer тариф для розничных магазинов.
	PlanRetailer Plan = "retailer"
	// PlanWholesaler тариф для оптовых магазинов.
	PlanWholesaler Plan = "wholesaler"
)

// Subscription представляет подписку магазина на видимость в маркетплейсе.
// На магазин в любой момент приходится не более одной подписки
// в статусе pending или active.
// Даты StartDate и EndDate заполняются только после подтверждения платежа.
// GraceUntil заполняется при старте продления: до этого момента платёж
// продления ещё может быть подтверждён, после — подписка истекает.
type Subscription struct {
	ID                string             // UUID подписки
	ShopID            string             // UUID магазина
	Plan              Plan               // Тариф
	Amount            int64              // Стоимость за период, в сентаво
	Status            SubscriptionStatus // Текущий статус
	AutoRenew         bool               // Продлевать автоматически
	AttemptsRemaining int                // Остаток бюджета повторных оплат
	PaymentSessionRef string             // Ссылка на сессию оплаты у шлюза
	StartDate         *time.Time         // Начало действия
	EndDate           *time.Time         // Конец действия
	GraceUntil        *time.Time         // Крайний срок подтверждения продления
	Version           int64              // Версия строки для оптимистичной блокировки
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DummySubscription используется для приёма данных из JSON-запроса
// на создание подписки. Стоимость клиентом не передаётся — берётся из тарифа.
type DummySubscription struct {
	ShopID    string `json:"shop_id" validate:"required,uuid"`                   // UUID магазина
	Plan      string `json:"plan" validate:"required,oneof=retailer wholesaler"` // Тариф
	AutoRenew bool   `json:"auto_renew"`                                         // Автопродление
}

// Settled сообщает, что подписка находится в терминальном статусе
// и не ожидает никаких событий от платёжного шлюза.
func (s *Subscription) Settled() bool {
	return s.Status == SubscriptionExpired || s.Status == SubscriptionCancelled
}
