package services

import (
	"github.com/zoomarket/shop-subscriptions/internal/models"
	"github.com/zoomarket/shop-subscriptions/internal/paymentprovider"
)

// Переходы машины состояний подписки как чистые функции.
// Здесь нет ни транспорта, ни хранилища: сервис читает состояние,
// прогоняет его через эти функции и записывает результат.

// NextOnOutcome возвращает статус подписки после итога платежа от шлюза.
// Второе значение false означает отсутствие перехода: неизвестный итог
// ничего не меняет, как и любой итог для подписки не в статусе pending.
func NextOnOutcome(status models.SubscriptionStatus, outcome paymentprovider.Outcome) (models.SubscriptionStatus, bool) {
	if status != models.SubscriptionPending {
		return status, false
	}
	switch outcome {
	case paymentprovider.OutcomeApproved:
		return models.SubscriptionActive, true
	case paymentprovider.OutcomeDeclined:
		return models.SubscriptionFailed, true
	default:
		return status, false
	}
}

// ProjectShopStatus возвращает статус магазина, производный от статуса
// подписки. Статус suspended — административный и никогда не снимается
// переходом подписки. Отменённая подписка оставляет магазин видимым
// до даты окончания: её переводит в expired обход по расписанию.
func ProjectShopStatus(sub models.SubscriptionStatus, current models.ShopStatus) models.ShopStatus {
	if current == models.ShopSuspended {
		return models.ShopSuspended
	}
	switch sub {
	case models.SubscriptionActive, models.SubscriptionCancelled:
		return models.ShopActive
	case models.SubscriptionExpired:
		return models.ShopExpired
	default:
		return models.ShopPendingPayment
	}
}

// CheckRetry проверяет, допустим ли повтор оплаты для подписки.
// Повтор разрешён только из статуса failed и только при ненулевом
// остатке бюджета попыток.
func CheckRetry(sub *models.Subscription) error {
	if sub.Status != models.SubscriptionFailed {
		return models.ErrInvalidState
	}
	if sub.AttemptsRemaining <= 0 {
		return models.ErrRetryExhausted
	}
	return nil
}

// CheckCancel проверяет, допустима ли отмена подписки.
func CheckCancel(sub *models.Subscription) error {
	if sub.Status != models.SubscriptionActive {
		return models.ErrInvalidState
	}
	return nil
}
