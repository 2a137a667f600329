package models

import "errors"

// Ошибки доменного уровня. Обработчики сопоставляют их через errors.Is
// и переводят в HTTP-статусы; хранилище и сервисы оборачивают их
// через fmt.Errorf с сохранением цепочки.
var (
	// ErrConflict для магазина уже существует подписка в статусе pending или active.
	ErrConflict = errors.New("subscription already exists for shop")
	// ErrNotFound магазин или подписка не найдены. Возвращается только при
	// отсутствии записи, не при сбое хранилища или шлюза.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState операция не допускается в текущем статусе подписки.
	ErrInvalidState = errors.New("operation not valid for current state")
	// ErrRetryExhausted бюджет повторных оплат исчерпан.
	ErrRetryExhausted = errors.New("payment retry budget exhausted")
	// ErrGatewayUnavailable платёжный шлюз недоступен или ответил с ошибкой.
	// Восстановимая ошибка: результат платежа трактуется как неизвестный.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrVersionConflict строка изменена конкурентной операцией, нужно перечитать.
	ErrVersionConflict = errors.New("row version conflict")
)
