// Package period содержит чистые функции расчёта дат периода подписки.
package period

import "time"

// End возвращает дату окончания периода подписки, начавшегося в start.
func End(start time.Time, months int) time.Time {
	return start.AddDate(0, months, 0)
}

// Extend продлевает подписку от прежней даты окончания.
// Если прежняя дата уже в прошлом, новый период отсчитывается от момента
// подтверждения платежа, чтобы владелец не платил за простой.
func Extend(prevEnd, confirmedAt time.Time, months int) time.Time {
	if prevEnd.Before(confirmedAt) {
		return confirmedAt.AddDate(0, months, 0)
	}
	return prevEnd.AddDate(0, months, 0)
}

// GraceDeadline возвращает крайний срок подтверждения платежа продления.
func GraceDeadline(endDate time.Time, grace time.Duration) time.Time {
	return endDate.Add(grace)
}
