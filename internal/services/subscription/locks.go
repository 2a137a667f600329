package services

import "sync"

// shopLocks сериализует мутации подписки в рамках одного магазина.
// Контроллер работает в одном инстансе, поэтому достаточно мьютекса
// на магазин; построчная блокировка в базе остаётся страховкой.
// Записи из карты не удаляются: их число ограничено числом магазинов.
type shopLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newShopLocks() *shopLocks {
	return &shopLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock блокирует операции по магазину и возвращает функцию разблокировки.
func (l *shopLocks) Lock(shopID string) func() {
	l.mu.Lock()
	m, ok := l.locks[shopID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[shopID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
