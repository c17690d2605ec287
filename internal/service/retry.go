package service

import (
	"errors"

	"github.com/linemk/farm-market/internal/storage"
)

// withLockRetry выполняет fn и повторяет её один раз, если транзакция
// наткнулась на конкурентную блокировку строки (FOR UPDATE NOWAIT).
// Повтор безопасен: до коммита последовательность проверка-затем-запись
// не оставляет следов. Второй конфликт подряд отдаётся вызывающему как ErrConflict.
func withLockRetry(fn func() error) error {
	err := fn()
	if !errors.Is(err, storage.ErrLockConflict) {
		return err
	}
	err = fn()
	if errors.Is(err, storage.ErrLockConflict) {
		return ErrConflict
	}
	return err
}
