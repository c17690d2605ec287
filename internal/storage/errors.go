package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrLockConflict возвращается, когда строка уже заблокирована другой
	// транзакцией (FOR UPDATE NOWAIT). Сервисный слой повторяет операцию один раз.
	ErrLockConflict = errors.New("row is locked by another transaction")
)

// translateLockErr превращает ошибку pq с кодом 55P03 (lock_not_available)
// в ErrLockConflict, остальные ошибки возвращает как есть.
func translateLockErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
		return ErrLockConflict
	}
	return err
}
