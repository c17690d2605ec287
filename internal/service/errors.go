package service

import "errors"

// Ошибки бизнес-уровня. Обработчики транспортного слоя сопоставляют их
// с HTTP-статусами; сервисы оборачивают их через %w с контекстом операции.
var (
	// ErrInsufficientStock — добавление в корзину или оформление заказа
	// превысило бы доступный остаток (заявленное количество минус резерв).
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrForbidden — операция над чужим ресурсом или недостаточная роль.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition — запрошенный переход статуса заказа не разрешён.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyCart — оформление пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductReserved — удаление товара заблокировано незавершёнными заказами.
	ErrProductReserved = errors.New("product has outstanding orders")
	// ErrConflict — транзакция дважды подряд столкнулась с конкурентной
	// блокировкой; первая попытка повторяется прозрачно.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrInvalidCredentials — неверная пара логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotApproved — пользователь ещё не одобрен администратором.
	ErrNotApproved = errors.New("user is not approved")
	// ErrUserExists — имя пользователя уже занято.
	ErrUserExists = errors.New("username already taken")
)
