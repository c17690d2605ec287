package models

import "time"

// OrderStatus — статус заказа в жизненном цикле доставки
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusDelivered OrderStatus = "delivered"
	StatusRejected  OrderStatus = "rejected"
)

// validNext описывает допустимые переходы статусов.
// delivered и rejected — терминальные состояния.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusAccepted: true, StatusRejected: true},
	StatusAccepted:  {StatusDelivered: true, StatusRejected: true},
	StatusDelivered: {},
	StatusRejected:  {},
}

// CanTransition сообщает, разрешён ли переход из статуса from в to.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// ValidStatus проверяет, что строка является известным статусом заказа.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDelivered, StatusRejected:
		return true
	}
	return false
}

// Order представляет заказ, созданный при оформлении корзины.
// TotalPriceCents фиксируется в момент создания и не зависит от
// последующих изменений цены товара.
type Order struct {
	ID              int64       `json:"id"`
	ProductID       int64       `json:"product_id"`
	ProductName     string      `json:"product_name,omitempty"` // Заполняется через JOIN с таблицей products
	CustomerID      int64       `json:"customer_id"`
	FarmerID        int64       `json:"farmer_id"`
	Quantity        int         `json:"quantity"`
	TotalPriceCents int         `json:"total_price_cents"`
	Status          OrderStatus `json:"status"`
	OrderDate       time.Time   `json:"order_date"`
	DeliveryDate    *time.Time  `json:"delivery_date,omitempty"` // Устанавливается только при переходе в delivered
}
