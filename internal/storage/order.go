package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/farm-market/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет новый заказ в рамках транзакции оформления корзины.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// LockOrderByIDTx блокирует строку заказа (FOR UPDATE NOWAIT), чтобы два
	// конкурентных перехода статуса сериализовались.
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, deliveryDate *time.Time) error
	// ReservedQuantityTx возвращает суммарное количество по заказам товара
	// в статусах pending/accepted — зарезервированную часть заявленного остатка.
	ReservedQuantityTx(ctx context.Context, tx *sql.Tx, productID int64) (int, error)
	ReservedQuantity(ctx context.Context, productID int64) (int, error)
	// ReservedQuantities считает резерв сразу для набора товаров (для витрины).
	ReservedQuantities(ctx context.Context, productIDs []int64) (map[int64]int, error)
	// HasOutstandingOrdersTx сообщает, есть ли у товара незавершённые заказы.
	HasOutstandingOrdersTx(ctx context.Context, tx *sql.Tx, productID int64) (bool, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*models.Order, error)
	ListOrdersByFarmer(ctx context.Context, farmerID int64) ([]*models.Order, error)
	ListAllOrders(ctx context.Context) ([]*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const reservedStatuses = "('pending', 'accepted')"

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (product_id, customer_id, farmer_id, quantity, total_price_cents, status, order_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		order.ProductID, order.CustomerID, order.FarmerID, order.Quantity,
		order.TotalPriceCents, order.Status, order.OrderDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func scanOrderRow(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	if err := row.Scan(&order.ID, &order.ProductID, &order.CustomerID, &order.FarmerID,
		&order.Quantity, &order.TotalPriceCents, &order.Status, &order.OrderDate,
		&order.DeliveryDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

const orderColumns = "id, product_id, customer_id, farmer_id, quantity, total_price_cents, status, order_date, delivery_date"

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return scanOrderRow(row)
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE NOWAIT", id)
	order := &models.Order{}
	if err := row.Scan(&order.ID, &order.ProductID, &order.CustomerID, &order.FarmerID,
		&order.Quantity, &order.TotalPriceCents, &order.Status, &order.OrderDate,
		&order.DeliveryDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, translateLockErr(err)
	}
	return order, nil
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, deliveryDate *time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $2, delivery_date = COALESCE($3, delivery_date) WHERE id = $1",
		id, status, deliveryDate)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ReservedQuantityTx(ctx context.Context, tx *sql.Tx, productID int64) (int, error) {
	var reserved int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE product_id = $1 AND status IN "+reservedStatuses,
		productID).Scan(&reserved)
	if err != nil {
		return 0, fmt.Errorf("failed to sum reserved quantity: %w", err)
	}
	return reserved, nil
}

func (r *orderRepository) ReservedQuantity(ctx context.Context, productID int64) (int, error) {
	var reserved int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE product_id = $1 AND status IN "+reservedStatuses,
		productID).Scan(&reserved)
	if err != nil {
		return 0, fmt.Errorf("failed to sum reserved quantity: %w", err)
	}
	return reserved, nil
}

func (r *orderRepository) ReservedQuantities(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	reserved := make(map[int64]int, len(productIDs))
	if len(productIDs) == 0 {
		return reserved, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, COALESCE(SUM(quantity), 0) FROM orders WHERE product_id = ANY($1) AND status IN "+reservedStatuses+" GROUP BY product_id",
		pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to sum reserved quantities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		reserved[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reserved, nil
}

func (r *orderRepository) HasOutstandingOrdersTx(ctx context.Context, tx *sql.Tx, productID int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE product_id = $1 AND status IN "+reservedStatuses+")",
		productID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.ProductID, &order.ProductName, &order.CustomerID,
			&order.FarmerID, &order.Quantity, &order.TotalPriceCents, &order.Status,
			&order.OrderDate, &order.DeliveryDate); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// LEFT JOIN, потому что товар мог быть удалён после завершения заказа.
const listOrdersQuery = `
	SELECT o.id, o.product_id, COALESCE(p.name, ''), o.customer_id, o.farmer_id,
	       o.quantity, o.total_price_cents, o.status, o.order_date, o.delivery_date
	FROM orders o
	LEFT JOIN products p ON o.product_id = p.id`

func (r *orderRepository) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*models.Order, error) {
	return r.listOrders(ctx, listOrdersQuery+" WHERE o.customer_id = $1 ORDER BY o.order_date DESC, o.id DESC", customerID)
}

func (r *orderRepository) ListOrdersByFarmer(ctx context.Context, farmerID int64) ([]*models.Order, error) {
	return r.listOrders(ctx, listOrdersQuery+" WHERE o.farmer_id = $1 ORDER BY o.order_date DESC, o.id DESC", farmerID)
}

func (r *orderRepository) ListAllOrders(ctx context.Context) ([]*models.Order, error) {
	return r.listOrders(ctx, listOrdersQuery+" ORDER BY o.order_date DESC, o.id DESC")
}
