package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/farm-market/internal/domain/models"
)

// ProductStorage описывает методы для работы с таблицей товаров.
type ProductStorage interface {
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// LockProductByIDTx блокирует строку товара на время транзакции (FOR UPDATE NOWAIT).
	// При конфликте блокировки возвращает ErrLockConflict.
	LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListProductsByFarmer(ctx context.Context, farmerID int64) ([]*models.Product, error)
	// RemainingStock возвращает доступный к продаже остаток: заявленное
	// количество минус сумма заказов в статусах pending/accepted.
	// Считается одним запросом, чтобы чтение было согласованным.
	RemainingStock(ctx context.Context, id int64) (int, error)
	// DecrementQuantityTx уменьшает заявленное количество с отсечкой в ноль.
	// Вызывается только при переходе заказа в delivered.
	DecrementQuantityTx(ctx context.Context, tx *sql.Tx, id int64, qty int) error
	DeleteProductTx(ctx context.Context, tx *sql.Tx, id int64) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "id, name, image, quantity, price_cents, farmer_id, rating, created_at"

func scanProduct(row *sql.Row) (*models.Product, error) {
	product := &models.Product{}
	if err := row.Scan(&product.ID, &product.Name, &product.Image, &product.Quantity,
		&product.PriceCents, &product.FarmerID, &product.Rating, &product.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, image, quantity, price_cents, farmer_id, rating, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`,
		product.Name, product.Image, product.Quantity, product.PriceCents,
		product.FarmerID, product.Rating,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	product.ID = id
	return product, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *productRepository) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE NOWAIT", id)
	product := &models.Product{}
	if err := row.Scan(&product.ID, &product.Name, &product.Image, &product.Quantity,
		&product.PriceCents, &product.FarmerID, &product.Rating, &product.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, translateLockErr(err)
	}
	return product, nil
}

func (r *productRepository) listProducts(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product := &models.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Image, &product.Quantity,
			&product.PriceCents, &product.FarmerID, &product.Rating, &product.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return r.listProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
}

func (r *productRepository) ListProductsByFarmer(ctx context.Context, farmerID int64) ([]*models.Product, error) {
	return r.listProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE farmer_id = $1 ORDER BY id", farmerID)
}

func (r *productRepository) RemainingStock(ctx context.Context, id int64) (int, error) {
	var remaining int
	err := r.db.QueryRowContext(ctx, `
		SELECT p.quantity - COALESCE(SUM(o.quantity), 0)
		FROM products p
		LEFT JOIN orders o ON o.product_id = p.id AND o.status IN ('pending', 'accepted')
		WHERE p.id = $1
		GROUP BY p.quantity`, id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to compute remaining stock: %w", err)
	}
	return remaining, nil
}

func (r *productRepository) DecrementQuantityTx(ctx context.Context, tx *sql.Tx, id int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = GREATEST(quantity - $2, 0) WHERE id = $1", id, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement quantity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProductTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
