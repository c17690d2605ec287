package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/storage"
)

// CheckoutService превращает корзину в заказы.
type CheckoutService interface {
	// Checkout атомарно создаёт заказы по всем строкам корзины и очищает её.
	// Все или ничего: если хотя бы по одной строке остатка не хватает,
	// ни один заказ не создаётся и корзина остаётся нетронутой.
	Checkout(ctx context.Context, customerID int64) ([]int64, error)
}

type checkoutService struct {
	log         *slog.Logger
	db          *sql.DB
	carts       storage.CartStorage
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
}

func NewCheckoutService(log *slog.Logger, db *sql.DB, carts storage.CartStorage, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage) CheckoutService {
	return &checkoutService{
		log:         log,
		db:          db,
		carts:       carts,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, customerID int64) ([]int64, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.Int64("customerID", customerID))
	logger.Info("starting checkout transaction")

	user, err := s.userRepo.GetUserByID(ctx, customerID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	if user.Role != models.RoleCustomer {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	// Lines отдаёт строки отсортированными по productID — блокировки
	// берутся в одном и том же порядке, что исключает взаимоблокировку
	// двух конкурентных оформлений.
	lines := s.carts.Lines(customerID)
	if len(lines) == 0 {
		logger.Warn("cart is empty")
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	var orderIDs []int64
	err = withLockRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		orderIDs = orderIDs[:0]
		orderDate := time.Now()

		for _, line := range lines {
			// Под блокировкой строки товара повторяем авторитетную проверку:
			// снимок корзины мог устареть с момента добавления.
			product, err := s.productRepo.LockProductByIDTx(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			reserved, err := s.orderRepo.ReservedQuantityTx(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			if line.Quantity > product.Quantity-reserved {
				logger.Warn("insufficient stock at checkout",
					slog.Int64("productID", line.ProductID),
					slog.Int("requested", line.Quantity),
					slog.Int("remaining", product.Quantity-reserved))
				return ErrInsufficientStock
			}

			// Цена — снимок из корзины: изменение цены товара после
			// добавления не влияет на итог заказа.
			id, err := s.orderRepo.CreateOrderTx(ctx, tx, &models.Order{
				ProductID:       line.ProductID,
				CustomerID:      customerID,
				FarmerID:        product.FarmerID,
				Quantity:        line.Quantity,
				TotalPriceCents: line.UnitPriceCents * line.Quantity,
				Status:          models.StatusPending,
				OrderDate:       orderDate,
			})
			if err != nil {
				return err
			}
			orderIDs = append(orderIDs, id)
		}
		return tx.Commit()
	})
	if err != nil {
		logger.Warn("checkout failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Корзина очищается только после успешного коммита.
	s.carts.Clear(customerID)
	logger.Info("checkout completed successfully", slog.Int("orders", len(orderIDs)))
	return orderIDs, nil
}
