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

// OrderService управляет жизненным циклом заказа.
type OrderService interface {
	// UpdateStatus переводит заказ в новый статус от имени фермера-владельца.
	// Повторный перевод уже доставленного заказа в delivered — идемпотентный
	// no-op; остальные переходы из терминальных состояний запрещены.
	UpdateStatus(ctx context.Context, orderID, farmerID int64, newStatus models.OrderStatus, deliveryDate *time.Time) (*models.Order, error)
	// ListOrders возвращает заказы в зависимости от роли: фермер — входящие,
	// покупатель — свои, администратор — все.
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

// UpdateStatus выполняет переход статуса в одной транзакции. Строка заказа
// блокируется FOR UPDATE NOWAIT, поэтому два конкурентных перехода
// сериализуются, а списание остатка при доставке выполняется ровно один раз.
func (s *orderService) UpdateStatus(ctx context.Context, orderID, farmerID int64, newStatus models.OrderStatus, deliveryDate *time.Time) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op),
		slog.Int64("orderID", orderID), slog.Int64("farmerID", farmerID), slog.String("newStatus", string(newStatus)))
	logger.Info("updating order status")

	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, newStatus, ErrInvalidTransition)
	}

	var updated *models.Order
	err := withLockRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.FarmerID != farmerID {
			return ErrForbidden
		}

		// Идемпотентный повтор доставки: статус уже delivered, списание
		// остатка уже произошло — ничего не меняем.
		if order.Status == models.StatusDelivered && newStatus == models.StatusDelivered {
			updated = order
			return tx.Commit()
		}

		if !models.CanTransition(order.Status, newStatus) {
			return fmt.Errorf("%s -> %s: %w", order.Status, newStatus, ErrInvalidTransition)
		}

		if newStatus == models.StatusDelivered {
			// Физическое списание остатка: ровно один раз за жизнь заказа,
			// под блокировкой строки товара.
			if _, err := s.productRepo.LockProductByIDTx(ctx, tx, order.ProductID); err != nil {
				return err
			}
			if err := s.productRepo.DecrementQuantityTx(ctx, tx, order.ProductID, order.Quantity); err != nil {
				return err
			}
			if deliveryDate == nil {
				now := time.Now()
				deliveryDate = &now
			}
		} else {
			// delivery_date устанавливается только при переходе в delivered
			deliveryDate = nil
		}

		if err := s.orderRepo.UpdateStatusTx(ctx, tx, orderID, newStatus, deliveryDate); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		order.Status = newStatus
		if deliveryDate != nil {
			order.DeliveryDate = deliveryDate
		}
		updated = order
		return nil
	})
	if err != nil {
		logger.Warn("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("order status updated")
	return updated, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	var orders []*models.Order
	switch user.Role {
	case models.RoleFarmer:
		orders, err = s.orderRepo.ListOrdersByFarmer(ctx, userID)
	case models.RoleAdmin:
		orders, err = s.orderRepo.ListAllOrders(ctx)
	default:
		orders, err = s.orderRepo.ListOrdersByCustomer(ctx, userID)
	}
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	return orders, nil
}
