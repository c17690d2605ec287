package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/storage"
)

// CartService определяет операции над корзиной покупателя.
// Корзина — совещательная стадия: проверка остатка при добавлении не
// резервирует товар за покупателем, авторитетная проверка повторяется
// при оформлении заказа.
type CartService interface {
	AddToCart(ctx context.Context, customerID, productID int64, qty int) (*models.CartView, error)
	RemoveFromCart(ctx context.Context, customerID, productID int64) (*models.CartView, error)
	ViewCart(ctx context.Context, customerID int64) (*models.CartView, error)
}

type cartService struct {
	log         *slog.Logger
	carts       storage.CartStorage
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
}

func NewCartService(log *slog.Logger, carts storage.CartStorage, userRepo storage.UserStorage, productRepo storage.ProductStorage) CartService {
	return &cartService{
		log:         log,
		carts:       carts,
		userRepo:    userRepo,
		productRepo: productRepo,
	}
}

func (s *cartService) requireCustomer(ctx context.Context, customerID int64) error {
	user, err := s.userRepo.GetUserByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleCustomer {
		return ErrForbidden
	}
	return nil
}

func (s *cartService) view(customerID int64) *models.CartView {
	lines := s.carts.Lines(customerID)
	total := 0
	for _, line := range lines {
		total += line.UnitPriceCents * line.Quantity
	}
	return &models.CartView{Lines: lines, TotalCents: total}
}

// AddToCart добавляет товар в корзину. Отказывает, если суммарное количество
// в корзине превысило бы доступный остаток на момент проверки.
func (s *cartService) AddToCart(ctx context.Context, customerID, productID int64, qty int) (*models.CartView, error) {
	const op = "service.CartService.AddToCart"
	logger := s.log.With(slog.String("op", op),
		slog.Int64("customerID", customerID), slog.Int64("productID", productID), slog.Int("qty", qty))
	logger.Info("adding product to cart")

	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		logger.Warn("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	remaining, err := s.productRepo.RemainingStock(ctx, productID)
	if err != nil {
		logger.Error("failed to compute remaining stock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inCart := s.carts.Quantity(customerID, productID)
	if inCart+qty > remaining {
		logger.Warn("insufficient stock",
			slog.Int("inCart", inCart), slog.Int("remaining", remaining))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientStock)
	}

	s.carts.Add(customerID, models.CartLine{
		ProductID:      productID,
		ProductName:    product.Name,
		Quantity:       qty,
		UnitPriceCents: product.PriceCents,
		FarmerID:       product.FarmerID,
	})

	logger.Info("product added to cart")
	return s.view(customerID), nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, customerID, productID int64) (*models.CartView, error) {
	const op = "service.CartService.RemoveFromCart"
	logger := s.log.With(slog.String("op", op),
		slog.Int64("customerID", customerID), slog.Int64("productID", productID))

	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.carts.Remove(customerID, productID)
	logger.Info("product removed from cart")
	return s.view(customerID), nil
}

func (s *cartService) ViewCart(ctx context.Context, customerID int64) (*models.CartView, error) {
	const op = "service.CartService.ViewCart"

	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.view(customerID), nil
}
