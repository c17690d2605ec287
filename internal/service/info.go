package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/storage"
)

// InfoService собирает сводку для дашборда в зависимости от роли пользователя.
type InfoService interface {
	GetDashboard(ctx context.Context, userID int64) (*DashboardResponse, error)
}

// DashboardResponse — сводка по роли; незаполненные поля опускаются в JSON.
type DashboardResponse struct {
	Role              models.Role `json:"role"`
	TotalProducts     int         `json:"total_products,omitempty"`
	TotalOrders       int         `json:"total_orders"`
	PendingOrders     int         `json:"pending_orders,omitempty"`
	PendingUsers      int         `json:"pending_users,omitempty"`
	TotalRevenueCents int         `json:"total_revenue_cents,omitempty"`
	TotalSpentCents   int         `json:"total_spent_cents,omitempty"`
}

type infoService struct {
	log         *slog.Logger
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
}

func NewInfoService(log *slog.Logger, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage) InfoService {
	return &infoService{
		log:         log,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

func (s *infoService) GetDashboard(ctx context.Context, userID int64) (*DashboardResponse, error) {
	const op = "service.InfoService.GetDashboard"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	switch user.Role {
	case models.RoleAdmin:
		return s.adminDashboard(ctx, op)
	case models.RoleFarmer:
		return s.farmerDashboard(ctx, op, userID)
	default:
		return s.customerDashboard(ctx, op, userID)
	}
}

func (s *infoService) adminDashboard(ctx context.Context, op string) (*DashboardResponse, error) {
	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders, err := s.orderRepo.ListAllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pending, err := s.userRepo.ListPendingUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &DashboardResponse{
		Role:          models.RoleAdmin,
		TotalProducts: len(products),
		TotalOrders:   len(orders),
		PendingUsers:  len(pending),
	}
	for _, order := range orders {
		if order.Status == models.StatusDelivered {
			resp.TotalRevenueCents += order.TotalPriceCents
		}
	}
	return resp, nil
}

func (s *infoService) farmerDashboard(ctx context.Context, op string, farmerID int64) (*DashboardResponse, error) {
	products, err := s.productRepo.ListProductsByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders, err := s.orderRepo.ListOrdersByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &DashboardResponse{
		Role:          models.RoleFarmer,
		TotalProducts: len(products),
		TotalOrders:   len(orders),
	}
	for _, order := range orders {
		switch order.Status {
		case models.StatusPending:
			resp.PendingOrders++
		case models.StatusDelivered:
			resp.TotalRevenueCents += order.TotalPriceCents
		}
	}
	return resp, nil
}

func (s *infoService) customerDashboard(ctx context.Context, op string, customerID int64) (*DashboardResponse, error) {
	orders, err := s.orderRepo.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &DashboardResponse{
		Role:        models.RoleCustomer,
		TotalOrders: len(orders),
	}
	for _, order := range orders {
		if order.Status == models.StatusPending {
			resp.PendingOrders++
		}
		resp.TotalSpentCents += order.TotalPriceCents
	}
	return resp, nil
}
