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

// CatalogService определяет операции над каталогом товаров.
type CatalogService interface {
	CreateProduct(ctx context.Context, farmerID int64, input ProductInput) (*models.Product, error)
	// ListProducts возвращает витрину с остатками: фермер видит свои товары,
	// покупатель и администратор — все.
	ListProducts(ctx context.Context, userID int64) ([]models.ProductStock, error)
	// RemainingStock — единственное авторитетное число доступного остатка.
	RemainingStock(ctx context.Context, productID int64) (int, error)
	RemoveProduct(ctx context.Context, productID, farmerID int64) error
}

// ProductInput — параметры создания товара. Rating приходит от внешнего
// классификатора качества и после создания не меняется.
type ProductInput struct {
	Name       string
	Image      string
	Quantity   int
	PriceCents int
	Rating     int
}

type catalogService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
}

func NewCatalogService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage) CatalogService {
	return &catalogService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, farmerID int64, input ProductInput) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("farmerID", farmerID), slog.String("name", input.Name))
	logger.Info("creating product")

	user, err := s.userRepo.GetUserByID(ctx, farmerID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	if user.Role != models.RoleFarmer {
		logger.Warn("only farmers can create products", slog.String("role", string(user.Role)))
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	product := &models.Product{
		Name:       input.Name,
		Image:      input.Image,
		Quantity:   input.Quantity,
		PriceCents: input.PriceCents,
		FarmerID:   farmerID,
		Rating:     input.Rating,
		CreatedAt:  time.Now(),
	}
	created, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w", op, err)
	}

	logger.Info("product created", slog.Int64("productID", created.ID))
	return created, nil
}

func (s *catalogService) ListProducts(ctx context.Context, userID int64) ([]models.ProductStock, error) {
	const op = "service.CatalogService.ListProducts"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	var products []*models.Product
	if user.Role == models.RoleFarmer {
		products, err = s.productRepo.ListProductsByFarmer(ctx, userID)
	} else {
		products, err = s.productRepo.ListProducts(ctx)
	}
	if err != nil {
		logger.Error("failed to list products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list products: %w", op, err)
	}

	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	reserved, err := s.orderRepo.ReservedQuantities(ctx, ids)
	if err != nil {
		logger.Error("failed to get reserved quantities", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get reserved quantities: %w", op, err)
	}

	out := make([]models.ProductStock, 0, len(products))
	for _, p := range products {
		out = append(out, models.ProductStock{
			Product:   *p,
			Remaining: p.Quantity - reserved[p.ID],
		})
	}
	return out, nil
}

func (s *catalogService) RemainingStock(ctx context.Context, productID int64) (int, error) {
	const op = "service.CatalogService.RemainingStock"

	remaining, err := s.productRepo.RemainingStock(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, nil
}

// RemoveProduct удаляет товар фермера. Удаление блокируется, пока по товару
// есть незавершённые (pending/accepted) заказы; завершённые заказы удалению
// не мешают — их снимки полей делают историю самодостаточной.
func (s *catalogService) RemoveProduct(ctx context.Context, productID, farmerID int64) error {
	const op = "service.CatalogService.RemoveProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", productID), slog.Int64("farmerID", farmerID))
	logger.Info("removing product")

	err := withLockRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		product, err := s.productRepo.LockProductByIDTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product.FarmerID != farmerID {
			return ErrForbidden
		}

		outstanding, err := s.orderRepo.HasOutstandingOrdersTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		if outstanding {
			return ErrProductReserved
		}

		if err := s.productRepo.DeleteProductTx(ctx, tx, productID); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		logger.Warn("failed to remove product", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product removed")
	return nil
}
