package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/storage"
)

// AdminService — операции администратора над заявками на регистрацию.
type AdminService interface {
	PendingUsers(ctx context.Context, adminID int64) ([]*models.User, error)
	ApproveUser(ctx context.Context, adminID, userID int64) error
	// RejectUser отклоняет заявку и удаляет пользователя.
	RejectUser(ctx context.Context, adminID, userID int64) error
}

type adminService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
}

func NewAdminService(log *slog.Logger, userRepo storage.UserStorage) AdminService {
	return &adminService{log: log, userRepo: userRepo}
}

// requireAdmin проверяет роль вызывающего: проверка прав лежит в контракте
// операции, а не в транспортном слое.
func (s *adminService) requireAdmin(ctx context.Context, adminID int64) error {
	user, err := s.userRepo.GetUserByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *adminService) PendingUsers(ctx context.Context, adminID int64) ([]*models.User, error) {
	const op = "service.AdminService.PendingUsers"
	logger := s.log.With(slog.String("op", op), slog.Int64("adminID", adminID))

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.userRepo.ListPendingUsers(ctx)
	if err != nil {
		logger.Error("failed to list pending users", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (s *adminService) ApproveUser(ctx context.Context, adminID, userID int64) error {
	const op = "service.AdminService.ApproveUser"
	logger := s.log.With(slog.String("op", op), slog.Int64("adminID", adminID), slog.Int64("userID", userID))
	logger.Info("approving user")

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.userRepo.ApproveUser(ctx, userID); err != nil {
		logger.Warn("failed to approve user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user approved")
	return nil
}

func (s *adminService) RejectUser(ctx context.Context, adminID, userID int64) error {
	const op = "service.AdminService.RejectUser"
	logger := s.log.With(slog.String("op", op), slog.Int64("adminID", adminID), slog.Int64("userID", userID))
	logger.Info("rejecting user")

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.userRepo.DeleteUser(ctx, userID); err != nil {
		logger.Warn("failed to reject user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user rejected")
	return nil
}
