package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/farm-market/internal/domain/models"
	security "github.com/linemk/farm-market/internal/jwt-new"
	"github.com/linemk/farm-market/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string, role models.Role, phone, address string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// Register создаёт заявку на регистрацию фермера или покупателя.
// Пароль хэшируется через bcrypt; пользователь остаётся неодобренным,
// пока администратор не подтвердит заявку. Регистрация администратора
// через эту операцию запрещена.
func (a *AuthService) Register(ctx context.Context, username, password string, role models.Role, phone, address string) (*models.User, error) {
	const op = "service.AuthService.Register"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
		slog.String("role", string(role)),
	)
	logger.Info("registering user")

	if role != models.RoleFarmer && role != models.RoleCustomer {
		logger.Warn("registration with disallowed role")
		return nil, fmt.Errorf("%s: role %q is not allowed: %w", op, role, ErrForbidden)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	newUser := &models.User{
		Username:         username,
		PassHash:         passHash,
		Role:             role,
		Phone:            phone,
		Address:          address,
		RegistrationDate: time.Now(),
		IsApproved:       false,
	}
	user, err := a.userRepo.CreateUser(ctx, newUser)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			logger.Warn("username already taken")
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("registration submitted", slog.Int64("userID", user.ID))
	return user, nil
}

// Login осуществляет аутентификацию пользователя.
// Введённый пароль сравнивается с сохранённым bcrypt-хэшем; вход возможен
// только после одобрения администратором. После успешной проверки
// генерируется JWT-токен (секрет для подписи берётся из переменной окружения).
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.IsApproved {
		logger.Warn("user is not approved yet")
		return "", fmt.Errorf("%s: %w", op, ErrNotApproved)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, nil
}
