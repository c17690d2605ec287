package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/farm-market/internal/service"
)

// PendingUserResponse — заявка на регистрацию в списке администратора.
// Хэш пароля наружу не отдаётся.
type PendingUserResponse struct {
	ID               int64       `json:"id"`
	Username         string      `json:"username"`
	Role             models.Role `json:"role"`
	Phone            string      `json:"phone,omitempty"`
	Address          string      `json:"address,omitempty"`
	RegistrationDate time.Time   `json:"registration_date"`
}

type AdminActionResponse struct {
	Message string `json:"message"`
}

func adminUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

// PendingUsersHandler обрабатывает запрос GET /api/admin/requests.
func PendingUsersHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PendingUsersHandler"
		logger := log.With(slog.String("op", op))

		adminID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		users, err := adminService.PendingUsers(r.Context(), adminID)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		resp := make([]PendingUserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, PendingUserResponse{
				ID:               u.ID,
				Username:         u.Username,
				Role:             u.Role,
				Phone:            u.Phone,
				Address:          u.Address,
				RegistrationDate: u.RegistrationDate,
			})
		}
		respondJSON(w, logger, http.StatusOK, resp)
	}
}

// ApproveUserHandler обрабатывает запрос POST /api/admin/users/{userID}/approve.
func ApproveUserHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ApproveUserHandler"
		logger := log.With(slog.String("op", op))

		adminID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := adminUserID(r)
		if err != nil {
			logger.Error("invalid user id", slog.Any("error", err))
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		if err := adminService.ApproveUser(r.Context(), adminID, userID); err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, AdminActionResponse{Message: "User approved"})
	}
}

// RejectUserHandler обрабатывает запрос DELETE /api/admin/users/{userID}.
func RejectUserHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RejectUserHandler"
		logger := log.With(slog.String("op", op))

		adminID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := adminUserID(r)
		if err != nil {
			logger.Error("invalid user id", slog.Any("error", err))
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		if err := adminService.RejectUser(r.Context(), adminID, userID); err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, AdminActionResponse{Message: "User rejected"})
	}
}
