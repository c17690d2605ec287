package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/farm-market/internal/service"
)

// CreateProductRequest — запрос на добавление товара. Rating приходит от
// внешнего классификатора качества, который вызывается слоем загрузки файлов.
type CreateProductRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Image      string `json:"image" validate:"omitempty,max=255"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
	PriceCents int    `json:"price_cents" validate:"required,gt=0"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
}

type StockResponse struct {
	ProductID int64 `json:"product_id"`
	Remaining int   `json:"remaining"`
}

// productID извлекает идентификатор товара из URL.
func productID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
}

// ListProductsHandler обрабатывает запрос GET /api/products.
// Фермер видит свои товары, покупатель и администратор — все; каждая позиция
// отдаётся вместе с доступным остатком.
func ListProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		products, err := catalog.ListProducts(r.Context(), userID)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, products)
	}
}

// CreateProductHandler обрабатывает запрос POST /api/products (только фермер).
func CreateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		product, err := catalog.CreateProduct(r.Context(), userID, service.ProductInput{
			Name:       req.Name,
			Image:      req.Image,
			Quantity:   req.Quantity,
			PriceCents: req.PriceCents,
			Rating:     req.Rating,
		})
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusCreated, product)
	}
}

// RemoveProductHandler обрабатывает запрос DELETE /api/products/{productID}.
func RemoveProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveProductHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := productID(r)
		if err != nil {
			logger.Error("invalid product id", slog.Any("error", err))
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		if err := catalog.RemoveProduct(r.Context(), id, userID); err != nil {
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// StockHandler обрабатывает запрос GET /api/products/{productID}/stock.
func StockHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StockHandler"
		logger := log.With(slog.String("op", op))

		id, err := productID(r)
		if err != nil {
			logger.Error("invalid product id", slog.Any("error", err))
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		remaining, err := catalog.RemainingStock(r.Context(), id)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, StockResponse{ProductID: id, Remaining: remaining})
	}
}
