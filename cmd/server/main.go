package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/linemk/farm-market/internal/app"
	"github.com/linemk/farm-market/internal/app/handlers"
	"github.com/linemk/farm-market/internal/config"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/lib/logger/handlers/urllog"
	"github.com/linemk/farm-market/internal/service"
	"github.com/linemk/farm-market/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// секреты для локального запуска можно держать в .env
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	// корзины живут в памяти процесса и в БД не сохраняются
	cartRepo := storage.NewCartStorage()

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	adminService := service.NewAdminService(application.Logger, userRepo)
	catalogService := service.NewCatalogService(application.Logger, application.DB, userRepo, productRepo, orderRepo)
	cartService := service.NewCartService(application.Logger, cartRepo, userRepo, productRepo)
	checkoutService := service.NewCheckoutService(application.Logger, application.DB, cartRepo, userRepo, productRepo, orderRepo)
	orderService := service.NewOrderService(application.Logger, application.DB, userRepo, productRepo, orderRepo)
	infoService := service.NewInfoService(application.Logger, userRepo, productRepo, orderRepo)

	// открытые эндпоинты: регистрация и аутентификация
	router.Post("/api/register", handlers.RegisterHandler(application.Logger, authService))
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)
		// витрина товаров с остатками
		r.Get("/api/products", handlers.ListProductsHandler(application.Logger, catalogService))
		r.Post("/api/products", handlers.CreateProductHandler(application.Logger, catalogService))
		r.Delete("/api/products/{productID}", handlers.RemoveProductHandler(application.Logger, catalogService))
		r.Get("/api/products/{productID}/stock", handlers.StockHandler(application.Logger, catalogService))
		// корзина покупателя
		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, cartService))
		r.Post("/api/cart", handlers.AddToCartHandler(application.Logger, cartService))
		r.Delete("/api/cart/{productID}", handlers.RemoveFromCartHandler(application.Logger, cartService))
		// оформление корзины в заказы
		r.Post("/api/checkout", handlers.CheckoutHandler(application.Logger, checkoutService))
		// заказы и их жизненный цикл
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Post("/api/orders/{orderID}/status", handlers.UpdateOrderStatusHandler(application.Logger, orderService))
		// сводка по роли
		r.Get("/api/dashboard", handlers.DashboardHandler(application.Logger, infoService))
		// операции администратора над заявками
		r.Get("/api/admin/requests", handlers.PendingUsersHandler(application.Logger, adminService))
		r.Post("/api/admin/users/{userID}/approve", handlers.ApproveUserHandler(application.Logger, adminService))
		r.Delete("/api/admin/users/{userID}", handlers.RejectUserHandler(application.Logger, adminService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
