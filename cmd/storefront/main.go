// Package main запускает HTTP-сервер магазина Zona Botín.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zonabotin/storefront-system/internal/cart"
	"github.com/zonabotin/storefront-system/internal/cloudinary"
	"github.com/zonabotin/storefront-system/internal/config"
	"github.com/zonabotin/storefront-system/internal/handler"
	"github.com/zonabotin/storefront-system/internal/mercadopago"
	"github.com/zonabotin/storefront-system/internal/middleware"
	"github.com/zonabotin/storefront-system/internal/notifier"
	"github.com/zonabotin/storefront-system/internal/repository"
	"github.com/zonabotin/storefront-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	carts := cart.NewStore(cfg.RedisAddress)
	defer carts.Close()

	gateway := mercadopago.NewClient(cfg.MPAccessToken, "")
	uploader := cloudinary.NewClient(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset, "")

	svc := service.NewService(repo, gateway, uploader, cfg.BaseURL, cfg.AdminEmail)
	defer svc.Close()

	feed := notifier.New(svc, logger)

	authSecret := cfg.AuthSecret
	if authSecret == "" {
		authSecret = "zona-botin-secret"
	}
	authMiddleware := middleware.NewAuthMiddleware(authSecret)
	h := handler.NewHandler(svc, carts, feed, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Лента уведомлений администратора
	g.Go(func() error {
		feed.Run(ctx)
		return nil
	})

	// Отмена pending-заказов без платёжной ссылки
	g.Go(func() error {
		svc.StartOrphanSweep(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
