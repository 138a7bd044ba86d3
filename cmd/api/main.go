package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creator-playbook/internal/client"
	"creator-playbook/internal/config"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/ratelimit"
	"creator-playbook/internal/repository"
	"creator-playbook/internal/server"
	"creator-playbook/internal/service"
	"creator-playbook/internal/telemetry"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.IsDevelopment() || cfg.Log.Format == "console", logger.LogLevel(cfg.Log.Level)); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, &cfg.OTel)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	db, err := client.InitDBClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	fileStore, err := client.NewFileStore(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	mailClient := client.NewMailClient(&cfg.Mail)

	purchaseRepo := repository.NewPurchaseRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	contentRepo := repository.NewContentRepository(db)
	unlockRepo := repository.NewUnlockRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	services := server.Services{
		Checkout: service.NewCheckoutService(
			stripeClient, &cfg.Stripe, cfg.BaseURL,
			purchaseRepo,
			membershipRepo,
			contentRepo,
			nil,
		),
		Webhook: service.NewWebhookService(
			client.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
			stripeClient,
			purchaseRepo,
			membershipRepo,
			profileRepo,
			webhookEventRepo,
		),
		Purchase:     service.NewPurchaseService(stripeClient, purchaseRepo, contentRepo, fileStore, nil),
		Catalog:      service.NewCatalogService(contentRepo, membershipRepo, unlockRepo, fileStore, nil),
		Unlock:       service.NewUnlockService(unlockRepo, contentRepo),
		Registration: service.NewRegistrationService(registrationRepo, contentRepo, mailClient, &cfg.Mail),
		Profile:      service.NewProfileService(profileRepo, membershipRepo),
	}

	registrationLimiter, err := ratelimit.New(&cfg.RateLimit, "register", cfg.RateLimit.RegistrationPerMinute)
	if err != nil {
		return fmt.Errorf("init registration limiter: %w", err)
	}
	defer closeLimiter(registrationLimiter)
	unlockLimiter, err := ratelimit.New(&cfg.RateLimit, "unlock", cfg.RateLimit.UnlockPerMinute)
	if err != nil {
		return fmt.Errorf("init unlock limiter: %w", err)
	}
	defer closeLimiter(unlockLimiter)

	srv := server.NewServer(cfg, services, server.Limiters{
		Registration: registrationLimiter,
		Unlock:       unlockLimiter,
	})

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server",
		zap.String("addr", serverAddr),
		zap.String("environment", cfg.Environment.Name),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Info("signal received, starting graceful shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func closeLimiter(l ratelimit.Limiter) {
	if c, ok := l.(io.Closer); ok {
		_ = c.Close()
	}
}
