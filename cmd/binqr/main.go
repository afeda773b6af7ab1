package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hud-code/binqr-server/internal/database"
	"github.com/hud-code/binqr-server/internal/email"
	"github.com/hud-code/binqr-server/internal/images"
	"github.com/hud-code/binqr-server/internal/logging"
	"github.com/hud-code/binqr-server/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("BINQR_LOG_LEVEL"))

	port := os.Getenv("BINQR_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("BINQR_DB_PATH")
	if dbPath == "" {
		dbPath = "binqr.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("BINQR_POSTMARK_TOKEN"),
		os.Getenv("BINQR_FROM_EMAIL"),
	)
	if !emailClient.Configured() {
		logger.Warn("email disabled, verification codes will be logged instead")
	}

	imageCfg := images.S3Config{
		Endpoint:      os.Getenv("BINQR_S3_ENDPOINT"),
		Bucket:        os.Getenv("BINQR_S3_BUCKET"),
		Region:        os.Getenv("BINQR_S3_REGION"),
		AccessKey:     os.Getenv("BINQR_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("BINQR_S3_SECRET_KEY"),
		PublicBaseURL: os.Getenv("BINQR_S3_PUBLIC_URL"),
	}

	srv := server.New(db, emailClient, imageCfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go cleanupLoop(ctx, srv, logger)

	go func() {
		logger.Info("binqr listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// cleanupLoop prunes expired sessions and verification codes, and trims the
// rate limiter's stale entries.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("cleanup sessions", "error", err)
			} else if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
			if n, err := srv.VerificationStore().DeleteExpired(); err != nil {
				logger.Error("cleanup verification codes", "error", err)
			} else if n > 0 {
				logger.Info("pruned expired verification codes", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
