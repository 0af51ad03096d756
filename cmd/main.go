package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	_ "acornbox/docs"
	"acornbox/internal/api"
	"acornbox/internal/auth"
	"acornbox/internal/config"
	"acornbox/internal/logger"
	"acornbox/internal/manager"
	"acornbox/internal/messaging"
	"acornbox/internal/metrics"
	"acornbox/internal/storage"
)

// @title Acorn Box API
// @version 1.0
// @description Sealed anonymous messages that exactly one principal may open, with a read/unread reply inbox.
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	mintPrincipal := pflag.String("mint-token", "", "print a development bearer token for this principal and exit")
	pflag.Parse()

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup JWT Secret
	auth.SetSecret(cfg.Auth.JWTSecret)

	// Minting runs before the logger so stdout carries only the token.
	if *mintPrincipal != "" {
		if err := mintToken(os.Stdout, *mintPrincipal); err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		return
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	logger.Info("configuration loaded", "path", *configPath, "driver", cfg.Database.Driver)

	if err := run(cfg); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// mintToken writes a bearer token for principal followed by a newline.
func mintToken(w io.Writer, principal string) error {
	tok, err := auth.GenerateToken(principal)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func run(cfg *config.Config) error {
	// Init Metrics
	metrics.Init()

	// Init storage
	db, err := storage.NewStorage(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer db.Close()
	logger.Info("database connected", "driver", cfg.Database.Driver)

	// Init RabbitMQ
	var events messaging.Publisher = messaging.Discard{}
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer rabbitClient.Close()
		events = rabbitClient
		logger.Info("rabbitmq connected", "exchange", cfg.RabbitMQ.Exchange)
	} else {
		logger.Warn("rabbitmq url not set, domain events are discarded")
	}

	boxes := manager.NewBoxManager(db, events, cfg.Limits.TokenAttempts)
	replies := manager.NewReplyManager(db, events)

	// Init API
	apiHandler := api.NewAPI(boxes, replies, db, cfg)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown Setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "err", err)
	}

	logger.Info("graceful shutdown complete")
	return nil
}
