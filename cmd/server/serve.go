package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/helpdesk-triage/internal/app"
	"github.com/suPer8Hu/helpdesk-triage/internal/config"
	"github.com/suPer8Hu/helpdesk-triage/internal/httpapi"
	"github.com/suPer8Hu/helpdesk-triage/internal/httpapi/handlers"
	"github.com/suPer8Hu/helpdesk-triage/internal/logger"
	"github.com/suPer8Hu/helpdesk-triage/internal/store/rabbitmq"
)

var debugLogging bool

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&debugLogging, "debug", false, "Debug logging with source locations on every record")
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if debugLogging {
		cfg.Logger.Level = "debug"
	}
	if err := logger.Init(cfg.Logger, debugLogging); err != nil {
		return config.Config{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown flush failed", "error", err)
		}
	}()

	var queue handlers.Publisher
	if cfg.Rabbit.Enabled {
		pub, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			return fmt.Errorf("rabbit publisher: %w", err)
		}
		defer pub.Close()
		queue = pub
		log.Info("ticket updates are queued", "queue", cfg.Rabbit.Queue)
	}

	if err := a.StartHousekeeping(); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	h := handlers.NewHandler(handlers.Deps{
		Chat:      a.Chat,
		Notify:    a.Notify,
		Queue:     queue,
		Articles:  a.Index,
		BotUserID: cfg.Slack.BotUserID,
		Log:       logger.WithComponent("http"),
	})
	if cfg.Slack.SigningSecret == "" {
		log.Warn("slack signing secret missing, request signatures are not checked")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(h, cfg.Slack.SigningSecret, logger.WithComponent("http")),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "address", cfg.Server.Addr, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}
	log.Info("server exited gracefully")
	return nil
}
