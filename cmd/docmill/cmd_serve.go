package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docmill/docmill/internal/api"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Expose single-document processing over HTTP",
	RunE:         runServe,
	SilenceUsage: true,
}

var flagPort string

func init() {
	f := serveCmd.Flags()
	f.StringVar(&flagConfig, "config", "", "path to YAML config file")
	f.StringVarP(&flagOutput, "output", "o", "", "output root directory")
	f.StringVar(&flagPort, "port", "", "listen port")
	f.StringVar(&flagEnrichURL, "enrich-url", "", "bibliographic service base URL")
	f.StringVar(&flagExtractor, "extractor", "", "layout engine binary")
	f.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := os.MkdirAll(cfg.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	worker := newWorker(cfg, log)
	srv := api.NewServer(worker, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // extraction is slow; processing is synchronous
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docmill api", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
