package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"siges/internal/config"
	"siges/internal/listener"
	"siges/internal/pipeline"
	"siges/internal/storage"
	"siges/internal/submission"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	processor, err := pipeline.NewProcessingService(db, cfg, submission.NewClient(cfg), logger)
	must(err)

	svc := listener.NewService(db, cfg, processor, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("affiliate listener started",
		"provider", cfg.MailListenerProvider, "label", cfg.MailListenerLabel,
		"interval_sec", cfg.MailListenerIntervalSec, "auto_submit", cfg.MailListenerAutoSubmit)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
