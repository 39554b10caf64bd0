package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/venuebook/docs"
	"github.com/kirinyoku/venuebook/internal/app"
	"github.com/kirinyoku/venuebook/internal/config"
)

// @title VenueBook API
// @version 1.0
// @description Booking ledger for a venue marketplace: availability, bookings, payments and invoices.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
