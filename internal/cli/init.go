// Package cli holds the start-up steps shared by cmd/homeinspect and
// cmd/report-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"homeinspect/internal/config"
	"homeinspect/internal/core"
	"homeinspect/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging and validates.
// Exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// Domain resolves the period calendar and the checklist. Without
// CHECKLIST_FILE the built-in checklist is used.
func Domain(cfg *config.Config) (core.Calendar, core.Checklist, error) {
	loc, err := cfg.Location()
	if err != nil {
		return core.Calendar{}, core.Checklist{}, fmt.Errorf("load timezone: %w", err)
	}
	checklist, err := config.LoadChecklist(cfg.ChecklistFile)
	if err != nil {
		return core.Calendar{}, core.Checklist{}, err
	}
	return core.NewCalendar(loc), checklist, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
