// Command scheduler owns check_schedules_task (§4.7): it starts
// CheckSchedulesWorkflow as a Temporal cron workflow and then exits once
// the workflow has been accepted, since Temporal's own server handles the
// firing from there. It is meant to be run once (or re-run idempotently)
// at deploy time rather than kept alive as a long-running process.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/usabilitystudio/runtime/internal/config"
	"github.com/usabilitystudio/runtime/internal/jobqueue"
	itemporal "github.com/usabilitystudio/runtime/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.App.Environment)
	defer logger.Sync()

	c, err := itemporal.NewClient(cfg.Temporal, logger)
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	run, err := jobqueue.EnsureSchedulerRunning(context.Background(), c)
	if err != nil {
		logger.Fatal("Failed to start check_schedules_task cron workflow", zap.Error(err))
	}

	logger.Info("check_schedules_task cron workflow running",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
}

func initLogger(env string) *zap.Logger {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
