package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/usabilitystudio/runtime/internal/activities/schedule"
	"github.com/usabilitystudio/runtime/internal/activities/study"
	"github.com/usabilitystudio/runtime/internal/analysis"
	"github.com/usabilitystudio/runtime/internal/browser"
	"github.com/usabilitystudio/runtime/internal/config"
	"github.com/usabilitystudio/runtime/internal/llm"
	"github.com/usabilitystudio/runtime/internal/navigator"
	"github.com/usabilitystudio/runtime/internal/recorder"
	"github.com/usabilitystudio/runtime/internal/repository/postgres"
	rediscache "github.com/usabilitystudio/runtime/internal/repository/redis"
	"github.com/usabilitystudio/runtime/internal/storage"
	"github.com/usabilitystudio/runtime/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.App.Environment)
	defer logger.Sync()

	logger.Info("Starting usability study worker",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("temporal_address", cfg.Temporal.Address()),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	db, err := postgres.New(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	repos := postgres.NewRepositories(db.DB)

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()
	liveState := rediscache.NewLiveStateStore(redisClient, logger, 0)
	progressBus := rediscache.NewProgressBus(redisClient, liveState)

	blobs, err := storage.NewMinIOClient(storage.MinIOConfig{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKey,
		SecretAccessKey: cfg.Storage.SecretKey,
		UseSSL:          cfg.Storage.UseSSL,
		BucketName:      cfg.Storage.Bucket,
	})
	if err != nil {
		logger.Fatal("Failed to create blob store client", zap.Error(err))
	}

	costTracker := llm.NewCostTracker(llm.DefaultCostConfig(), redisClient, logger)
	claudeCfg := llm.DefaultConfig()
	claudeCfg.APIKey = cfg.Claude.APIKey
	claudeCfg.Model = cfg.Claude.Model
	claudeCfg.MaxTokens = cfg.Claude.MaxTokens
	claudeCfg.Timeout = cfg.Claude.Timeout
	claude, err := llm.NewClaudeClient(claudeCfg, costTracker)
	if err != nil {
		logger.Fatal("Failed to create Claude client", zap.Error(err))
	}

	browserPool, err := browser.NewPool(browser.Config{
		MaxConcurrentSessions: cfg.Study.MaxConcurrentSessions,
		Headless:              cfg.App.Environment != "development",
	}, nil, logger)
	if err != nil {
		logger.Fatal("Failed to create browser pool", zap.Error(err))
	}

	stepRecorder := recorder.New(repos.Steps, repos.Sessions, blobs, liveState, progressBus, logger)
	nav := navigator.New(claude, stepRecorder, navigator.DefaultConfig(), logger)
	analyzer := analysis.NewAnalyzer(claude, blobs, repos.Issues, logger)
	prioritizer := analysis.NewPrioritizer(repos.Issues, repos.Sessions, logger)
	synthesizer := analysis.NewSynthesizer(claude, logger)

	studyActivity := study.NewActivity(repos, liveState, progressBus, browserPool, nav, analyzer, prioritizer, synthesizer, costTracker, study.Config{
		MaxConcurrentSessions: cfg.Study.MaxConcurrentSessions,
		CloudAvailable:        cfg.Study.CloudBrowserAvailable,
	}, logger)
	scheduleActivity := schedule.NewActivity(repos, logger)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address(),
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()
	logger.Info("Connected to Temporal server")

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.WorkerCount,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.WorkerCount,
	})

	w.RegisterWorkflow(workflows.RunStudyWorkflow)
	w.RegisterWorkflow(workflows.CheckSchedulesWorkflow)
	study.RegisterActivities(w, studyActivity)
	schedule.RegisterActivities(w, scheduleActivity)

	logger.Info("Registered workflows and activities",
		zap.Int("workflow_count", 2),
	)

	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- w.Run(worker.InterruptCh())
	}()

	logger.Info("Worker started successfully", zap.String("task_queue", cfg.Temporal.TaskQueue))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		if err != nil {
			logger.Fatal("Worker error", zap.Error(err))
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		w.Stop()
		logger.Info("Worker stopped gracefully")
	}
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
