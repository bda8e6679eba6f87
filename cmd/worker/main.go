package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/config"
	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/logger"
	"github.com/pmarkell/routine-scheduler/internal/queue"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
	"github.com/pmarkell/routine-scheduler/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("calendar_backend", cfg.CalendarBackend),
		zap.String("calendar_id", cfg.CalendarID),
		zap.String("cron_schedule", cfg.CronSchedule),
	)

	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		zapLogger.Fatal("invalid_calendar_timezone", zap.String("timezone", cfg.CalendarTimezone), zap.Error(err))
	}

	reg, err := registry.Load(cfg.TasksFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_task_registry", zap.String("path", cfg.TasksFile), zap.Error(err))
	}
	zapLogger.Info("loaded_task_registry", zap.Int("tasks", reg.Len()))

	store, closeStore, err := newEventStore(cfg)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_calendar_backend", zap.Error(err))
	}
	defer closeStore()
	zapLogger.Info("connected_to_calendar_backend", zap.String("backend", cfg.CalendarBackend))

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	runLocks := lock.NewRunLock(redisClient, 0)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	opts := scheduler.Options{
		DayEnd:      cfg.DayEnd,
		StepMinutes: cfg.SlotStepMinutes,
	}
	processor := workers.NewRunProcessor(store, reg, opts, runLocks, jobQueue, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	zapLogger.Info("worker_started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				if err := processor.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("job_processing_failed",
						zap.Error(err),
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	var autoScheduler *workers.AutoScheduler
	if cfg.CronSchedule != "" {
		autoScheduler, err = workers.NewAutoScheduler(cfg.CronSchedule, loc, jobQueue, cfg.CalendarID, cfg.ScheduleDays, zapLogger)
		if err != nil {
			zapLogger.Fatal("invalid_cron_schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
		}
		autoScheduler.Start()
		zapLogger.Info("auto_scheduler_started",
			zap.String("schedule", cfg.CronSchedule),
			zap.Int("days", cfg.ScheduleDays),
		)
	}

	gc := queue.NewGarbageCollector(jobQueue, 1*time.Hour, 24*time.Hour, zapLogger)
	go func() {
		if err := gc.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	<-sigChan
	zapLogger.Info("shutdown_signal_received")

	if autoScheduler != nil {
		autoScheduler.Stop()
	}
	cancel()

	zapLogger.Info("worker_stopped")
}

// newEventStore builds the configured calendar backend. The returned func
// releases its resources.
func newEventStore(cfg *config.Config) (calendar.EventStore, func(), error) {
	switch cfg.CalendarBackend {
	case config.BackendGoogle:
		client, err := calendar.NewGoogleClient(calendar.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
			Timezone:     cfg.CalendarTimezone,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case config.BackendPostgres:
		store, err := calendar.NewPostgresStore(cfg.DatabaseURL, cfg.CalendarTimezone)
		if err != nil {
			return nil, nil, err
		}
		schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(schemaCtx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to ensure calendar schema: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown calendar backend %q", cfg.CalendarBackend)
	}
}
