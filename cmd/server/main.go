package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/config"
	"github.com/pmarkell/routine-scheduler/internal/handlers"
	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/logger"
	"github.com/pmarkell/routine-scheduler/internal/middleware"
	"github.com/pmarkell/routine-scheduler/internal/queue"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
	"github.com/pmarkell/routine-scheduler/internal/services/ai"
	"github.com/pmarkell/routine-scheduler/internal/services/oidc"
	"github.com/pmarkell/routine-scheduler/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("calendar_backend", cfg.CalendarBackend),
		zap.String("calendar_id", cfg.CalendarID),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "routine-scheduler", serviceVersion, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		zapLogger.Fatal("invalid_calendar_timezone", zap.String("timezone", cfg.CalendarTimezone), zap.Error(err))
	}

	reg, err := registry.Load(cfg.TasksFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_task_registry", zap.String("path", cfg.TasksFile), zap.Error(err))
	}
	zapLogger.Info("loaded_task_registry",
		zap.String("path", cfg.TasksFile),
		zap.Int("tasks", reg.Len()),
	)

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
	zapLogger.Info("connected_to_redis")

	runLocks := lock.NewRunLock(redisClient, 0)

	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		rmq, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		jobQueue = rmq
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		zapLogger.Info("rabbitmq_not_configured_async_scheduling_disabled")
	}

	var commandRouter ai.CommandRouter
	if cfg.OpenAIKey != "" {
		commandRouter = ai.NewOpenAIRouter(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
		zapLogger.Info("command_router_enabled", zap.String("model", cfg.AIModel))
	} else {
		zapLogger.Info("openai_key_not_configured_commands_disabled")
	}

	opts := scheduler.Options{
		DayEnd:      cfg.DayEnd,
		StepMinutes: cfg.SlotStepMinutes,
	}

	scheduleHandler := handlers.NewScheduleHandler(store, reg, cfg.CalendarID, opts, runLocks, jobQueue, loc, zapLogger)
	commandHandler := handlers.NewCommandHandler(commandRouter, scheduleHandler, zapLogger)
	taskHandler := handlers.NewTaskHandler(reg)

	healthChecks := map[string]handlers.Pinger{
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}
	if pinger, ok := store.(handlers.Pinger); ok {
		healthChecks["calendar"] = pinger
	}
	if jobQueue != nil {
		healthChecks["queue"] = handlers.PingFunc(jobQueue.HealthCheck)
	}
	healthChecker := handlers.NewHealthChecker(healthChecks)

	r := mux.NewRouter()

	// Middleware executes in registration order; outermost first.
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware("routine-scheduler"))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	var authMW mux.MiddlewareFunc
	if cfg.AuthEnabled() {
		verifier := oidc.NewVerifier(oidc.NewKeyCache(cfg.JWKSURL), cfg.OIDCIssuer)
		authMW = middleware.Auth(verifier, zapLogger)
		zapLogger.Info("bearer_auth_enabled", zap.String("issuer", cfg.OIDCIssuer))
	} else {
		zapLogger.Warn("bearer_auth_disabled")
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if authMW != nil {
		apiRouter.Use(authMW)
	}
	apiRouter.Use(rateLimitMW)

	scheduleHandler.RegisterRoutes(apiRouter)
	commandHandler.RegisterRoutes(apiRouter)
	taskHandler.RegisterRoutes(apiRouter.PathPrefix("/tasks").Subrouter())

	// Preflight requests get headers from the CORS middleware.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(gcCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	gcCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
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
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to ensure calendar schema: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown calendar backend %q", cfg.CalendarBackend)
	}
}

// connectRabbitMQ retries the initial connection with exponential backoff to
// ride out broker startup delays.
func connectRabbitMQ(amqpURL string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			return q, nil
		}
		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"version":%q,"timestamp":"%s"}`, serviceVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
