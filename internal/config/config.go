package config

import (
	"fmt"
	"os"
	"strconv"
)

// Calendar backend names
const (
	BackendGoogle   = "google"
	BackendPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	TasksFile        string
	CalendarID       string
	CalendarTimezone string
	CalendarBackend  string
	DayEnd           string
	SlotStepMinutes  int
	ScheduleDays     int

	DatabaseURL        string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	ServerPort  string
	FrontendURL string
	EnableHSTS  bool
	RateLimit   string
	JWKSURL     string
	OIDCIssuer  string

	OpenAIKey string
	AIModel   string
	AIBaseURL string

	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	CronSchedule     string

	ServerDebugMode bool
	WorkerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		TasksFile:        getEnv("TASKS_FILE", "tasks.yaml"),
		CalendarID:       getEnv("CALENDAR_ID", "primary"),
		CalendarTimezone: getEnv("CALENDAR_TIMEZONE", "UTC"),
		CalendarBackend:  getEnv("CALENDAR_BACKEND", BackendPostgres),
		DayEnd:           getEnv("DAY_END", "22:00"),
		SlotStepMinutes:  getEnvInt("SLOT_STEP_MINUTES", 15),
		ScheduleDays:     getEnvInt("SCHEDULE_DAYS", 7),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:  getEnvBool("ENABLE_HSTS", false),
		RateLimit:   getEnv("RATE_LIMIT", "5-S"),
		JWKSURL:     getEnv("JWKS_URL", ""),
		OIDCIssuer:  getEnv("OIDC_ISSUER", ""),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", ""),
		AIBaseURL: getEnv("AI_BASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		CronSchedule:     getEnv("CRON_SCHEDULE", ""),

		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.TasksFile == "" {
		return nil, fmt.Errorf("TASKS_FILE is required")
	}

	switch cfg.CalendarBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres calendar backend")
		}
	case BackendGoogle:
		if cfg.GoogleClientID == "" || cfg.GoogleRefreshToken == "" {
			return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_REFRESH_TOKEN are required for the google calendar backend")
		}
	default:
		return nil, fmt.Errorf("unknown CALENDAR_BACKEND %q (must be %q or %q)", cfg.CalendarBackend, BackendGoogle, BackendPostgres)
	}

	if cfg.SlotStepMinutes <= 0 {
		return nil, fmt.Errorf("SLOT_STEP_MINUTES must be positive")
	}

	return cfg, nil
}

// RequireQueue verifies the job-queue settings the server and worker need.
// The CLI runs scheduling synchronously and does not call this.
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for async scheduling jobs")
	}
	return nil
}

// AuthEnabled reports whether API bearer-token verification is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWKSURL != "" && c.OIDCIssuer != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
