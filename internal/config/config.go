package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	InFlightReject  = "reject"
	InFlightReplace = "replace"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir is the absolute path to the directory served at /static/.
	// Set via STATIC_DIR (relative paths are resolved against the process working directory at startup).
	StaticDir string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	// SQLiteLogSQL routes every statement through the slog logging connector at debug level.
	SQLiteLogSQL bool

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	// LLMAPIKey is the bearer credential for the completion service. It is only
	// ever read from the environment and never logged.
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	InFlightPolicy string
	SessionIdleTTL time.Duration

	// SinkWorkers and SinkQueue size the background delivery of extracted
	// records to the analysis log and MQTT.
	SinkWorkers int
	SinkQueue   int
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	staticDir := strings.TrimSpace(os.Getenv("STATIC_DIR"))
	if staticDir == "" {
		staticDir = "static"
	}
	staticDir, err = filepath.Abs(staticDir)
	if err != nil {
		return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := envOr("SQLITE_PATH", "dev/sqlite/envscope.db")

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := envBool("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := envOr("MQTT_BROKER", "localhost")
	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := envOr("MQTT_CLIENT_ID", "envscope-server")
	mqttTopicPrefix := strings.TrimRight(envOr("MQTT_TOPIC_PREFIX", "envscope"), "/")

	llmBaseURL := strings.TrimRight(envOr("LLM_BASE_URL", "https://api.groq.com/openai/v1"), "/")
	llmAPIKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if llmAPIKey == "" {
		llmAPIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	}
	if llmAPIKey == "" {
		return Config{}, fmt.Errorf("LLM_API_KEY (or GROQ_API_KEY) is required")
	}
	llmModel := envOr("LLM_MODEL", "mixtral-8x7b-32768")

	temperatureStr := envOr("LLM_TEMPERATURE", "0.5")
	temperature, err := strconv.ParseFloat(temperatureStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LLM_TEMPERATURE %q: %w", temperatureStr, err)
	}
	if temperature < 0 || temperature > 2 {
		return Config{}, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", temperature)
	}

	maxTokens, err := envInt("LLM_MAX_TOKENS", 2048)
	if err != nil {
		return Config{}, err
	}
	if maxTokens <= 0 {
		return Config{}, fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", maxTokens)
	}

	policy := strings.ToLower(envOr("INFLIGHT_POLICY", InFlightReject))
	switch policy {
	case InFlightReject, InFlightReplace:
	default:
		return Config{}, fmt.Errorf("invalid INFLIGHT_POLICY %q (allowed: reject, replace)", policy)
	}

	idleTTL, err := envDuration("SESSION_IDLE_TTL", 2*time.Hour)
	if err != nil {
		return Config{}, err
	}
	if idleTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_IDLE_TTL must be positive, got %v", idleTTL)
	}

	sinkWorkers, err := envInt("SINK_WORKERS", 2)
	if err != nil {
		return Config{}, err
	}
	sinkQueue, err := envInt("SINK_QUEUE", 64)
	if err != nil {
		return Config{}, err
	}
	if sinkWorkers <= 0 || sinkQueue <= 0 {
		return Config{}, fmt.Errorf("SINK_WORKERS and SINK_QUEUE must be positive, got %d and %d", sinkWorkers, sinkQueue)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		StaticDir:             staticDir,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogSQL:          logSQL,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTTopicPrefix:       mqttTopicPrefix,
		LLMBaseURL:            llmBaseURL,
		LLMAPIKey:             llmAPIKey,
		LLMModel:              llmModel,
		LLMTemperature:        temperature,
		LLMMaxTokens:          maxTokens,
		InFlightPolicy:        policy,
		SessionIdleTTL:        idleTTL,
		SinkWorkers:           sinkWorkers,
		SinkQueue:             sinkQueue,
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
