package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	CORSAllowedOrigins []string

	// Dialogue generation is delegated to an external LLM service.
	LLMServerURL string
	LLMTimeout   time.Duration

	// Broker connection for the image/TTS dispatch queues.
	QueueDriver    string // "amqp" or "redis"
	BrokerHost     string
	BrokerPort     int
	BrokerUser     string
	BrokerPassword string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	ImageRequestQueue  string
	ImageResponseQueue string
	TTSRequestQueue    string
	TTSResponseQueue   string

	// DispatchMode selects between the polling correlator ("poll") and the
	// demultiplexing consumer ("demux").
	DispatchMode         string
	DispatchMaxWait      time.Duration
	DispatchPollInterval time.Duration

	StoragePath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	// Optional .env files; absence is not an error.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		LLMServerURL: getEnv("LLM_SERVER_URL", "http://localhost:8001"),
		LLMTimeout:   time.Second * time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)),

		QueueDriver:    getEnv("QUEUE_DRIVER", "amqp"),
		BrokerHost:     getEnv("RBMQ_HOST", "localhost"),
		BrokerPort:     getEnvInt("RBMQ_PORT", 5672),
		BrokerUser:     getEnv("RABBITMQ_USER", "guest"),
		BrokerPassword: getEnv("RABBITMQ_PASSWORD", "guest"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),

		ImageRequestQueue:  getEnv("IMAGE_REQUEST_QUEUE", "image_generation_requests"),
		ImageResponseQueue: getEnv("IMAGE_RESPONSE_QUEUE", "image_generation_responses"),
		TTSRequestQueue:    getEnv("TTS_REQUEST_QUEUE", "tts_generation_requests"),
		TTSResponseQueue:   getEnv("TTS_RESPONSE_QUEUE", "tts_generation_responses"),

		DispatchMode:         getEnv("DISPATCH_MODE", "poll"),
		DispatchMaxWait:      time.Second * time.Duration(getEnvInt("DISPATCH_MAX_WAIT_SECONDS", 600)),
		DispatchPollInterval: time.Second * time.Duration(getEnvInt("DISPATCH_POLL_INTERVAL_SECONDS", 1)),

		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout: time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	// The generate endpoints block for up to the dispatch wait budget, so the
	// write timeout must outlive it.
	defaultWrite := int(cfg.DispatchMaxWait/time.Second) + 30
	cfg.HTTPWriteTimeout = time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", defaultWrite))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.QueueDriver {
	case "amqp", "redis":
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}
	switch cfg.DispatchMode {
	case "poll", "demux":
	default:
		return nil, fmt.Errorf("unsupported DISPATCH_MODE %q", cfg.DispatchMode)
	}
	if cfg.DispatchPollInterval <= 0 {
		return nil, fmt.Errorf("DISPATCH_POLL_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
