package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort      string
	APIAuthToken string
	LogLevel     string

	NATSURL     string
	NATSSubject string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AIAPIKey     string
	AIAPIBaseURL string
	AIModelName  string

	MarkHubAPIURL    string
	MarkHubAuthToken string

	ReaderAPIURL string

	PendingStorePath string
	SettingsPath     string

	ClassificationConcurrency int

	FallbackConfidence  float64
	FirstPickConfidence float64

	AgentMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:      mustEnv("API_PORT", "8080"),
		APIAuthToken: mustEnv("API_AUTH_TOKEN", ""),
		LogLevel:     mustEnv("LOG_LEVEL", "info"),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "bookmarks.capture"),

		RedisAddr:     mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: mustEnv("REDIS_PASSWORD", ""),
		RedisDB:       mustEnvInt("REDIS_DB", 0),

		AIAPIKey:     mustEnv("AI_API_KEY", ""),
		AIAPIBaseURL: mustEnv("AI_API_BASE_URL", "https://api.openai.com/v1"),
		AIModelName:  mustEnv("AI_MODEL_NAME", "gpt-3.5-turbo"),

		MarkHubAPIURL:    mustEnv("MARKHUB_API_URL", "https://markhub.app"),
		MarkHubAuthToken: mustEnv("MARKHUB_AUTH_TOKEN", ""),

		ReaderAPIURL: mustEnv("READER_API_URL", "https://api.pearktrue.cn/api/llmreader"),

		PendingStorePath: mustEnv("PENDING_STORE_PATH", "./data/pending.db"),
		SettingsPath:     mustEnv("SETTINGS_PATH", "./data/settings.yaml"),

		ClassificationConcurrency: mustEnvInt("CLASSIFICATION_CONCURRENCY", 5),

		FallbackConfidence:  mustEnvFloat("FALLBACK_CONFIDENCE", 0.3),
		FirstPickConfidence: mustEnvFloat("FIRST_PICK_CONFIDENCE", 0.2),

		AgentMetricsPort: mustEnv("AGENT_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
