package config

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort     string
	JWTSecret    string
	CookieSecure bool

	// Storage: "json" (flat files under DataDir), "sqlite", or "mysql".
	StoreDriver string
	DataDir     string
	DBDSN       string

	// Optional; enables the logout token blacklist when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AI provider
	AIProvider            string
	OpenRouterBaseURL     string
	OpenRouterAPIKey      string
	OpenRouterModel       string
	OllamaBaseURL         string
	OllamaModel           string
	ChatContextWindowSize int

	// Optional; enables the async chat endpoints when RabbitURL is set.
	RabbitURL   string
	RabbitQueue string
}

// Load reads configuration from the environment (after a best-effort
// .env load). A missing JWT_SECRET is a startup failure, never a default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET environment variable is required")
	}

	cfg := Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		JWTSecret:    secret,
		CookieSecure: getEnv("COOKIE_SECURE", "") == "true",

		StoreDriver: getEnv("STORE_DRIVER", "json"),
		DataDir:     getEnv("DATA_DIR", "data"),
		DBDSN:       os.Getenv("DB_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AIProvider:            getEnv("AI_PROVIDER", "openrouter"),
		OpenRouterBaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:      os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:       getEnv("OPENROUTER_MODEL", "openrouter/anthropic/claude-sonnet-4"),
		OllamaBaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:           getEnv("OLLAMA_MODEL", "llama3:latest"),
		ChatContextWindowSize: getEnvAsInt("CHAT_CONTEXT_WINDOW_SIZE", 10),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "chat_jobs"),
	}

	switch cfg.StoreDriver {
	case "json":
	case "sqlite", "mysql":
		if cfg.DBDSN == "" {
			return Config{}, errors.New("DB_DSN is required for STORE_DRIVER=" + cfg.StoreDriver)
		}
	default:
		return Config{}, errors.New("unsupported STORE_DRIVER=" + cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
