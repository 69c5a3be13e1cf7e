package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the report pipeline service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// LLM provider selection: gemini, openai, or stub
	LLMProvider string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// OpenAI configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Pipeline configuration
	ExtractionTimeout        time.Duration
	AggregationTimeout       time.Duration
	MaxConcurrentExtractions int
	LLMRequestsPerSecond     float64
	PhotoFetchTimeout        time.Duration
	WeatherTimeout           time.Duration

	// RabbitMQ configuration (subscriber disabled when URL empty)
	RabbitMQURL        string
	RabbitMQExchange   string
	RabbitMQQueue      string
	RabbitMQRoutingKey string
	RabbitMQPublishKey string
	RabbitMQWorkers    int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "siterecap"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// LLM defaults
		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		// Pipeline defaults
		ExtractionTimeout:        getDurationEnv("EXTRACTION_TIMEOUT", 60*time.Second),
		AggregationTimeout:       getDurationEnv("AGGREGATION_TIMEOUT", 60*time.Second),
		MaxConcurrentExtractions: getIntEnv("MAX_CONCURRENT_EXTRACTIONS", 4),
		LLMRequestsPerSecond:     getFloatEnv("LLM_REQUESTS_PER_SECOND", 2),
		PhotoFetchTimeout:        getDurationEnv("PHOTO_FETCH_TIMEOUT", 15*time.Second),
		WeatherTimeout:           getDurationEnv("WEATHER_TIMEOUT", 10*time.Second),

		// RabbitMQ defaults
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "siterecap"),
		RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", "report-requests"),
		RabbitMQRoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "reports.generate"),
		RabbitMQPublishKey: getEnv("RABBITMQ_PUBLISH_KEY", "reports.generated"),
		RabbitMQWorkers:    getIntEnv("RABBITMQ_WORKERS", 2),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
