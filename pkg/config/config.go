package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port             string
	ArchiveDir       string
	ArchiveTimezone  string
	ArchiveHour      int // local hour of the daily archival run
	BucketDelayMs    int // pause between hour buckets, 0 disables
	ChatAPIBaseURL   string
	ChatAppID        string
	ChatAppSecret    string
	DynamoDBEndpoint string
	DynamoDBRegion   string
	AWSAccessKey     string
	AWSSecretKey     string
	LogLevel         string
}

// Load reads configuration from a .env file (when present) and
// environment variables
func Load() *Config {
	// Missing .env is fine; the environment is the source of truth.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", "archive"),
		ArchiveTimezone:  getEnv("ARCHIVE_TIMEZONE", "Asia/Singapore"),
		ArchiveHour:      getEnvInt("ARCHIVE_HOUR", 3),
		BucketDelayMs:    getEnvInt("BUCKET_DELAY_MS", 0),
		ChatAPIBaseURL:   getEnv("CHAT_API_BASE_URL", "http://localhost:9000"),
		ChatAppID:        getEnv("CHAT_APP_ID", "dummy"),
		ChatAppSecret:    getEnv("CHAT_APP_SECRET", "dummy"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", "http://localhost:8000"),
		DynamoDBRegion:   getEnv("DYNAMODB_REGION", "us-east-1"),
		AWSAccessKey:     getEnv("AWS_ACCESS_KEY_ID", "dummy"),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", "dummy"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv reads an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
