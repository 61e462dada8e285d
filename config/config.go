package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings, read once from the environment.
type Config struct {
	DatabaseURL    string
	Host           string
	Port           string
	AllowedOrigins string

	JWTSecret string
	TokenTTL  time.Duration

	// Price checker settings. CheckCronSpec is the cadence of the whole
	// cycle and is independent of any product's own interval.
	CheckCronSpec string
	CycleWorkers  int
	FetchTimeout  time.Duration
	RenderSettle  time.Duration

	// Rate limiting (requests per second per client).
	RateLimit float64

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
}

// Load builds a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),
		TokenTTL:  getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour),

		CheckCronSpec: getEnv("CHECK_CRON_SPEC", "0 */5 * * * *"),
		CycleWorkers:  getEnvInt("CYCLE_WORKERS", 5),
		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		RenderSettle:  getEnvDuration("RENDER_SETTLE", 2*time.Second),

		RateLimit: getEnvFloat("RATE_LIMIT_RPS", 5),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
