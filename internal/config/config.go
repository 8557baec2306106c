package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port           string
	AllowedOrigins string

	// Environment
	Environment string

	// JWT (used only to identify callers that present a token; the scan
	// endpoint itself does not require auth)
	JWTSecret string

	// Vision extraction API
	VisionAPIURL  string
	VisionModel   string
	VisionTimeout time.Duration

	// S3/Garage receipt image archive (optional)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	S3Region    string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production-please"),
		VisionAPIURL:   getEnv("VISION_API_URL", ""),
		VisionModel:    getEnv("VISION_MODEL", ""),
		VisionTimeout:  getDurationEnv("VISION_TIMEOUT_SECONDS", 60) * time.Second,
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Bucket:       getEnv("S3_BUCKET", "receipts"),
		S3UseSSL:       getBoolEnv("S3_USE_SSL", false),
		S3Region:       getEnv("S3_REGION", "garage"),
	}
}

// ArchiveConfigured reports whether the optional image archive has enough
// configuration to be initialized.
func (c *Config) ArchiveConfigured() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
	}
	return time.Duration(defaultValue)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
