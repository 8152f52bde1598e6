package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Host string
	Env  string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPath     string

	// Storage configuration for gallery images
	StorageBackend string // "disk", "memory", "s3"
	StoragePath    string // For disk backend
	S3Endpoint     string // Custom endpoint for S3-compatible services
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool // Path-style addressing (required for MinIO and friends)

	MaxUploadSize int64 // Per-file limit for gallery images

	SessionSecret   string
	SessionDuration string
	JWTSecret       string
	JWTExpiry       time.Duration
	BcryptCost      int
	CSRFEnabled     bool

	EnableRegistration bool

	// Upload tracker configuration
	UploadRemoveDelay    time.Duration // Delay before a terminal session leaves the active set
	UploadSnapshotMaxAge time.Duration // Persisted sessions older than this are pruned

	// Redis snapshot store ("" disables, falls back to in-memory)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AMQP mailer ("" disables, falls back to log-only delivery)
	AMQPURL string

	// PublicBaseURL is prepended to password-reset and verification links.
	PublicBaseURL string

	// NotificationRetentionDays controls cleanup of old read notifications.
	NotificationRetentionDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		Host:                      getEnv("HOST", "0.0.0.0"),
		Env:                       getEnv("ENV", "development"),
		DBType:                    getEnv("DB_TYPE", "sqlite"),
		DBHost:                    getEnv("DB_HOST", "localhost"),
		DBPort:                    getEnv("DB_PORT", "5432"),
		DBName:                    getEnv("DB_NAME", "artfolio"),
		DBUser:                    getEnv("DB_USER", "artfolio"),
		DBPassword:                getEnv("DB_PASSWORD", ""),
		DBPath:                    getEnv("DB_PATH", "./data/artfolio.db"),
		StorageBackend:            getEnv("STORAGE_BACKEND", "disk"),
		StoragePath:               getEnv("STORAGE_PATH", "./data/uploads"),
		S3Endpoint:                getEnv("S3_ENDPOINT", ""),
		S3Region:                  getEnv("S3_REGION", "us-east-1"),
		S3Bucket:                  getEnv("S3_BUCKET", ""),
		S3AccessKey:               getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:               getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle:            getEnvBool("S3_USE_PATH_STYLE", false),
		MaxUploadSize:             getEnvSize("MAX_UPLOAD_SIZE", "10M"),
		SessionSecret:             getEnv("SESSION_SECRET", "change_me_in_production_32bytes!"),
		SessionDuration:           getEnv("SESSION_DURATION", "168h"),
		JWTSecret:                 getEnv("JWT_SECRET", "change_me_in_production"),
		JWTExpiry:                 getEnvDuration("JWT_EXPIRES_IN", "168h"),
		BcryptCost:                getEnvInt("BCRYPT_COST", 10),
		CSRFEnabled:               getEnvBool("CSRF_ENABLED", true),
		EnableRegistration:        getEnvBool("ENABLE_REGISTRATION", true),
		UploadRemoveDelay:         getEnvDuration("UPLOAD_REMOVE_DELAY", "5s"),
		UploadSnapshotMaxAge:      getEnvDuration("UPLOAD_SNAPSHOT_MAX_AGE", "1h"),
		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		AMQPURL:                   getEnv("AMQP_URL", ""),
		PublicBaseURL:             getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		NotificationRetentionDays: getEnvInt("NOTIFICATION_RETENTION_DAYS", 30),
	}

	if cfg.NotificationRetentionDays < 1 {
		cfg.NotificationRetentionDays = 1
	}
	if cfg.UploadRemoveDelay <= 0 {
		cfg.UploadRemoveDelay = 5 * time.Second
	}
	if cfg.UploadSnapshotMaxAge <= 0 {
		cfg.UploadSnapshotMaxAge = time.Hour
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in a non-production
// environment where debugging conveniences (like returning reset
// tokens in responses) are allowed.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// parseSize converts human-readable sizes (e.g., "10M", "1.5G") to bytes.
// Supports B, K/KB, M/MB, G/GB, T/TB, case-insensitive.
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))

	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(sizeStr, "TB") || strings.HasSuffix(sizeStr, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "TB"), "T")
	case strings.HasSuffix(sizeStr, "GB") || strings.HasSuffix(sizeStr, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "GB"), "G")
	case strings.HasSuffix(sizeStr, "MB") || strings.HasSuffix(sizeStr, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "MB"), "M")
	case strings.HasSuffix(sizeStr, "KB") || strings.HasSuffix(sizeStr, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "KB"), "K")
	case strings.HasSuffix(sizeStr, "B"):
		numStr = strings.TrimSuffix(sizeStr, "B")
	default:
		return 0, fmt.Errorf("invalid size format: %s (use B, K/KB, M/MB, G/GB, T/TB)", sizeStr)
	}

	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %s", sizeStr)
	}

	return int64(val * float64(multiplier)), nil
}

// getEnvSize parses size strings like "10M", "500K" or raw bytes.
func getEnvSize(key string, defaultValue string) int64 {
	value := getEnv(key, defaultValue)
	size, err := parseSize(value)
	if err != nil {
		if defaultSize, defaultErr := parseSize(defaultValue); defaultErr == nil {
			return defaultSize
		}
		return 0
	}
	return size
}

// getEnvDuration parses duration strings like "24h", "30m".
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		if defaultDuration, defaultErr := time.ParseDuration(defaultValue); defaultErr == nil {
			return defaultDuration
		}
		return 24 * time.Hour
	}
	return duration
}
