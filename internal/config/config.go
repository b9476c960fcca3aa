package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the ticker and worker
// processes. Secrets are read once at start-up; there is no reload.
type Config struct {
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	MLSBaseURL        string
	MLSUsername       string
	MLSPassword       string
	MLSVendor         string
	MLSTimeoutMS      int
	MLSRequestsPerMin float64
	MLSBurst          int
	MLSPageSize       int
	MLSDefaultCap     int

	StorageEndpoint   string
	StorageRegion     string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StoragePublicHost string

	PDFBackend    string
	PDFServiceURL string
	PDFServiceKey string
	PrintBaseURL  string

	MailAPIKey        string
	MailFromAddress   string
	MailFromName      string
	UnsubscribeSecret string
	UnsubscribeBase   string

	TickIntervalSeconds int
	TickClaimLimit      int
	WorkerCount         int
	WorkerEnabled       bool

	QueueMaxAttempts int
}

func Load() Config {
	return Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "report_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "report_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "report_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "worker-1"),

		MLSBaseURL:        getEnv("MLS_BASE_URL", ""),
		MLSUsername:       getEnv("MLS_USERNAME", ""),
		MLSPassword:       getEnv("MLS_PASSWORD", ""),
		MLSVendor:         getEnv("MLS_VENDOR", "simplyrets"),
		MLSTimeoutMS:      getEnvInt("MLS_TIMEOUT_MS", 25000),
		MLSRequestsPerMin: getEnvFloat("MLS_REQUESTS_PER_MINUTE", 60),
		MLSBurst:          getEnvInt("MLS_BURST", 10),
		MLSPageSize:       getEnvInt("MLS_PAGE_SIZE", 500),
		MLSDefaultCap:     getEnvInt("MLS_DEFAULT_CAP", 1000),

		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", ""),
		StorageRegion:     getEnv("STORAGE_REGION", "us-east-1"),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:     getEnv("STORAGE_BUCKET", ""),
		StoragePublicHost: getEnv("STORAGE_PUBLIC_HOST", ""),

		PDFBackend:    getEnv("PDF_BACKEND", "cloud"),
		PDFServiceURL: getEnv("PDF_SERVICE_URL", ""),
		PDFServiceKey: getEnv("PDF_SERVICE_KEY", ""),
		PrintBaseURL:  getEnv("PRINT_BASE_URL", ""),

		MailAPIKey:        getEnv("MAIL_API_KEY", ""),
		MailFromAddress:   getEnv("MAIL_FROM_ADDRESS", "reports@homescope.io"),
		MailFromName:      getEnv("MAIL_FROM_NAME", "HomeScope Reports"),
		UnsubscribeSecret: getEnv("UNSUBSCRIBE_SECRET", ""),
		UnsubscribeBase:   getEnv("UNSUBSCRIBE_BASE_URL", ""),

		TickIntervalSeconds: getEnvInt("TICK_INTERVAL_SECONDS", 60),
		TickClaimLimit:      getEnvInt("TICK_CLAIM_LIMIT", 100),
		WorkerCount:         getEnvInt("WORKER_COUNT", 4),
		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),

		QueueMaxAttempts: getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
	}
}

// ValidateTicker reports the configuration errors that make the ticker
// process unable to start.
func (c Config) ValidateTicker() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.TickIntervalSeconds <= 0 {
		problems = append(problems, "TICK_INTERVAL_SECONDS must be positive")
	}
	if c.TickClaimLimit <= 0 {
		problems = append(problems, "TICK_CLAIM_LIMIT must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ValidateWorker reports the configuration errors that make the worker
// process unable to start.
func (c Config) ValidateWorker() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.MLSBaseURL == "" {
		problems = append(problems, "MLS_BASE_URL is required")
	}
	if c.StorageBucket == "" {
		problems = append(problems, "STORAGE_BUCKET is required")
	}
	if c.PDFBackend != "cloud" && c.PDFBackend != "local" {
		problems = append(problems, fmt.Sprintf("unknown PDF_BACKEND %q", c.PDFBackend))
	}
	if c.PDFBackend == "cloud" && c.PDFServiceURL == "" {
		problems = append(problems, "PDF_SERVICE_URL is required for the cloud backend")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
