package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BlobMemory = "memory"
	BlobS3     = "s3"

	MetadataMemory   = "memory"
	MetadataSQLite   = "sqlite"
	MetadataDynamoDB = "dynamodb"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Inspection domain
	Timezone            string
	ChecklistFile       string
	SupersedeOnReupload bool
	MaxUploadBytes      int64

	// Backend selection
	BlobBackend     string
	MetadataBackend string

	// SQLite
	SQLiteDBPath string

	// AWS
	AWSRegion      string
	AWSEndpointURL string
	S3Bucket       string
	PublicBaseURL  string
	DynamoDBTable  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	SessionTTL time.Duration

	// HTTP protection and caching
	RateLimitRPS    float64
	RateLimitBurst  int
	MatrixCacheSize int
	MatrixCacheTTL  time.Duration

	// Google Sheets report export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	ReportSheetPrefix        string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Timezone:            getEnv("TIMEZONE", "Local"),
		ChecklistFile:       getEnv("CHECKLIST_FILE", ""),
		SupersedeOnReupload: getEnvBool("SUPERSEDE_ON_REUPLOAD", true),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		BlobBackend:     getEnv("BLOB_BACKEND", BlobMemory),
		MetadataBackend: getEnv("METADATA_BACKEND", MetadataMemory),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/homeinspect.db"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		DynamoDBTable:  getEnv("DDB_TABLE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "homeinspect"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "upload_reports"),

		SessionTTL: getEnvDuration("SESSION_TTL", 6*time.Hour),

		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		MatrixCacheSize: getEnvInt("MATRIX_CACHE_SIZE", 256),
		MatrixCacheTTL:  getEnvDuration("MATRIX_CACHE_TTL", 5*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		ReportSheetPrefix:        getEnv("REPORT_SHEET_PREFIX", "Inspection"),
	}
}

// Location resolves Timezone; "Local" and "" mean the process timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.ChecklistFile != "" {
		if _, err := os.Stat(c.ChecklistFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("checklist file does not exist: %s", c.ChecklistFile))
		}
	}

	validBlob := []string{BlobMemory, BlobS3}
	if !slices.Contains(validBlob, c.BlobBackend) {
		errors = append(errors, fmt.Sprintf("invalid blob backend '%s': must be one of %v", c.BlobBackend, validBlob))
	}
	validMetadata := []string{MetadataMemory, MetadataSQLite, MetadataDynamoDB}
	if !slices.Contains(validMetadata, c.MetadataBackend) {
		errors = append(errors, fmt.Sprintf("invalid metadata backend '%s': must be one of %v", c.MetadataBackend, validMetadata))
	}

	// Users and sessions live in SQLite for every persistent metadata backend.
	if c.MetadataBackend == MetadataSQLite || c.MetadataBackend == MetadataDynamoDB {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using a persistent metadata backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.BlobBackend == BlobS3 && c.S3Bucket == "" {
		errors = append(errors, "S3_BUCKET is required when using s3 blob backend")
	}
	if c.MetadataBackend == MetadataDynamoDB && c.DynamoDBTable == "" {
		errors = append(errors, "DDB_TABLE is required when using dynamodb metadata backend")
	}
	if (c.BlobBackend == BlobS3 || c.MetadataBackend == MetadataDynamoDB) && c.AWSRegion == "" {
		errors = append(errors, "AWS_REGION is required for AWS backends")
	}
	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" {
			errors = append(errors, fmt.Sprintf("invalid public base URL '%s'", c.PublicBaseURL))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload bytes %d: must be positive", c.MaxUploadBytes))
	}
	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}
	if c.MatrixCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid matrix cache size %d: must be at least 1", c.MatrixCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateReporting checks the settings only the report worker needs.
func (c *Config) ValidateReporting() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the report worker")
	}
	// The worker reads records written by the API process.
	if c.MetadataBackend == MetadataMemory {
		errors = append(errors, "METADATA_BACKEND must be a shared store (sqlite or dynamodb) for the report worker")
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("report configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
