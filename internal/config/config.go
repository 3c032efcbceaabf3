package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sgaravatti/cantieri-docs/internal/common"
)

// Config holds all application configuration. It is loaded once in main and
// injected into constructors; packages never read the environment themselves.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	DataDir    string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr       string
	BaseURL        string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Enabled       bool
	Tesseract     string
	Pdftoppm      string
	TesseractLang string
	DPI           int
	MaxPages      int
	TessdataDir   string
}

// LLMConfig holds LLM-related configuration. An empty APIKey means the
// structured-extraction capability is absent and the pipeline degrades.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ExtractionConfig holds pipeline thresholds.
type ExtractionConfig struct {
	MinConfidence float32
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	port := getEnv("PORT", "8080")
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":"+port),
			BaseURL:        getEnv("BASE_URL", "http://localhost:"+port),
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_MB", 25) * 1024 * 1024,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "cantieri.db"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Enabled:       getEnvAsBool("OCR_ENABLED", true),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TesseractLang: getEnv("TESSERACT_LANG", "ita"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 10),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Extraction: ExtractionConfig{
			MinConfidence: getEnvAsFloat32("EXTRACTION_MIN_CONFIDENCE", 0.60),
		},
		DataDir: getEnv("DATA_DIR", "data"),
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return common.NewAppError("CONFIG_ERROR", "DB_URL is required", common.ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return common.NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", common.ErrInvalidInput)
	}
	if c.DataDir == "" {
		return common.NewAppError("CONFIG_ERROR", "DATA_DIR is required", common.ErrInvalidInput)
	}
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return common.NewAppError("CONFIG_ERROR", "cannot resolve DATA_DIR", err)
	}
	c.DataDir = abs
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
