// Package config loads runtime configuration for the MCP server and the
// queue worker from environment variables, with detection defaults
// optionally overridden by a YAML file.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/ui-regions-mcp/internal/detection"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
)

// DetectionDefaults seeds tool arguments the caller leaves out.
type DetectionDefaults struct {
	Sensitivity float64 `yaml:"sensitivity"`
	MinArea     float64 `yaml:"min_area"`
	// MaxArea of 0 means 90% of the image area.
	MaxArea float64 `yaml:"max_area"`
	Profile string  `yaml:"profile"`
	// Alpha is "composite" or "drop" for detection inputs.
	Alpha string `yaml:"alpha"`
	// CompareAlpha is the alpha mode applied to both comparison inputs.
	CompareAlpha string `yaml:"compare_alpha"`
}

// Config holds server and worker configuration
type Config struct {
	LogLevel string

	// DefaultsFile is an optional YAML file with DetectionDefaults.
	DefaultsFile string
	Defaults     DetectionDefaults

	// BatchConcurrency bounds parallel detections in one batch tool call.
	BatchConcurrency int

	// Queue worker
	RedisURL          string
	QueueName         string
	WorkerConcurrency int
	JobTimeout        time.Duration
	ResultTTL         time.Duration
	ResultPrefix      string
}

// DefaultDetectionDefaults returns the built-in detection defaults.
func DefaultDetectionDefaults() DetectionDefaults {
	return DetectionDefaults{
		Sensitivity:  0.5,
		MinArea:      100,
		Profile:      "desktop",
		Alpha:        "composite",
		CompareAlpha: "drop",
	}
}

// Load reads configuration from the environment. Call godotenv before Load
// to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          getEnvOrDefault("UI_REGIONS_LOG_LEVEL", "info"),
		DefaultsFile:      getEnvOrDefault("UI_REGIONS_DEFAULTS_FILE", ""),
		Defaults:          DefaultDetectionDefaults(),
		BatchConcurrency:  getEnvAsIntOrDefault("UI_REGIONS_BATCH_CONCURRENCY", 4),
		RedisURL:          getEnvOrDefault("UI_REGIONS_REDIS_URL", "redis://localhost:6379/0"),
		QueueName:         getEnvOrDefault("UI_REGIONS_QUEUE", "ui-regions"),
		WorkerConcurrency: getEnvAsIntOrDefault("UI_REGIONS_WORKER_CONCURRENCY", 4),
		JobTimeout:        time.Duration(getEnvAsIntOrDefault("UI_REGIONS_JOB_TIMEOUT_SECONDS", 60)) * time.Second,
		ResultTTL:         time.Duration(getEnvAsIntOrDefault("UI_REGIONS_RESULT_TTL_SECONDS", 3600)) * time.Second,
		ResultPrefix:      getEnvOrDefault("UI_REGIONS_RESULT_PREFIX", "ui-regions:result"),
	}

	if cfg.DefaultsFile != "" {
		defaults, err := ReadDefaults(cfg.DefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.Defaults = *defaults
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ReadDefaults reads detection defaults from a YAML file. Keys missing from
// the file keep their built-in values.
func ReadDefaults(path string) (*DetectionDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	defaults := DefaultDetectionDefaults()
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse defaults file %s: %w", path, err)
	}
	return &defaults, nil
}

// WriteDefaults writes detection defaults as YAML.
func WriteDefaults(defaults *DetectionDefaults, path string) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	d := c.Defaults
	if math.IsNaN(d.Sensitivity) || d.Sensitivity < 0 || d.Sensitivity > 1 {
		return fmt.Errorf("sensitivity must be between 0 and 1, got %v", d.Sensitivity)
	}
	if d.MinArea < 0 || d.MaxArea < 0 {
		return fmt.Errorf("area bounds must be >= 0, got min=%v max=%v", d.MinArea, d.MaxArea)
	}
	if d.MaxArea > 0 && d.MinArea > d.MaxArea {
		return fmt.Errorf("min_area %v exceeds max_area %v", d.MinArea, d.MaxArea)
	}
	if _, err := detection.ParseProfile(d.Profile); err != nil {
		return fmt.Errorf("invalid default profile: %w", err)
	}
	for _, mode := range []string{d.Alpha, d.CompareAlpha} {
		if mode != "composite" && mode != "drop" {
			return fmt.Errorf("alpha mode must be composite or drop, got %q", mode)
		}
	}

	if c.BatchConcurrency < 1 || c.BatchConcurrency > 64 {
		return fmt.Errorf("UI_REGIONS_BATCH_CONCURRENCY must be between 1 and 64, got %d", c.BatchConcurrency)
	}
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("UI_REGIONS_WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("UI_REGIONS_JOB_TIMEOUT_SECONDS must be positive")
	}
	if c.ResultTTL <= 0 {
		return fmt.Errorf("UI_REGIONS_RESULT_TTL_SECONDS must be positive")
	}
	return nil
}

// Logger returns a stderr logger at the configured level.
func (c *Config) Logger(prefix string) *logging.Logger {
	return logging.NewWithWriter(prefix, os.Stderr, logging.ParseLevel(c.LogLevel))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
