package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gosuda/pagecap/internal/capture"
	"github.com/gosuda/pagecap/internal/observer"
	"github.com/gosuda/pagecap/internal/textfilter"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	Capture CaptureConfig
	Output  OutputConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// CaptureConfig holds session and text-filter settings.
type CaptureConfig struct {
	Budget     int64
	Debounce   time.Duration
	MinTextLen int
	MaxTextLen int
}

// OutputConfig holds capture document delivery settings.
type OutputConfig struct {
	Dir string
}

// Load reads configuration from environment variables.
// Defaults are suitable for a local single-user daemon.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("PAGECAP_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("PAGECAP_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitRPS, err := getEnvFloat("PAGECAP_SERVER_RATE_LIMIT_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitBurst, err := getEnvInt("PAGECAP_SERVER_RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	budget, err := getEnvInt64("PAGECAP_CAPTURE_BUDGET_BYTES", capture.DefaultBudget)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	debounce, err := getEnvDuration("PAGECAP_CAPTURE_DEBOUNCE", observer.DefaultDebounce)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	minTextLen, err := getEnvInt("PAGECAP_CAPTURE_MIN_TEXT_LEN", textfilter.DefaultMinLength)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxTextLen, err := getEnvInt("PAGECAP_CAPTURE_MAX_TEXT_LEN", textfilter.DefaultMaxLength)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("PAGECAP_CORS_ORIGINS", []string{"*"})

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("PAGECAP_SERVER_ADDR", "127.0.0.1:8750"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    corsOrigins,
			RateLimitRPS:   rateLimitRPS,
			RateLimitBurst: rateLimitBurst,
		},
		Capture: CaptureConfig{
			Budget:     budget,
			Debounce:   debounce,
			MinTextLen: minTextLen,
			MaxTextLen: maxTextLen,
		},
		Output: OutputConfig{
			Dir: getEnv("PAGECAP_OUTPUT_DIR", "captures"),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("PAGECAP_SERVER_ADDR must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("PAGECAP_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("PAGECAP_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("PAGECAP_SERVER_RATE_LIMIT_RPS must be positive, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("PAGECAP_SERVER_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Capture.Budget < 1 {
		return fmt.Errorf("PAGECAP_CAPTURE_BUDGET_BYTES must be >= 1, got %d", c.Capture.Budget)
	}
	if c.Capture.Debounce <= 0 {
		return fmt.Errorf("PAGECAP_CAPTURE_DEBOUNCE must be positive, got %s", c.Capture.Debounce)
	}
	if c.Capture.MinTextLen < 1 {
		return fmt.Errorf("PAGECAP_CAPTURE_MIN_TEXT_LEN must be >= 1, got %d", c.Capture.MinTextLen)
	}
	if c.Capture.MaxTextLen <= c.Capture.MinTextLen {
		return fmt.Errorf("PAGECAP_CAPTURE_MAX_TEXT_LEN must exceed PAGECAP_CAPTURE_MIN_TEXT_LEN, got %d", c.Capture.MaxTextLen)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("PAGECAP_OUTPUT_DIR must not be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int64: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
