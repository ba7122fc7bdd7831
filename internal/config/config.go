package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/live-sub-translator/pkg/icron"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

// Config holds all application configuration.
//
// Environment Variables:
// Translate Configuration:
// - TRANSLATE_ENDPOINT: translation endpoint (default: https://translate.googleapis.com/translate_a/single)
// - TRANSLATE_CLIENT: client id sent with each request (default: gtx)
// - TRANSLATE_SOURCE_LANGUAGE: source language (default: auto)
// - TARGET_LANGUAGE: target language of one-shot translation and the watch command (default: zh-CN)
// - TRANSLATE_TIMEOUT: request timeout in seconds (default: 10)
//
// Pipeline Configuration:
// - PIPELINE_DEBOUNCE_MS: quiet period before translating growing captions (default: 300)
// - PIPELINE_THROTTLE_MS: minimum spacing between caption snapshots (default: 100)
// - PIPELINE_RATE_INTERVAL_MS: minimum spacing between displayed translations (default: 1000)
// - PIPELINE_MAX_CAPTION_LENGTH: characters before a caption is truncated (default: 200)
// - PIPELINE_HIDE_AFTER_IDLE_MS: hide the overlay after this long without a translation, 0 disables (default: 0)
//
// Cache Configuration:
// - CACHE_MAX_SIZE: entries per session (default: 500)
// - CACHE_TTL_HOURS: entry lifetime (default: 24)
//
// Breaker Configuration:
// - BREAKER_MAX_FAILURES: consecutive failures before failing fast (default: 5)
// - BREAKER_COOLDOWN: seconds to fail fast before probing again (default: 30)
//
// HTTP Configuration:
// - HTTP_ADDR: listen address (default: :8080)
// - HTTP_CORS_ORIGINS: comma separated allowed origins (default: *)
// - SESSION_IDLE_TIMEOUT: minutes before an unused session is closed (default: 30)
// - SWEEP_CRON: schedule of the idle session and cache sweep (default: @every 1m)
//
// System Configuration:
// - DATA_DIR: directory for the settings database and lock file (default: /app/data)
type Config struct {
	Translate TranslateConfig `json:"translate"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Cache     CacheConfig     `json:"cache"`
	Breaker   BreakerConfig   `json:"breaker"`
	HTTP      HTTPConfig      `json:"http"`
	System    SystemConfig    `json:"system"`
}

type TranslateConfig struct {
	Endpoint       string       `json:"endpoint"`
	ClientID       string       `json:"client_id"`
	SourceLanguage string       `json:"source_language"`
	TargetLanguage language.Tag `json:"target_language"`
	Timeout        int          `json:"timeout"`
}

type PipelineConfig struct {
	DebounceDelay    time.Duration `json:"debounce_delay"`
	Throttle         time.Duration `json:"throttle"`
	RateInterval     time.Duration `json:"rate_interval"`
	MaxCaptionLength int           `json:"max_caption_length"`
	HideAfterIdle    time.Duration `json:"hide_after_idle"`
}

type CacheConfig struct {
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}

type BreakerConfig struct {
	MaxFailures int           `json:"max_failures"`
	Cooldown    time.Duration `json:"cooldown"`
}

type HTTPConfig struct {
	Addr        string        `json:"addr"`
	CORSOrigins []string      `json:"cors_origins"`
	IdleTimeout time.Duration `json:"idle_timeout"`
	SweepCron   string        `json:"sweep_cron"`
}

type SystemConfig struct {
	DataDir string `json:"data_dir"`
}

func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "livesub.db")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.System.DataDir, "livesub.lock")
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.System.DataDir = dir
		}
	}
}

func WithTargetLanguage(tag language.Tag) Option {
	return func(c *Config) {
		c.Translate.TargetLanguage = tag
	}
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.HTTP.Addr = addr
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	target, err := language.Parse(getEnvString("TARGET_LANGUAGE", "zh-CN"))
	if err != nil {
		return nil, fmt.Errorf("TARGET_LANGUAGE: %w", err)
	}

	config := &Config{
		Translate: TranslateConfig{
			Endpoint:       getEnvString("TRANSLATE_ENDPOINT", "https://translate.googleapis.com/translate_a/single"),
			ClientID:       getEnvString("TRANSLATE_CLIENT", "gtx"),
			SourceLanguage: getEnvString("TRANSLATE_SOURCE_LANGUAGE", "auto"),
			TargetLanguage: target,
			Timeout:        getEnvInt("TRANSLATE_TIMEOUT", 10),
		},
		Pipeline: PipelineConfig{
			DebounceDelay:    getEnvDuration("PIPELINE_DEBOUNCE_MS", 300, time.Millisecond),
			Throttle:         getEnvDuration("PIPELINE_THROTTLE_MS", 100, time.Millisecond),
			RateInterval:     getEnvDuration("PIPELINE_RATE_INTERVAL_MS", 1000, time.Millisecond),
			MaxCaptionLength: getEnvInt("PIPELINE_MAX_CAPTION_LENGTH", 200),
			HideAfterIdle:    getEnvDuration("PIPELINE_HIDE_AFTER_IDLE_MS", 0, time.Millisecond),
		},
		Cache: CacheConfig{
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 500),
			TTL:     getEnvDuration("CACHE_TTL_HOURS", 24, time.Hour),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
			Cooldown:    getEnvDuration("BREAKER_COOLDOWN", 30, time.Second),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			CORSOrigins: getEnvList("HTTP_CORS_ORIGINS", []string{"*"}),
			IdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30, time.Minute),
			SweepCron:   getEnvString("SWEEP_CRON", "@every 1m"),
		},
		System: SystemConfig{
			DataDir: getEnvString("DATA_DIR", "/app/data"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Translate.Endpoint == "" {
		return fmt.Errorf("TRANSLATE_ENDPOINT is required")
	}
	if c.Translate.TargetLanguage == language.Und {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if c.Translate.Timeout <= 0 {
		return fmt.Errorf("TRANSLATE_TIMEOUT must be positive")
	}
	if c.Pipeline.MaxCaptionLength <= 0 {
		return fmt.Errorf("PIPELINE_MAX_CAPTION_LENGTH must be positive")
	}
	if c.Pipeline.DebounceDelay < 0 || c.Pipeline.Throttle < 0 || c.Pipeline.RateInterval < 0 || c.Pipeline.HideAfterIdle < 0 {
		return fmt.Errorf("pipeline intervals must not be negative")
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive")
	}
	if c.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be positive")
	}
	if c.HTTP.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if _, err := icron.Parse(c.HTTP.SweepCron); err != nil {
		return fmt.Errorf("SWEEP_CRON %q: %w", c.HTTP.SweepCron, err)
	}
	if c.System.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * unit
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ret := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
