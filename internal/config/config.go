// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Storage    StorageConfig    `mapstructure:"storage"`
	ImgProc    ImgProcConfig    `mapstructure:"imgproc"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Importer   ImporterConfig   `mapstructure:"importer"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig points at the remote browser endpoint and bounds navigation.
type BrowserConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	NavTimeoutSec    int    `mapstructure:"nav_timeout_seconds"`
	ScreenshotHeight int    `mapstructure:"screenshot_height"`
	ViewportWidth    int    `mapstructure:"viewport_width"`
	UserAgent        string `mapstructure:"user_agent"`
	AttachTimeoutSec int    `mapstructure:"attach_timeout_seconds"`
	DirectoryTimeout int    `mapstructure:"directory_timeout_seconds"`
}

// StorageConfig sets the blob store backend and public URL mapping.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Prefix        string `mapstructure:"prefix"`
}

// ImgProcConfig configures the external image resize/crop service.
type ImgProcConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for the task queue.
type PubSubConfig struct {
	Provider       string `mapstructure:"provider"`
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	BatchSize      int    `mapstructure:"batch_size"`
}

// EnrichmentConfig names the downstream post-processing endpoints. Endpoint
// receives the fire-and-forget processing ping; SearchEndpoint serves the
// similar-articles query proxy. Either may be empty to disable the feature.
type EnrichmentConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	SearchEndpoint string `mapstructure:"search_endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ImporterConfig tunes the bulk-import title prefetch.
type ImporterConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.screenshot_height", 3000)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.attach_timeout_seconds", 10)
	v.SetDefault("browser.directory_timeout_seconds", 10)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("imgproc.timeout_seconds", 30)
	v.SetDefault("db.table", "articles")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("pubsub.queue_depth", 128)
	v.SetDefault("pubsub.batch_size", 10)
	v.SetDefault("enrichment.timeout_seconds", 10)
	v.SetDefault("importer.user_agent", "snapmark-import/0.1")
	v.SetDefault("importer.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.ScreenshotHeight <= 0 {
		return fmt.Errorf("browser.screenshot_height must be > 0")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.PubSub.Provider == "pubsub" && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub.provider is pubsub")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// NavTimeout converts the navigation budget into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}
