package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server          `mapstructure:"server"`
	Database Database        `mapstructure:"database"`
	Storage  Storage         `mapstructure:"storage"`
	Kafka    Kafka           `mapstructure:"kafka"`
	Retry    Retry           `mapstructure:"retry"`
	Upload   Upload          `mapstructure:"upload"`
	Analyzer analyzer.Config `mapstructure:"analyzer"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort        string        `mapstructure:"http_port"` // HTTP address to listen on
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Storage holds configuration for the file storage backend.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Upload limits accepted photo uploads.
type Upload struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// Strategy converts the retry section into a retry strategy.
func (r Retry) Strategy() retry.Strategy {
	return retry.Strategy{
		Attempts: r.Attempts,
		Delay:    r.Delay,
		Backoff:  r.Backoff,
	}
}

// envBindings maps configuration keys to the environment variables that
// override them. Secrets are expected to come from the environment.
var envBindings = map[string]string{
	"database.master.host": "DB_HOST",
	"database.master.port": "DB_PORT",
	"database.master.user": "DB_USER",
	"database.master.pass": "DB_PASSWORD",
	"database.master.name": "DB_NAME",
	"storage.endpoint":     "MINIO_ENDPOINT",
	"storage.access_key":   "MINIO_ACCESS_KEY",
	"storage.secret_key":   "MINIO_SECRET_KEY",
	"storage.bucket_name":  "MINIO_BUCKET",
	"upload.max_bytes":     "MAX_IMAGE_SIZE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("database.master.ssl_mode", "disable")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
	v.SetDefault("upload.max_bytes", 10<<20)

	// Analyzer keys default one by one so a file may override a single threshold.
	a := analyzer.DefaultConfig()
	v.SetDefault("analyzer.min_dimension", a.MinDimension)
	v.SetDefault("analyzer.max_dimension", a.MaxDimension)
	v.SetDefault("analyzer.max_pixels", a.MaxPixels)
	v.SetDefault("analyzer.allowed_formats", a.AllowedFormats)
	v.SetDefault("analyzer.jpeg_quality", a.JPEGQuality)
	v.SetDefault("analyzer.dominant_colors", a.DominantColors)
	v.SetDefault("analyzer.enhancement.contrast", a.Enhancement.Contrast)
	v.SetDefault("analyzer.enhancement.saturation", a.Enhancement.Saturation)
	v.SetDefault("analyzer.enhancement.sharpness", a.Enhancement.Sharpness)
	v.SetDefault("analyzer.thresholds.min_green_ratio", a.Thresholds.MinGreenRatio)
	v.SetDefault("analyzer.thresholds.min_brightness", a.Thresholds.MinBrightness)
	v.SetDefault("analyzer.thresholds.max_brightness", a.Thresholds.MaxBrightness)
	v.SetDefault("analyzer.thresholds.max_brown_ratio", a.Thresholds.MaxBrownRatio)
	v.SetDefault("analyzer.thresholds.min_contrast", a.Thresholds.MinContrast)
	v.SetDefault("analyzer.thresholds.dim_brightness", a.Thresholds.DimBrightness)
	v.SetDefault("analyzer.thresholds.bright_brightness", a.Thresholds.BrightBrightness)
	v.SetDefault("analyzer.thresholds.min_edge_strength", a.Thresholds.MinEdgeStrength)
}

// Load reads the configuration file at path, applying a .env file from the
// working directory and environment overrides on top of it.
func Load(path string) (*Config, error) {
	// A missing .env is fine: variables may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
