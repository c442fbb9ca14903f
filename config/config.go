// Package config loads service settings from the environment and an optional
// YAML file named by CONFIG_FILE. Values in the file win over the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"traffic-sensor-stream/models"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	HTTPAddr       string            `yaml:"http_addr"`
	BasePath       string            `yaml:"base_path"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	LogLevel       string            `yaml:"log_level"`
	Store          StoreConfig       `yaml:"store"`
	Thresholds     models.Thresholds `yaml:"thresholds"`
	Retention      RetentionConfig   `yaml:"retention"`
	Monitor        MonitorConfig     `yaml:"monitor"`
	Kafka          KafkaConfig       `yaml:"kafka"`
	MQTT           MQTTConfig        `yaml:"mqtt"`
}

type StoreConfig struct {
	Driver      string      `yaml:"driver"`
	DatabaseURL string      `yaml:"database_url"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type RetentionConfig struct {
	Days     int           `yaml:"days"`
	Interval time.Duration `yaml:"interval"`
}

// Keep returns how long readings are retained.
func (r RetentionConfig) Keep() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}

type MonitorConfig struct {
	Workers int `yaml:"workers"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Load builds the configuration from env defaults, overlays CONFIG_FILE and validates.
func Load() (Config, error) {
	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// FromEnv reads every setting from the environment, falling back to defaults.
func FromEnv() Config {
	thresholds := models.DefaultThresholds()
	workers := getenvInt("MONITOR_WORKERS", 0)
	if workers == 0 {
		workers = getenvInt("ANALYTICS_WORKERS", 0)
	}

	addr := getenvDefault("HTTP_ADDR", "")
	if addr == "" {
		addr = ":" + getenvDefault("PORT", "8080")
	}

	return Config{
		HTTPAddr:       addr,
		BasePath:       strings.TrimSuffix(os.Getenv("BASE_PATH"), "/"),
		AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:      getenvDefault("STORE_DRIVER", DriverMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Redis: RedisConfig{
				Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       getenvInt("REDIS_DB", 0),
				Prefix:   getenvDefault("REDIS_PREFIX", "sensors"),
			},
		},
		Thresholds: models.Thresholds{
			Min: getenvFloat("ALERT_MIN", thresholds.Min),
			Max: getenvFloat("ALERT_MAX", thresholds.Max),
		},
		Retention: RetentionConfig{
			Days:     getenvInt("RETENTION_DAYS", 30),
			Interval: getenvDuration("RETENTION_INTERVAL", time.Hour),
		},
		Monitor: MonitorConfig{Workers: workers},
		Kafka: KafkaConfig{
			Brokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
			TopicPrefix: os.Getenv("KAFKA_TOPIC_PREFIX"),
		},
		MQTT: MQTTConfig{
			Broker:      os.Getenv("MQTT_BROKER"),
			ClientID:    getenvDefault("MQTT_CLIENT_ID", "traffic-sensor-stream"),
			TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "traffic"),
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL required for postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store driver %q", c.Store.Driver))
	}
	if c.Thresholds.Min > c.Thresholds.Max {
		errs = append(errs, fmt.Errorf("config: alert min %.2f above max %.2f", c.Thresholds.Min, c.Thresholds.Max))
	}
	if c.Retention.Days < 0 {
		errs = append(errs, errors.New("config: retention days must be >= 0"))
	}
	if c.Retention.Days > 0 && c.Retention.Interval <= 0 {
		errs = append(errs, errors.New("config: retention interval must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
