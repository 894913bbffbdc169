package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"SignalDeck/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SourceConfig binds one signal source to its Kafka topic and engine limits.
// Zero-valued limits inherit the Engine block defaults.
type SourceConfig struct {
	Name       string `yaml:"name" validate:"required"`
	Topic      string `yaml:"topic" validate:"required"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	MaxPerDay  int    `yaml:"max_per_day"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimitBurst  float64       `yaml:"rate_limit_burst" default:"50"`
		RateLimitPerSec float64       `yaml:"rate_limit_per_sec" default:"25"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Engine struct {
		MarketTimeZone  string        `yaml:"market_time_zone" default:"Asia/Kolkata"`
		TTLMinutes      int           `yaml:"ttl_minutes" default:"30"`
		MaxPerDay       int           `yaml:"max_per_day" default:"5"`
		MaxActive       int           `yaml:"max_active" default:"500"`
		DedupWindowMin  int           `yaml:"dedup_window_minutes" default:"5"`
		DedupMaxEntries int           `yaml:"dedup_max_entries" default:"10000"`
		PersistInterval time.Duration `yaml:"persist_interval" default:"120s"`
	} `yaml:"engine"`
	Sources []SourceConfig `yaml:"sources" validate:"min=1,dive"`
	Kafka   struct {
		Brokers      []string `yaml:"brokers" validate:"min=1"`
		CuratedTopic string   `yaml:"curated_topic" default:"curated-signals"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id" default:"signaldeck"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"10000"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		KeyPrefix   string        `yaml:"key_prefix" default:"signaldeck"`
		CallTimeout time.Duration `yaml:"call_timeout" default:"3s"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"signaldeck"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	} `yaml:"clickhouse"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("HTTP_PORT"), c.Server.Port)

	return c, nil
}

// Validate checks structural rules plus the non-tag invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Engine.MarketTimeZone); err != nil {
		return fmt.Errorf("engine.market_time_zone: %w", err)
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// MarketLocation resolves the configured exchange time zone.
func (c *Config) MarketLocation() *time.Location {
	loc, err := time.LoadLocation(c.Engine.MarketTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
