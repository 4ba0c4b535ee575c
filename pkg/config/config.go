package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Stream struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Bars struct {
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		Timeout   time.Duration `yaml:"timeout"`
		PageLimit int           `yaml:"page_limit"`
		RateRPS   float64       `yaml:"rate_rps"`
	} `yaml:"bars"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		// Per-timeframe candle cache TTLs; short frames churn faster.
		TTL struct {
			Intraday time.Duration `yaml:"intraday"`
			Hourly   time.Duration `yaml:"hourly"`
			Daily    time.Duration `yaml:"daily"`
		} `yaml:"ttl"`
		MaxCandles int `yaml:"max_candles"`
	} `yaml:"cache"`
	Backfill struct {
		Enabled     bool          `yaml:"enabled"`
		Workers     int           `yaml:"workers"`
		QueueName   string        `yaml:"queue_name"`
		MaxRetries  int           `yaml:"max_retries"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
		ChunkDays   int           `yaml:"chunk_days"`
		LookbackMax time.Duration `yaml:"lookback_max"`
	} `yaml:"backfill"`
	Engine struct {
		Lookahead     int `yaml:"lookahead"`
		EdgeThreshold int `yaml:"edge_threshold"`
		MaxSessions   int `yaml:"max_sessions"`
	} `yaml:"engine"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
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

	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("BARS_API_KEY"); v != "" {
		c.Bars.APIKey = v
	}
	if v := os.Getenv("BARS_API_SECRET"); v != "" {
		c.Bars.APISecret = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Stream.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.symbols cannot be empty")
	}
	if c.Stream.APIKey == "" {
		return fmt.Errorf("stream.api_key is required")
	}
	if c.Engine.Lookahead < 0 || c.Engine.EdgeThreshold < 0 {
		return fmt.Errorf("engine.lookahead and engine.edge_threshold must be non-negative")
	}
	if c.Engine.EdgeThreshold >= c.Engine.Lookahead && c.Engine.Lookahead > 0 {
		return fmt.Errorf("engine.edge_threshold must be smaller than engine.lookahead")
	}
	return nil
}
