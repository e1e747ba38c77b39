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
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`       // sighting ingestion
		AlertTopic   string   `yaml:"alert_topic"` // outgoing alerts
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
			DLQTopic   string        `yaml:"dlq_topic"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
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
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Gateway struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Token          string        `yaml:"token"`
		Scanners       []string      `yaml:"scanners"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"gateway"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		ResultTTL time.Duration `yaml:"result_ttl"`
	} `yaml:"cache"`
	Queue struct {
		Enabled   bool   `yaml:"enabled"`
		Name      string `yaml:"name"`
		Workers   int    `yaml:"workers"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"queue"`
	Backend struct {
		Type string `yaml:"type"` // "kafka" buffers raw sightings, "clickhouse" ingests directly
	} `yaml:"backend"`
	Detection Detection `yaml:"detection"`
}

// Detection holds every tunable the scoring pipeline uses. Thresholds live
// here so tests can override them instead of patching constants.
type Detection struct {
	MinScore            float64       `yaml:"min_score"`
	MinLocations        int           `yaml:"min_locations"`
	MinDistanceMeters   float64       `yaml:"min_distance_meters"`
	ClusterRadiusMeters float64       `yaml:"cluster_radius_meters"`
	HandoffGap          time.Duration `yaml:"handoff_gap"`
	SyncWindow          time.Duration `yaml:"sync_window"`
	DwellTolerance      time.Duration `yaml:"dwell_tolerance"`
	ShadowMinCombined   float64       `yaml:"shadow_min_combined"`
	FetchConcurrency    int           `yaml:"fetch_concurrency"`
	AlertLevel          string        `yaml:"alert_level"`    // minimum level that enqueues an alert
	SweepInterval       time.Duration `yaml:"sweep_interval"` // 0 disables background sweeps
}

// DefaultDetection returns the tuning used when the config omits values.
func DefaultDetection() Detection {
	return Detection{
		MinScore:            0.5,
		MinLocations:        3,
		MinDistanceMeters:   400,
		ClusterRadiusMeters: 100,
		HandoffGap:          5 * time.Minute,
		SyncWindow:          5 * time.Minute,
		DwellTolerance:      10 * time.Minute,
		ShadowMinCombined:   0.3,
		FetchConcurrency:    8,
		AlertLevel:          "HIGH",
		SweepInterval:       15 * time.Minute,
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{Detection: DefaultDetection()}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("GATEWAY_WS_URL"); v != "" {
		c.Gateway.WebSocketURL = v
	}
	if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
		c.Gateway.Token = v
	}
	if v := os.Getenv("SCANNERS"); v != "" {
		c.Gateway.Scanners = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Gateway.Enabled && c.Gateway.WebSocketURL == "" {
		return fmt.Errorf("gateway.websocket_url is required when gateway is enabled")
	}
	switch c.Backend.Type {
	case "", "kafka", "clickhouse":
	default:
		return fmt.Errorf("backend.type must be kafka or clickhouse, got %q", c.Backend.Type)
	}
	d := &c.Detection
	if d.MinScore < 0 || d.MinScore > 1 {
		return fmt.Errorf("detection.min_score must be in [0,1], got %v", d.MinScore)
	}
	if d.MinLocations < 1 {
		return fmt.Errorf("detection.min_locations must be >= 1, got %d", d.MinLocations)
	}
	if d.ClusterRadiusMeters <= 0 {
		return fmt.Errorf("detection.cluster_radius_meters must be > 0, got %v", d.ClusterRadiusMeters)
	}
	if d.HandoffGap <= 0 {
		return fmt.Errorf("detection.handoff_gap must be > 0, got %v", d.HandoffGap)
	}
	if d.FetchConcurrency < 1 {
		d.FetchConcurrency = 1
	}
	switch d.AlertLevel {
	case "", "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		return fmt.Errorf("detection.alert_level must be LOW, MEDIUM, HIGH or CRITICAL, got %q", d.AlertLevel)
	}
	return nil
}
