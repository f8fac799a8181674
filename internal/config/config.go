package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models hireline.yml.
type Config struct {
	Database struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`
	Notifications Notifications `yaml:"notifications"`
	Pooling       struct {
		SystemActor     string `yaml:"system_actor"`
		BulkReason      string `yaml:"bulk_reason"`
		GuardTTLSeconds int    `yaml:"guard_ttl_seconds"`
	} `yaml:"pooling"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Tracing struct {
		Exporter    string  `yaml:"exporter"`
		Endpoint    string  `yaml:"endpoint"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		JWTSecret        string `yaml:"jwt_secret"`
		AllowActorHeader bool   `yaml:"allow_actor_header"`
	} `yaml:"auth"`
}

// Notifications configures the job-order webhook.
type Notifications struct {
	WebhookURL     string `yaml:"webhook_url"`
	Secret         string `yaml:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	QueueSize      int    `yaml:"queue_size"`
	Workers        int    `yaml:"workers"`
}

func (n Notifications) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// GuardTTL bounds how long one bulk-pool pass may hold its guard.
func (c *Config) GuardTTL() time.Duration {
	if c.Pooling.GuardTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Pooling.GuardTTLSeconds) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("config.database.max_open_conns must be >= 0")
	}
	if c.Notifications.WebhookURL != "" {
		u, err := url.Parse(c.Notifications.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.notifications.webhook_url must be an absolute http(s) url")
		}
	}
	if c.Notifications.QueueSize < 0 || c.Notifications.Workers < 0 || c.Notifications.TimeoutSeconds < 0 {
		return fmt.Errorf("config.notifications values must be >= 0")
	}
	if strings.TrimSpace(c.Pooling.SystemActor) == "" {
		return fmt.Errorf("config.pooling.system_actor is required")
	}
	if strings.TrimSpace(c.Pooling.BulkReason) == "" {
		return fmt.Errorf("config.pooling.bulk_reason is required")
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlphttp":
	default:
		return fmt.Errorf("config.tracing.exporter must be none, stdout or otlphttp")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("config.tracing.sample_ratio must be within [0,1]")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hireline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with hl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `database:
  driver: sqlite
  dsn: ""
  max_open_conns: 10

notifications:
  webhook_url: ""
  secret: ""
  timeout_seconds: 5
  queue_size: 64
  workers: 1

pooling:
  system_actor: System
  bulk_reason: "JO moved to pooling"
  guard_ttl_seconds: 120

redis:
  url: ""

tracing:
  exporter: none
  endpoint: ""
  sample_ratio: 1

log:
  level: info
  format: text

auth:
  jwt_secret: ""
  allow_actor_header: true
`
