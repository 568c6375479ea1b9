// Package config handles configuration persistence for the linesign
// application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"linesign/snapshot"
)

// Config holds the complete application configuration.
type Config struct {
	Namespace  string                  `yaml:"namespace"` // Topic/key prefix for all publishers
	Line       string                  `yaml:"line"`      // Production line name, e.g. "A1"
	PLC        PLCConfig               `yaml:"plc"`
	Registers  snapshot.RegisterConfig `yaml:"registers"`
	CatalogDir string                  `yaml:"catalog_dir"` // Directory of per-line product JSON files
	PollRate   time.Duration           `yaml:"poll_rate"`
	Web        WebConfig               `yaml:"web"`
	MQTT       []MQTTConfig            `yaml:"mqtt,omitempty"`
	Valkey     []ValkeyConfig          `yaml:"valkey,omitempty"`
	Kafka      []KafkaConfig           `yaml:"kafka,omitempty"`
	UI         UIConfig                `yaml:"ui,omitempty"`
}

// PLCConfig holds the controller connection settings.
type PLCConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	AutoReconnect bool          `yaml:"auto_reconnect"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	RetryDelay    time.Duration `yaml:"retry_delay,omitempty"`
	DummyMode     bool          `yaml:"dummy_mode,omitempty"` // Simulated source, no network
	SimSeed       int64         `yaml:"sim_seed,omitempty"`   // Seed for the simulated source
}

// WebConfig holds web server configuration.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	ClientID string `yaml:"client_id"`
	UseTLS   bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis publisher configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"` // host:port format
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`        // TTL for keys (0 = no expiry)
	PublishChanges bool          `yaml:"publish_changes,omitempty"` // Publish to Pub/Sub on changes
}

// KafkaConfig holds Kafka cluster configuration.
type KafkaConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic,omitempty"` // Default: <namespace>.production
	UseTLS        bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string        `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	RequiredAcks  int           `yaml:"required_acks,omitempty"` // -1=all, 0=none, 1=leader
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	RetryBackoff  time.Duration `yaml:"retry_backoff,omitempty"`
}

// UIConfig holds terminal display settings.
type UIConfig struct {
	Enabled   bool `yaml:"enabled"`
	ASCIIMode bool `yaml:"ascii_mode,omitempty"` // ASCII borders for terminals without Unicode
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "linesign",
		Line:      "A1",
		PLC: PLCConfig{
			Host:          "192.168.1.10",
			Port:          5007,
			Timeout:       3 * time.Second,
			AutoReconnect: true,
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
		},
		Registers: snapshot.RegisterConfig{
			Plan:        "D100",
			Actual:      "D102",
			ProductType: "D104",
			Status:      "M0",
			Clock:       "SD210",
		},
		CatalogDir: "catalog",
		PollRate:   time.Second,
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		UI: UIConfig{
			Enabled: true,
		},
	}
}

// DefaultPath returns the default configuration file path
// (~/.linesign/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".linesign", "config.yaml")
}

// Load reads configuration from a YAML file, layered over defaults. A
// missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks structural requirements that must hold before anything
// is wired up.
func (c *Config) Validate() error {
	if !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace %q: must contain only alphanumeric characters, hyphens, underscores, and dots", c.Namespace)
	}
	if c.Line == "" {
		return fmt.Errorf("line name is required")
	}
	if !c.PLC.DummyMode {
		if c.PLC.Host == "" {
			return fmt.Errorf("plc host is required")
		}
		if c.PLC.Port < 1 || c.PLC.Port > 65535 {
			return fmt.Errorf("plc port %d out of range", c.PLC.Port)
		}
	}
	if c.PLC.MaxRetries < 0 {
		return fmt.Errorf("plc max_retries must not be negative")
	}
	if c.PollRate <= 0 {
		return fmt.Errorf("poll_rate must be positive")
	}
	return nil
}

// IsValidNamespace returns true if the namespace is usable as a topic and
// key prefix.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}
