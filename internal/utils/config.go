package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benmeehan/command-bridge/internal/constants"
	"github.com/benmeehan/command-bridge/pkg/file"
)

// ErrInvalidConfig is returned when a loaded configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables that override the configuration file.
const (
	EnvBroker     = "MQTT_BROKER"
	EnvBrokerPort = "MQTT_BROKER_PORT"
	EnvClientID   = "MQTT_CLIENT_ID"
	EnvDeviceAPI  = "DEVICE_API_URL"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker             string        `yaml:"broker"`               // MQTT broker host
		Port               int           `yaml:"port"`                 // MQTT broker port
		ClientID           string        `yaml:"client_id"`            // Base MQTT client ID, suffixed per session
		Username           string        `yaml:"username"`             // Optional broker username
		Password           string        `yaml:"password"`             // Optional broker password
		CACertificate      string        `yaml:"ca_certificate"`       // Path to the CA certificate, enables TLS
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // Skip broker certificate verification
		QOS                int           `yaml:"qos"`                  // MQTT QoS level for commands and status
		KeepAlive          time.Duration `yaml:"keep_alive"`           // MQTT keep alive interval
		ConnectTimeout     time.Duration `yaml:"connect_timeout"`      // Timeout for dial and CONNACK, defaults to bridge.wait_budget
	} `yaml:"mqtt"`

	Bridge struct {
		CommandsTopic   string        `yaml:"commands_topic"`   // Topic commands are published to
		StatusTopic     string        `yaml:"status_topic"`     // Topic devices report status on
		PublishAttempts int           `yaml:"publish_attempts"` // Publish attempts per command
		WaitBudget      time.Duration `yaml:"wait_budget"`      // Budget of each bounded wait
		PumpSlice       time.Duration `yaml:"pump_slice"`       // Length of a single pump call
		JournalFile     string        `yaml:"journal_file"`     // Optional file recording the last outcome per device
	} `yaml:"bridge"`

	API struct {
		BaseURL  string        `yaml:"base_url"`  // Device API base URL
		Timeout  time.Duration `yaml:"timeout"`   // HTTP request timeout
		CacheTTL time.Duration `yaml:"cache_ttl"` // How long device lookups are cached
	} `yaml:"api"`

	Logging struct {
		Level      string `yaml:"level"`        // zerolog level name
		File       string `yaml:"file"`         // Optional log file, rotated
		MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotate after this size
		MaxBackups int    `yaml:"max_backups"`  // Rotated files to keep
		MaxAgeDays int    `yaml:"max_age_days"` // Days to keep rotated files
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file, applies
// environment overrides and defaults, and validates the result. A missing
// file is not an error: defaults and the environment are used instead.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", filename, err)
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBroker); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv(EnvBrokerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port number", ErrInvalidConfig, EnvBrokerPort, v)
		}
		c.MQTT.Port = port
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv(EnvDeviceAPI); v != "" {
		c.API.BaseURL = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "command-bridge"
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 60 * time.Second
	}
	if c.Bridge.CommandsTopic == "" {
		c.Bridge.CommandsTopic = constants.DefaultCommandsTopic
	}
	if c.Bridge.StatusTopic == "" {
		c.Bridge.StatusTopic = constants.DefaultStatusTopic
	}
	if c.Bridge.PublishAttempts == 0 {
		c.Bridge.PublishAttempts = constants.DefaultPublishAttempts
	}
	if c.Bridge.WaitBudget == 0 {
		c.Bridge.WaitBudget = constants.DefaultWaitBudget
	}
	if c.Bridge.PumpSlice == 0 {
		c.Bridge.PumpSlice = constants.DefaultPumpSlice
	}
	// A reconnect runs inside the round-trip, so it shares the wait budget.
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = c.Bridge.WaitBudget
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.API.CacheTTL == 0 {
		c.API.CacheTTL = time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 20
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 7
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.MQTT.Broker == "":
		return fmt.Errorf("%w: mqtt.broker is required (or set %s)", ErrInvalidConfig, EnvBroker)
	case c.MQTT.Port < 1 || c.MQTT.Port > 65535:
		return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalidConfig, c.MQTT.Port)
	case c.MQTT.QOS < 0 || c.MQTT.QOS > 2:
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalidConfig)
	case c.Bridge.PublishAttempts < 1:
		return fmt.Errorf("%w: bridge.publish_attempts must be at least 1", ErrInvalidConfig)
	case c.Bridge.PumpSlice > c.Bridge.WaitBudget:
		return fmt.Errorf("%w: bridge.pump_slice exceeds bridge.wait_budget", ErrInvalidConfig)
	}
	return nil
}
