// Package config provides configuration management for meshscope.
//
// Config file locations (priority order):
//  1. $MESHSCOPE_CONFIG
//  2. ./meshscope.yaml
//  3. <user config dir>/meshscope/meshscope.yaml
//  4. /etc/meshscope/meshscope.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"meshscope/internal/domain"
)

// Defaults
const (
	DefaultServerAddr    = ":1337"
	DefaultDatabasePath  = "./meshscope.db"
	DefaultCoordinator   = "2222::3"
	DefaultMDNSService   = "_coap._udp"
	DefaultMDNSDomain    = "local."
	DefaultMDNSTimeout   = 3 * time.Second
	DefaultCoAPPort      = 5683
	DefaultCoAPPath      = "/devscan"
	DefaultAckTimeout    = time.Second
	DefaultMaxRetransmit = 3
	DefaultMQTTClientID  = "meshscope"
	DefaultMQTTTopic     = "meshscope/topology"
	DefaultLogLevel      = "info"
	currentConfigVersion = 1
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = currentConfigVersion
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	// An empty address is only left for the mDNS lookup to fill
	if c.Coordinator.Address == "" && !c.Coordinator.MDNS.Enabled {
		c.Coordinator.Address = DefaultCoordinator
	}
	if c.Coordinator.MDNS.Service == "" {
		c.Coordinator.MDNS.Service = DefaultMDNSService
	}
	if c.Coordinator.MDNS.Domain == "" {
		c.Coordinator.MDNS.Domain = DefaultMDNSDomain
	}
	if c.Coordinator.MDNS.Timeout == 0 {
		c.Coordinator.MDNS.Timeout = Duration(DefaultMDNSTimeout)
	}

	if c.Transport.Port == 0 {
		c.Transport.Port = DefaultCoAPPort
	}
	if c.Transport.Path == "" {
		c.Transport.Path = DefaultCoAPPath
	}
	if c.Transport.AckTimeout == 0 {
		c.Transport.AckTimeout = Duration(DefaultAckTimeout)
	}
	if c.Transport.MaxRetransmit == 0 {
		c.Transport.MaxRetransmit = DefaultMaxRetransmit
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultMQTTClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = DefaultMQTTTopic
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	var errs []error

	if c.Coordinator.Address != "" {
		if _, err := domain.Normalize(c.Coordinator.Address); err != nil {
			errs = append(errs, fmt.Errorf("coordinator.address: %w", err))
		}
	}
	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		errs = append(errs, fmt.Errorf("transport.port %d out of range", c.Transport.Port))
	}
	if c.Transport.MaxRetransmit < 0 {
		errs = append(errs, fmt.Errorf("transport.max_retransmit must not be negative"))
	}
	if c.Scan.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("scan.max_in_flight must not be negative"))
	}
	if c.Scan.RunTimeout < 0 || c.Scan.Interval < 0 {
		errs = append(errs, fmt.Errorf("scan durations must not be negative"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	coordinator := c.Coordinator.Address
	if coordinator == "" {
		coordinator = fmt.Sprintf("mdns %s.%s", c.Coordinator.MDNS.Service, c.Coordinator.MDNS.Domain)
	}

	summary := fmt.Sprintf("Coordinator: %s, Listen: %s, DB: %s\n", coordinator, c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("CoAP: port %d %s, ack %s, retransmit %d\n",
		c.Transport.Port, c.Transport.Path, c.Transport.AckTimeout.Duration(), c.Transport.MaxRetransmit)
	summary += fmt.Sprintf("Scan: max in flight %d, run timeout %s, interval %s",
		c.Scan.MaxInFlight, c.Scan.RunTimeout.Duration(), c.Scan.Interval.Duration())
	if c.MQTT.Enabled {
		summary += fmt.Sprintf("\nMQTT: %s topic %s", c.MQTT.Broker, c.MQTT.Topic)
	}

	return summary
}
