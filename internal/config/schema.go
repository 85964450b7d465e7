package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version     int               `yaml:"version"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Transport   TransportConfig   `yaml:"transport"`
	Scan        ScanConfig        `yaml:"scan"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CoordinatorConfig says where scans start. An empty Address means the
// coordinator is looked up over mDNS.
type CoordinatorConfig struct {
	Address string     `yaml:"address"`
	MDNS    MDNSConfig `yaml:"mdns"`
}

// MDNSConfig holds the coordinator lookup settings
type MDNSConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Service  string   `yaml:"service"`
	Domain   string   `yaml:"domain"`
	Instance string   `yaml:"instance,omitempty"` // empty = any instance
	Timeout  Duration `yaml:"timeout"`
}

// TransportConfig holds CoAP exchange settings
type TransportConfig struct {
	Port          int      `yaml:"port"`
	Path          string   `yaml:"path"`
	AckTimeout    Duration `yaml:"ack_timeout"`
	MaxRetransmit int      `yaml:"max_retransmit"`
}

// ScanConfig holds scheduler settings
type ScanConfig struct {
	MaxInFlight int      `yaml:"max_in_flight"` // 0 = unbounded
	RunTimeout  Duration `yaml:"run_timeout"`   // 0 = none
	Interval    Duration `yaml:"interval"`      // 0 = no periodic scans
}

// MQTTConfig holds the snapshot publisher settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
