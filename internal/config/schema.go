package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version" validate:"gte=1"`
	Topology TopologyConfig `yaml:"topology"`
	// Selection restricts the variants per node kind, e.g. drone: [flood]
	Selection map[string][]string `yaml:"selection,omitempty" validate:"dive,keys,oneof=drone client server,endkeys,dive,required"`
	Shutdown  ShutdownConfig      `yaml:"shutdown"`
	Log       LogConfig           `yaml:"log"`
	Database  DatabaseConfig      `yaml:"database"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Events    EventsConfig        `yaml:"events"`
	API       APIConfig           `yaml:"api"`
}

// TopologyConfig points at the network description
type TopologyConfig struct {
	Path string `yaml:"path"`
}

// ShutdownConfig bounds cooperative shutdown
type ShutdownConfig struct {
	Timeout Duration `yaml:"timeout" validate:"gt=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DatabaseConfig holds run ledger settings. An empty path disables the ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// EventsConfig holds the event streaming endpoints. Empty disables each.
type EventsConfig struct {
	// SSEAddr serves /events as server-sent events
	SSEAddr string `yaml:"sse_addr" validate:"omitempty,hostname_port"`
	// PublishAddr is a mangos listen address, e.g. tcp://127.0.0.1:40899
	PublishAddr string `yaml:"publish_addr" validate:"omitempty,url"`
}

// APIConfig holds the control API address. Empty disables it.
type APIConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
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
