// Package config loads and validates the andon-agent configuration.
//
// Configuration is loaded from a YAML file with hardcoded defaults applied
// first, then file values, then a small set of environment variable
// overrides. A missing file is not an error; the agent runs on defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the agent looks for its configuration unless
// overridden with the -config flag.
const DefaultPath = "/etc/andon-agent.yaml"

// Config is the root configuration structure.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Collector CollectorConfig `yaml:"collector"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Network   NetworkConfig   `yaml:"network"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this agent to the collector.
type DeviceConfig struct {
	Name string `yaml:"name"`
}

// CollectorConfig contains the collector endpoint settings.
type CollectorConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TimeoutS int    `yaml:"timeout_s"`
}

// Addr returns the collector address in host:port form.
func (c CollectorConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the per-stage socket timeout.
func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// GPIOConfig contains the monitored input line settings.
type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	Pins       []int  `yaml:"pins"`
	DebounceMs int    `yaml:"debounce_ms"`
}

// Debounce returns the debounce period applied to each line.
func (g GPIOConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMs) * time.Millisecond
}

// NetworkConfig contains connectivity checking and recovery settings.
type NetworkConfig struct {
	CheckIntervalS      int    `yaml:"check_interval_s"`
	ReconnectTimeoutS   int    `yaml:"reconnect_timeout_s"`
	RetryBackoffS       int    `yaml:"retry_backoff_s"`
	CommandTimeoutS     int    `yaml:"command_timeout_s"`
	SettleDelayS        int    `yaml:"settle_delay_s"`
	WifiInterface       string `yaml:"wifi_interface"`
	EthernetInterface   string `yaml:"ethernet_interface"`
	WifiService         string `yaml:"wifi_service"`
	GatewayCheck        bool   `yaml:"gateway_check"`
	ServerCheck         bool   `yaml:"server_check"`
	GatewayPingTimeoutS int    `yaml:"gateway_ping_timeout_s"`
	ServerProbeTimeoutS int    `yaml:"server_probe_timeout_s"`
}

// CheckInterval returns the period between routine connectivity checks.
func (n NetworkConfig) CheckInterval() time.Duration {
	return time.Duration(n.CheckIntervalS) * time.Second
}

// ReconnectTimeout returns the overall bound on one recovery loop.
func (n NetworkConfig) ReconnectTimeout() time.Duration {
	return time.Duration(n.ReconnectTimeoutS) * time.Second
}

// RetryBackoff returns the sleep between recovery rounds.
func (n NetworkConfig) RetryBackoff() time.Duration {
	return time.Duration(n.RetryBackoffS) * time.Second
}

// CommandTimeout returns the bound on a single external command.
func (n NetworkConfig) CommandTimeout() time.Duration {
	return time.Duration(n.CommandTimeoutS) * time.Second
}

// SettleDelay returns the pause after link up/down before re-checking.
func (n NetworkConfig) SettleDelay() time.Duration {
	return time.Duration(n.SettleDelayS) * time.Second
}

// GatewayPingTimeout returns the bound on one gateway ICMP probe.
func (n NetworkConfig) GatewayPingTimeout() time.Duration {
	return time.Duration(n.GatewayPingTimeoutS) * time.Second
}

// ServerProbeTimeout returns the bound on one collector TCP probe.
func (n NetworkConfig) ServerProbeTimeout() time.Duration {
	return time.Duration(n.ServerProbeTimeoutS) * time.Second
}

// HTTPConfig contains the status endpoint settings.
type HTTPConfig struct {
	// Addr is the listen address for the JSON status endpoint.
	// Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// TelemetryConfig contains the optional MQTT telemetry mirror settings.
type TelemetryConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"`
	ClientID           string `yaml:"client_id"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	HeartbeatIntervalS int    `yaml:"heartbeat_interval_s"`
}

// HeartbeatInterval returns the period between heartbeat events.
// Zero or negative disables heartbeats.
func (t TelemetryConfig) HeartbeatInterval() time.Duration {
	return time.Duration(t.HeartbeatIntervalS) * time.Second
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file.
//
// Loading order: hardcoded defaults, then file values, then environment
// variable overrides (ANDON_DEVICE_NAME, ANDON_COLLECTOR_HOST,
// ANDON_COLLECTOR_PORT, ANDON_TELEMETRY_BROKER, ANDON_LOG_LEVEL).
//
// A missing file is reported via the second return value so the caller can
// log it; any other read, parse, or validation failure is an error.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			if vErr := cfg.Validate(); vErr != nil {
				return nil, false, fmt.Errorf("validating config: %w", vErr)
			}
			return cfg, false, nil
		}
		return nil, false, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, true, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, true, fmt.Errorf("validating config: %w", err)
	}

	return cfg, true, nil
}

// Default returns a Config populated with the stock andon installation
// defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "Andon-1",
		},
		Collector: CollectorConfig{
			Host:     "192.168.1.128",
			Port:     5000,
			TimeoutS: 5,
		},
		GPIO: GPIOConfig{
			Chip:       "gpiochip0",
			Pins:       []int{23, 24, 25, 12},
			DebounceMs: 100,
		},
		Network: NetworkConfig{
			CheckIntervalS:      30,
			ReconnectTimeoutS:   300,
			RetryBackoffS:       30,
			CommandTimeoutS:     15,
			SettleDelayS:        2,
			WifiInterface:       "wlan0",
			EthernetInterface:   "eth0",
			WifiService:         "wpa_supplicant",
			GatewayCheck:        true,
			ServerCheck:         true,
			GatewayPingTimeoutS: 3,
			ServerProbeTimeoutS: 5,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Telemetry: TelemetryConfig{
			Enabled:            false,
			Broker:             "tcp://192.168.1.200:1883",
			ClientID:           "andon-agent",
			HeartbeatIntervalS: 900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Variables follow the pattern ANDON_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANDON_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("ANDON_COLLECTOR_HOST"); v != "" {
		cfg.Collector.Host = v
	}
	if v := os.Getenv("ANDON_COLLECTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Collector.Port = port
		}
	}
	if v := os.Getenv("ANDON_TELEMETRY_BROKER"); v != "" {
		cfg.Telemetry.Broker = v
	}
	if v := os.Getenv("ANDON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	if c.Collector.Host == "" {
		return fmt.Errorf("collector.host must not be empty")
	}
	if c.Collector.Port < 1 || c.Collector.Port > 65535 {
		return fmt.Errorf("collector.port must be 1-65535, got %d", c.Collector.Port)
	}
	if c.Collector.TimeoutS <= 0 {
		return fmt.Errorf("collector.timeout_s must be positive, got %d", c.Collector.TimeoutS)
	}
	if len(c.GPIO.Pins) == 0 {
		return fmt.Errorf("gpio.pins must not be empty")
	}
	seen := make(map[int]bool, len(c.GPIO.Pins))
	for _, pin := range c.GPIO.Pins {
		if pin < 0 {
			return fmt.Errorf("gpio.pins entries must be non-negative, got %d", pin)
		}
		if seen[pin] {
			return fmt.Errorf("gpio.pins contains duplicate pin %d", pin)
		}
		seen[pin] = true
	}
	if c.GPIO.DebounceMs < 0 {
		return fmt.Errorf("gpio.debounce_ms must be non-negative, got %d", c.GPIO.DebounceMs)
	}
	if c.Network.CheckIntervalS <= 0 {
		return fmt.Errorf("network.check_interval_s must be positive, got %d", c.Network.CheckIntervalS)
	}
	if c.Network.ReconnectTimeoutS <= 0 {
		return fmt.Errorf("network.reconnect_timeout_s must be positive, got %d", c.Network.ReconnectTimeoutS)
	}
	if c.Network.RetryBackoffS <= 0 {
		return fmt.Errorf("network.retry_backoff_s must be positive, got %d", c.Network.RetryBackoffS)
	}
	if c.Telemetry.Enabled && c.Telemetry.Broker == "" {
		return fmt.Errorf("telemetry.broker must not be empty when telemetry is enabled")
	}
	return nil
}
