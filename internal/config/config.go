package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WirelessSourceType identifies which backend feeds signal-quality samples.
type WirelessSourceType string

// AutostartMode controls how the agent is launched by OS autostart.
type AutostartMode string

const (
	WirelessSourceAuto  WirelessSourceType = "auto"
	WirelessSourceWifi  WirelessSourceType = "wifi"
	WirelessSourceModem WirelessSourceType = "modem"
	WirelessSourceNone  WirelessSourceType = "none"

	AutostartModeNormal     AutostartMode = "normal"
	AutostartModeBackground AutostartMode = "background"

	DefaultSignalDropThreshold    = 40
	DefaultSignalRecoverThreshold = 50
	DefaultProbeURL               = "http://connectivitycheck.gstatic.com/generate_204"
	DefaultProbeIntervalSeconds   = 10
	DefaultProbeTimeoutSeconds    = 5
	DefaultWifiPollSeconds        = 5
	DefaultStatusListen           = "127.0.0.1:8791"
	DefaultMQTTPort               = 1883
	DefaultMQTTTopicPrefix        = "network-status"
)

// MonitorConfig tunes the reachability and signal classification pipeline.
type MonitorConfig struct {
	SignalDropThreshold    int                `json:"signal_drop_threshold"`
	SignalRecoverThreshold int                `json:"signal_recover_threshold"`
	WirelessSource         WirelessSourceType `json:"wireless_source"`
	Probe                  ProbeConfig        `json:"probe"`
	Wifi                   WifiConfig         `json:"wifi"`
	Modem                  ModemConfig        `json:"modem"`
}

// ProbeConfig configures the HTTP connectivity probe.
type ProbeConfig struct {
	URL             string `json:"url"`
	IntervalSeconds int    `json:"interval_seconds"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// WifiConfig configures the OS wireless poller.
type WifiConfig struct {
	Interface           string `json:"interface"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
}

// ModemConfig configures the cellular modem signal source. Endpoint accepts
// serial://<device>?baud=<n> or tcp://<host>:<port>.
type ModemConfig struct {
	Endpoint string `json:"endpoint"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled bool                     `json:"enabled"`
	Events  NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	Reachability bool `json:"reachability"`
	Signal       bool `json:"signal"`
	Link         bool `json:"link"`
}

// StatusAPIConfig configures the local HTTP status endpoint.
type StatusAPIConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// MQTTConfig configures the optional status publisher.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Retain      bool   `json:"retain"`
}

// TrayConfig stores persistent tray preferences.
type TrayConfig struct {
	Autostart AutostartConfig `json:"autostart"`
}

// AutostartConfig stores autostart preferences saved in user config.
type AutostartConfig struct {
	Enabled bool          `json:"enabled"`
	Mode    AutostartMode `json:"mode"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Monitor       MonitorConfig      `json:"monitor"`
	Logging       LoggingConfig      `json:"logging"`
	Notifications NotificationConfig `json:"notifications"`
	StatusAPI     StatusAPIConfig    `json:"status_api"`
	MQTT          MQTTConfig         `json:"mqtt"`
	Tray          TrayConfig         `json:"tray"`
}

func Default() AppConfig {
	return AppConfig{
		Monitor: MonitorConfig{
			SignalDropThreshold:    DefaultSignalDropThreshold,
			SignalRecoverThreshold: DefaultSignalRecoverThreshold,
			WirelessSource:         WirelessSourceAuto,
			Probe: ProbeConfig{
				URL:             DefaultProbeURL,
				IntervalSeconds: DefaultProbeIntervalSeconds,
				TimeoutSeconds:  DefaultProbeTimeoutSeconds,
			},
			Wifi: WifiConfig{
				Interface:           "",
				PollIntervalSeconds: DefaultWifiPollSeconds,
			},
			Modem: ModemConfig{Endpoint: ""},
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Events: NotificationEventsConfig{
				Reachability: true,
				Signal:       true,
				Link:         false,
			},
		},
		StatusAPI: StatusAPIConfig{
			Enabled: true,
			Listen:  DefaultStatusListen,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        DefaultMQTTPort,
			TopicPrefix: DefaultMQTTTopicPrefix,
			Retain:      true,
		},
		Tray: TrayConfig{
			Autostart: AutostartConfig{
				Enabled: false,
				Mode:    AutostartModeNormal,
			},
		},
	}
}

// Load reads the config file at path, layering it over Default so absent
// keys keep their defaults. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	c.Monitor.SignalDropThreshold = clampPercent(c.Monitor.SignalDropThreshold)
	c.Monitor.SignalRecoverThreshold = clampPercent(c.Monitor.SignalRecoverThreshold)
	c.Monitor.WirelessSource = normalizeWirelessSource(c.Monitor.WirelessSource)
	if strings.TrimSpace(c.Monitor.Probe.URL) == "" {
		c.Monitor.Probe.URL = DefaultProbeURL
	}
	if c.Monitor.Probe.IntervalSeconds <= 0 {
		c.Monitor.Probe.IntervalSeconds = DefaultProbeIntervalSeconds
	}
	if c.Monitor.Probe.TimeoutSeconds <= 0 {
		c.Monitor.Probe.TimeoutSeconds = DefaultProbeTimeoutSeconds
	}
	if c.Monitor.Wifi.PollIntervalSeconds <= 0 {
		c.Monitor.Wifi.PollIntervalSeconds = DefaultWifiPollSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.StatusAPI.Listen) == "" {
		c.StatusAPI.Listen = DefaultStatusListen
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = DefaultMQTTPort
	}
	if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
		c.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	c.Tray.Autostart.Mode = normalizeAutostartMode(c.Tray.Autostart.Mode)
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}

func normalizeWirelessSource(src WirelessSourceType) WirelessSourceType {
	switch src {
	case WirelessSourceWifi, WirelessSourceModem, WirelessSourceNone:
		return src
	default:
		return WirelessSourceAuto
	}
}

func normalizeAutostartMode(mode AutostartMode) AutostartMode {
	switch mode {
	case AutostartModeBackground:
		return AutostartModeBackground
	default:
		return AutostartModeNormal
	}
}

func (c AppConfig) Validate() error {
	if c.Monitor.SignalDropThreshold < 0 || c.Monitor.SignalDropThreshold > 100 {
		return fmt.Errorf("signal drop threshold %d out of range 0-100", c.Monitor.SignalDropThreshold)
	}
	if c.Monitor.SignalRecoverThreshold < 0 || c.Monitor.SignalRecoverThreshold > 100 {
		return fmt.Errorf("signal recover threshold %d out of range 0-100", c.Monitor.SignalRecoverThreshold)
	}

	switch c.Monitor.WirelessSource {
	case WirelessSourceAuto, WirelessSourceWifi, WirelessSourceNone:
	case WirelessSourceModem:
		if strings.TrimSpace(c.Monitor.Modem.Endpoint) == "" {
			return errors.New("modem endpoint is required when wireless_source is modem")
		}
	default:
		return fmt.Errorf("unknown wireless source: %s", c.Monitor.WirelessSource)
	}

	probeURL, err := url.Parse(c.Monitor.Probe.URL)
	if err != nil {
		return fmt.Errorf("parse probe url: %w", err)
	}
	if probeURL.Scheme != "http" && probeURL.Scheme != "https" {
		return fmt.Errorf("probe url must be http or https, got %q", c.Monitor.Probe.URL)
	}
	if c.Monitor.Probe.IntervalSeconds <= 0 {
		return errors.New("probe interval must be positive")
	}
	if c.Monitor.Probe.TimeoutSeconds <= 0 {
		return errors.New("probe timeout must be positive")
	}

	if c.StatusAPI.Enabled {
		if _, _, err := net.SplitHostPort(c.StatusAPI.Listen); err != nil {
			return fmt.Errorf("parse status api listen address: %w", err)
		}
	}

	if c.MQTT.Enabled {
		if strings.TrimSpace(c.MQTT.Broker) == "" {
			return errors.New("mqtt broker is required when mqtt is enabled")
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt port %d out of range", c.MQTT.Port)
		}
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
