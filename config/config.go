package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Wizard   WizardConfig   `yaml:"wizard"`
	Session  SessionConfig  `yaml:"session"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Pushover PushoverConfig `yaml:"pushover"`
	Log      LogConfig      `yaml:"log"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	SetupPath   string `yaml:"setup_path"`
	ProfilePath string `yaml:"profile_path"`
	HubDeviceID int    `yaml:"hub_device_id"`
}

type WizardConfig struct {
	MaxFloorplanBytes int64  `yaml:"max_floorplan_bytes"`
	HTTPAddr          string `yaml:"http_addr"`
	RateLimit         int    `yaml:"rate_limit"`
}

type SessionConfig struct {
	File string `yaml:"file"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Enabled  bool   `yaml:"enabled"`
}

type PushoverConfig struct {
	Token    string `yaml:"token"`
	UserKey  string `yaml:"user_key"`
	Priority int    `yaml:"priority"`
	Enabled  bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config with ${ENV} references expanded. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8082"
	}
	if c.Backend.SetupPath == "" {
		c.Backend.SetupPath = "/api/user/setup"
	}
	if c.Backend.ProfilePath == "" {
		c.Backend.ProfilePath = "/api/auth/profile"
	}
	if c.Backend.HubDeviceID == 0 {
		c.Backend.HubDeviceID = 1
	}
	if c.Wizard.MaxFloorplanBytes == 0 {
		c.Wizard.MaxFloorplanBytes = 10 * 1024 * 1024
	}
	if c.Wizard.HTTPAddr == "" {
		c.Wizard.HTTPAddr = ":8090"
	}
	if c.Wizard.RateLimit == 0 {
		c.Wizard.RateLimit = 60
	}
	if c.Session.File == "" {
		c.Session.File = defaultSessionFile()
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "home-setup"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "home/setup/completed"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultSessionFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".home-setup", "session.yaml")
	}
	return filepath.Join(dir, ".home-setup", "session.yaml")
}
