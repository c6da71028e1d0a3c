// Package config provides configuration management for autobot.
//
// The config file describes where state lives (credential document,
// deployment history database) and how discovery and deployment behave.
// Secrets for the remote sweep intermediary may be kept out of the file
// and supplied through the environment instead.
//
// Config file locations (priority order):
//  1. $AUTOBOT_CONFIG
//  2. ./autobot.yaml
//  3. $XDG_CONFIG_HOME/autobot/config.yaml
//  4. ~/.config/autobot/config.yaml
//  5. /etc/autobot/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvIntermediaryPassword overrides intermediary.password when set
const EnvIntermediaryPassword = "AUTOBOT_INTERMEDIARY_PASSWORD"

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
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
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./autobot.db"
	}
	if c.Credentials.Path == "" {
		c.Credentials.Path = "./credentials.json"
	}

	d := &c.Discovery
	setDuration(&d.PingTimeout, 300*time.Millisecond)
	setDuration(&d.ConfirmPingTimeout, 200*time.Millisecond)
	setDuration(&d.ManualPingTimeout, time.Second)
	setDuration(&d.PortTimeout, 200*time.Millisecond)
	setDuration(&d.ARPTimeout, 2*time.Second)
	if d.ARPBatchSize <= 0 {
		d.ARPBatchSize = 50
	}
	if len(d.Ports) == 0 {
		d.Ports = []int{22, 80, 443}
	}
	if d.MaxTargets <= 0 {
		d.MaxTargets = 65536
	}
	if d.YieldEvery <= 0 {
		d.YieldEvery = 10
	}

	im := &c.Intermediary
	if im.Port == 0 {
		im.Port = 22
	}
	setDuration(&im.Timeout, 30*time.Second)
	setDuration(&im.CommandTimeout, 60*time.Second)
	if im.Output == "" {
		im.Output = "grepable"
	}

	if c.Deployment.Port == 0 {
		c.Deployment.Port = 830
	}
	setDuration(&c.Deployment.ConnectTimeout, 30*time.Second)
	setDuration(&c.Deployment.RPCTimeout, 60*time.Second)
}

func (c *Config) applyEnv() {
	if pw := os.Getenv(EnvIntermediaryPassword); pw != "" {
		c.Intermediary.Password = pw
	}
}

// Validate rejects settings that would make the service misbehave silently
func (c *Config) Validate() error {
	switch c.Intermediary.Output {
	case "grepable", "xml":
	default:
		return fmt.Errorf("intermediary.output must be grepable or xml, got %q", c.Intermediary.Output)
	}
	for _, p := range c.Discovery.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("discovery.ports: invalid port %d", p)
		}
	}
	if c.Intermediary.Host != "" && c.Intermediary.Network == "" {
		return fmt.Errorf("intermediary.network is required when intermediary.host is set")
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, DB: %s, Credentials: %s\n",
		c.Server.Addr, c.Database.Path, c.Credentials.Path)
	if c.Intermediary.Enabled() {
		summary += fmt.Sprintf("Remote sweep: %s via %s:%d (%s output)",
			c.Intermediary.Network, c.Intermediary.Host, c.Intermediary.Port, c.Intermediary.Output)
	} else {
		summary += "Remote sweep: disabled"
	}
	return summary
}

func setDuration(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}
