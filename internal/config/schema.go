package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version      int                `yaml:"version"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Credentials  CredentialsConfig  `yaml:"credentials"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Intermediary IntermediaryConfig `yaml:"intermediary"`
	Deployment   DeploymentConfig   `yaml:"deployment"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database settings (deployment history)
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CredentialsConfig points at the credential group document.
// A .yaml/.yml extension selects YAML, anything else JSON.
type CredentialsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// DiscoveryConfig tunes the per-address probing of a scan run
type DiscoveryConfig struct {
	PingTimeout        Duration `yaml:"ping_timeout"`         // discovery ping when nothing else saw the host
	ConfirmPingTimeout Duration `yaml:"confirm_ping_timeout"` // reporting ping after remote/link-layer detection
	ManualPingTimeout  Duration `yaml:"manual_ping_timeout"`
	PortTimeout        Duration `yaml:"port_timeout"`
	ARPTimeout         Duration `yaml:"arp_timeout"`
	ARPBatchSize       int      `yaml:"arp_batch_size"`
	Interface          string   `yaml:"interface,omitempty"` // pcap builds only
	Privileged         bool     `yaml:"privileged"`          // raw ICMP sockets instead of UDP ping
	Ports              []int    `yaml:"ports"`
	MaxTargets         int      `yaml:"max_targets"`
	YieldEvery         int      `yaml:"yield_every"`
}

// IntermediaryConfig describes the remote host that sweeps a network
// segment which is not reachable at layer 2 from here.
type IntermediaryConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Network         string   `yaml:"network"` // CIDR served by the intermediary
	Username        string   `yaml:"username,omitempty"`
	Password        string   `yaml:"password,omitempty"`
	CredentialGroup string   `yaml:"credential_group,omitempty"`
	Timeout         Duration `yaml:"timeout"`
	CommandTimeout  Duration `yaml:"command_timeout"`
	Output          string   `yaml:"output"` // grepable | xml
}

// Enabled reports whether a remote sweep can be attempted at all
func (c IntermediaryConfig) Enabled() bool {
	return c.Host != "" && c.Network != ""
}

// DeploymentConfig holds NETCONF session settings
type DeploymentConfig struct {
	Port           int      `yaml:"port"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	RPCTimeout     Duration `yaml:"rpc_timeout"`
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
