package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the node configuration file looked up inside the base
// directory.
const ConfigFileName = "ledger.yaml"

// NodeConfig carries node-level settings that do not belong in code. All
// fields have working defaults so a node runs without any config file.
type NodeConfig struct {
	// ListenAddr is the bind address of the peer HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// Peers are the base URLs this node pulls from.
	Peers []string `yaml:"peers"`

	// Role is the identity role this node signs with.
	Role string `yaml:"role"`

	// StrictVerify requires foreign signatures to come from registered,
	// unrevoked agents.
	StrictVerify *bool `yaml:"strict_verify"`

	// HTTPTimeoutSeconds bounds each outbound sync request.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	// EventBuffer is the broker channel size per subscriber.
	EventBuffer int `yaml:"event_buffer"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() NodeConfig {
	return NodeConfig{
		ListenAddr:         ":8377",
		Role:               "owner",
		HTTPTimeoutSeconds: 15,
		EventBuffer:        100,
	}
}

// LoadConfig reads the node configuration from <base>/ledger.yaml, then
// applies LEDGER_* environment overrides. A missing file is not an error.
func LoadConfig(basePath string) (NodeConfig, error) {
	cfg := DefaultConfig()

	path := filepath.Join(basePath, ConfigFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("cannot parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}
	if cfg.Role == "" {
		cfg.Role = DefaultConfig().Role
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = DefaultConfig().HTTPTimeoutSeconds
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	return cfg, nil
}

// HTTPTimeout returns the outbound request bound as a duration.
func (c NodeConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func applyEnv(cfg *NodeConfig) {
	if v := os.Getenv("LEDGER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LEDGER_ROLE"); v != "" {
		cfg.Role = v
	}
	if v := os.Getenv("LEDGER_STRICT_VERIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StrictVerify = &b
		}
	}
	if v := os.Getenv("LEDGER_HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeoutSeconds = n
		}
	}
}
