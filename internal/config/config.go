package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost               = "localhost"
	DefaultAnnounceIntervalMS = 500
	DefaultUnconfirmedLimit   = 2
	DefaultMaxCost            = 20
)

type Config struct {
	BridgeID string   `yaml:"bridge_id"`
	LANs     []string `yaml:"lans"`
	Host     string   `yaml:"host"`

	// Zero (or absent) selects the default for each of these.
	AnnounceIntervalMS int `yaml:"announce_interval_ms"`
	UnconfirmedLimit   int `yaml:"unconfirmed_limit"`
	MaxCost            int `yaml:"max_cost"`

	CaptureFile string `yaml:"capture_file"`
}

// Attachment is one bridge port's view of its LAN.
type Attachment struct {
	LAN string
	// Duplicate is set when an earlier port already attaches to LAN.
	Duplicate bool
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromArgs builds a config from the command line form
// `<bridge_id> <lan_port>...`.
func FromArgs(bridgeID string, lans []string) (*Config, error) {
	c := Config{BridgeID: bridgeID, LANs: append([]string(nil), lans...)}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() error {
	if c.BridgeID == "" {
		return fmt.Errorf("bridge_id is required")
	}
	if len(c.LANs) == 0 {
		return fmt.Errorf("at least one lan is required")
	}
	for i, lan := range c.LANs {
		if lan == "" {
			return fmt.Errorf("lans[%d] must be set", i)
		}
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.AnnounceIntervalMS < 0 {
		return fmt.Errorf("announce_interval_ms must be positive")
	}
	if c.AnnounceIntervalMS == 0 {
		c.AnnounceIntervalMS = DefaultAnnounceIntervalMS
	}
	if c.UnconfirmedLimit < 0 {
		return fmt.Errorf("unconfirmed_limit must not be negative")
	}
	if c.UnconfirmedLimit == 0 {
		c.UnconfirmedLimit = DefaultUnconfirmedLimit
	}
	if c.MaxCost < 0 {
		return fmt.Errorf("max_cost must not be negative")
	}
	if c.MaxCost == 0 {
		c.MaxCost = DefaultMaxCost
	}
	return nil
}

func (c *Config) AnnounceInterval() time.Duration {
	return time.Duration(c.AnnounceIntervalMS) * time.Millisecond
}

func (c *Config) Attachments() []Attachment {
	seen := make(map[string]bool, len(c.LANs))
	out := make([]Attachment, len(c.LANs))
	for i, lan := range c.LANs {
		out[i] = Attachment{LAN: lan, Duplicate: seen[lan]}
		seen[lan] = true
	}
	return out
}
