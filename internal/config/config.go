package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"blockscan.ai/internal/statehandlers"
)

type Config struct {
	ConfigDir string   `yaml:"configs"`
	DataDir   string   `yaml:"data"`
	Handlers  []string `yaml:"handlers"`
	Filter    string   `yaml:"filter,omitempty"`
	Index     bool     `yaml:"index"`
	LogLevel  string   `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	MaxQueue int    `yaml:"max_queue"`
}

func Defaults() Config {
	return Config{
		ConfigDir: "./configs",
		DataDir:   "./data",
		Handlers:  []string{statehandlers.NSEWConnectedMetadataName, statehandlers.MetadataName},
		Index:     true,
		LogLevel:  "info",
		Server: ServerConfig{
			Addr:     ":8080",
			MaxQueue: 16,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("scan.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scan.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	d := Defaults()
	c.ConfigDir = strings.TrimSpace(c.ConfigDir)
	if c.ConfigDir == "" {
		c.ConfigDir = d.ConfigDir
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	hs := make([]string, 0, len(c.Handlers))
	for _, h := range c.Handlers {
		if h = strings.TrimSpace(h); h != "" {
			hs = append(hs, h)
		}
	}
	if len(hs) == 0 {
		hs = d.Handlers
	}
	c.Handlers = hs
	c.Filter = strings.TrimSpace(c.Filter)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxQueue == 0 {
		c.Server.MaxQueue = d.Server.MaxQueue
	}
}

func (c Config) Validate() error {
	seen := map[string]struct{}{}
	for _, h := range c.Handlers {
		if _, ok := statehandlers.FactoryByName(h); !ok {
			return fmt.Errorf("unknown handler %q", h)
		}
		if _, dup := seen[h]; dup {
			return fmt.Errorf("duplicate handler %q", h)
		}
		seen[h] = struct{}{}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("bad log_level %q", c.LogLevel)
	}
	if c.Server.MaxQueue < 1 || c.Server.MaxQueue > 1024 {
		return fmt.Errorf("server.max_queue out of range: %d", c.Server.MaxQueue)
	}
	return nil
}
