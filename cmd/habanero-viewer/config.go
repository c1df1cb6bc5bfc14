package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agsys/habanero-viewer/internal/engine"
	"github.com/agsys/habanero-viewer/internal/feed"
	"github.com/agsys/habanero-viewer/internal/simulator"
)

// Config represents the configuration file structure
type Config struct {
	Service struct {
		GRPCAddr    string `yaml:"grpc_addr"`
		ClientID    string `yaml:"client_id"`
		UseTLS      bool   `yaml:"use_tls"`
		CallTimeout int    `yaml:"call_timeout"` // Seconds, 0 waits indefinitely
	} `yaml:"service"`

	Polling struct {
		IntervalMs      int  `yaml:"interval_ms"`
		WindowHours     int  `yaml:"window_hours"`
		PollImmediately bool `yaml:"poll_immediately"`
	} `yaml:"polling"`

	Feed struct {
		ListenAddr     string   `yaml:"listen_addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		PingInterval   int      `yaml:"ping_interval"`
	} `yaml:"feed"`

	Simulator struct {
		ListenAddr     string   `yaml:"listen_addr"`
		Identifiers    []string `yaml:"identifiers"`
		SampleInterval int      `yaml:"sample_interval"`
		Backfill       *bool    `yaml:"backfill"`
		Seed           int64    `yaml:"seed"`
	} `yaml:"simulator"`

	Logging struct {
		File string `yaml:"file"`
	} `yaml:"logging"`

	callTimeout time.Duration // Set from HABANERO_CALL_TIMEOUT, overrides Service.CallTimeout
}

// loadConfig reads path. A missing file yields an empty config unless
// required is set.
func loadConfig(path string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs into the environment without overriding
// variables already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// applyEnv overrides config values from HABANERO_* variables
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("HABANERO_GRPC_ADDR"); v != "" {
		c.Service.GRPCAddr = v
	}
	if v := getenv("HABANERO_CLIENT_ID"); v != "" {
		c.Service.ClientID = v
	}
	if v := getenv("HABANERO_LISTEN_ADDR"); v != "" {
		c.Feed.ListenAddr = v
	}
	if v := getenv("HABANERO_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HABANERO_CALL_TIMEOUT %q: %w", v, err)
		}
		if d < 0 {
			return fmt.Errorf("HABANERO_CALL_TIMEOUT must not be negative")
		}
		c.callTimeout = d
	}
	return nil
}

func (c *Config) engineConfig() engine.Config {
	engineCfg := engine.DefaultConfig()
	if c.Service.GRPCAddr != "" {
		engineCfg.GRPCAddr = c.Service.GRPCAddr
	}
	engineCfg.ClientID = c.Service.ClientID
	engineCfg.UseTLS = c.Service.UseTLS
	if c.Service.CallTimeout > 0 {
		engineCfg.CallTimeout = secondsToDuration(c.Service.CallTimeout)
	}
	if c.callTimeout > 0 {
		engineCfg.CallTimeout = c.callTimeout
	}
	if c.Polling.IntervalMs > 0 {
		engineCfg.PollInterval = time.Duration(c.Polling.IntervalMs) * time.Millisecond
	}
	if c.Polling.WindowHours > 0 {
		engineCfg.Window = time.Duration(c.Polling.WindowHours) * time.Hour
	}
	engineCfg.PollImmediately = c.Polling.PollImmediately
	return engineCfg
}

func (c *Config) feedConfig() feed.Config {
	feedCfg := feed.DefaultConfig()
	if c.Feed.ListenAddr != "" {
		feedCfg.ListenAddr = c.Feed.ListenAddr
	}
	if len(c.Feed.AllowedOrigins) > 0 {
		feedCfg.AllowedOrigins = c.Feed.AllowedOrigins
	}
	if c.Feed.PingInterval > 0 {
		feedCfg.PingInterval = secondsToDuration(c.Feed.PingInterval)
	}
	return feedCfg
}

func (c *Config) simulatorConfig() simulator.Config {
	simCfg := simulator.DefaultConfig()
	if len(c.Simulator.Identifiers) > 0 {
		simCfg.Identifiers = c.Simulator.Identifiers
	}
	if c.Simulator.SampleInterval > 0 {
		simCfg.SampleInterval = secondsToDuration(c.Simulator.SampleInterval)
	}
	if c.Simulator.Backfill != nil {
		simCfg.Backfill = *c.Simulator.Backfill
	}
	if c.Simulator.Seed != 0 {
		simCfg.Seed = c.Simulator.Seed
	}
	return simCfg
}

// simulatorAddr is the listen address of the simulator, defaulting to the
// port part of the service address so that both ends agree out of the box.
func (c *Config) simulatorAddr() string {
	if c.Simulator.ListenAddr != "" {
		return c.Simulator.ListenAddr
	}
	addr := c.Service.GRPCAddr
	if addr == "" {
		addr = engine.DefaultConfig().GRPCAddr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":8080"
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
