// Package config defines the top-level configuration for the arbitrage
// monitor and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYARB_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Events     EventsConfig     `toml:"events"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Feed       FeedConfig       `toml:"feed"`
	Render     RenderConfig     `toml:"render"`
	Redis      RedisConfig      `toml:"redis"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds venue endpoints.
type PolymarketConfig struct {
	WsHost    string `toml:"ws_host"`
	GammaHost string `toml:"gamma_host"`
}

// EventsConfig selects the event universe to monitor.
type EventsConfig struct {
	// File is the path of a JSON or JSONL event-definition document.
	File string `toml:"file"`
	// Inline holds definitions embedded directly in the config file, as a
	// JSON string. Used mostly in tests and one-off runs.
	Inline string `toml:"inline"`
	// EventID, when set, restricts monitoring to a single loaded event.
	EventID string `toml:"event_id"`
}

// ArbitrageConfig holds detection parameters.
type ArbitrageConfig struct {
	// Threshold is the cost ceiling for the best-ask sum, in probability
	// units.
	Threshold  float64 `toml:"threshold"`
	OutputFile string  `toml:"output_file"`
}

// FeedConfig holds stream subscription parameters.
type FeedConfig struct {
	// ChunkSize caps the instruments carried by one connection.
	ChunkSize       int    `toml:"chunk_size"`
	PingIntervalSec int    `toml:"ping_interval_sec"`
	RawLogFile      string `toml:"raw_log_file"`
}

// RenderConfig holds terminal snapshot parameters.
type RenderConfig struct {
	// PrintIntervalSec of zero or less disables snapshot printing.
	PrintIntervalSec int `toml:"print_interval_sec"`
}

// RedisConfig holds the optional signal-bus connection. Leaving Addr empty
// disables Redis entirely.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
	Channel  string `toml:"channel"`
}

// DiscoveryConfig holds the Gamma crawl parameters for discover mode.
type DiscoveryConfig struct {
	OutputFile      string `toml:"output_file"`
	PageLimit       int    `toml:"page_limit"`
	BatchSize       int    `toml:"batch_size"`
	Workers         int    `toml:"workers"`
	VerifyBatchSize int    `toml:"verify_batch_size"`
}

var validModes = map[string]bool{
	"monitor":  true,
	"discover": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration. A config file only needs to
// state what differs from these.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			GammaHost: "https://gamma-api.polymarket.com",
		},
		Events: EventsConfig{
			File: "events.json",
		},
		Arbitrage: ArbitrageConfig{
			Threshold:  0.99,
			OutputFile: "opportunities.jsonl",
		},
		Feed: FeedConfig{
			ChunkSize:       450,
			PingIntervalSec: 25,
		},
		Render: RenderConfig{
			PrintIntervalSec: 5,
		},
		Redis: RedisConfig{
			Addr:     "",
			PoolSize: 10,
			Channel:  "opportunities",
		},
		Discovery: DiscoveryConfig{
			OutputFile:      "events.json",
			PageLimit:       500,
			BatchSize:       20,
			Workers:         5,
			VerifyBatchSize: 50,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency and reports
// every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, discover)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	if strings.ToLower(c.Mode) == "monitor" {
		if c.Events.File == "" && c.Events.Inline == "" {
			errs = append(errs, "events: file or inline must be set for monitor mode")
		}
		if c.Arbitrage.OutputFile == "" {
			errs = append(errs, "arbitrage: output_file must not be empty")
		}
	}
	if c.Arbitrage.Threshold <= 0 || c.Arbitrage.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: threshold must be in (0, 1], got %g", c.Arbitrage.Threshold))
	}

	if c.Feed.ChunkSize <= 0 {
		errs = append(errs, fmt.Sprintf("feed: chunk_size must be positive, got %d", c.Feed.ChunkSize))
	}
	if c.Feed.PingIntervalSec <= 0 {
		errs = append(errs, fmt.Sprintf("feed: ping_interval_sec must be positive, got %d", c.Feed.PingIntervalSec))
	}

	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		errs = append(errs, "redis: channel must be set when addr is set")
	}

	if strings.ToLower(c.Mode) == "discover" {
		if c.Discovery.OutputFile == "" {
			errs = append(errs, "discovery: output_file must not be empty")
		}
		if c.Discovery.PageLimit <= 0 {
			errs = append(errs, fmt.Sprintf("discovery: page_limit must be positive, got %d", c.Discovery.PageLimit))
		}
		if c.Discovery.Workers <= 0 {
			errs = append(errs, fmt.Sprintf("discovery: workers must be positive, got %d", c.Discovery.Workers))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
