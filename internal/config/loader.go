package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. An empty path skips the
// file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators adjust a deployment without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.WsHost, "POLYARB_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")

	// ── Events ──
	setStr(&cfg.Events.File, "POLYARB_EVENTS_FILE")
	setStr(&cfg.Events.EventID, "POLYARB_EVENTS_EVENT_ID")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.Threshold, "POLYARB_ARBITRAGE_THRESHOLD")
	setStr(&cfg.Arbitrage.OutputFile, "POLYARB_ARBITRAGE_OUTPUT_FILE")

	// ── Feed ──
	setInt(&cfg.Feed.ChunkSize, "POLYARB_FEED_CHUNK_SIZE")
	setInt(&cfg.Feed.PingIntervalSec, "POLYARB_FEED_PING_INTERVAL_SEC")
	setStr(&cfg.Feed.RawLogFile, "POLYARB_FEED_RAW_LOG_FILE")

	// ── Render ──
	setInt(&cfg.Render.PrintIntervalSec, "POLYARB_RENDER_PRINT_INTERVAL_SEC")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setStr(&cfg.Redis.Channel, "POLYARB_REDIS_CHANNEL")

	// ── Discovery ──
	setStr(&cfg.Discovery.OutputFile, "POLYARB_DISCOVERY_OUTPUT_FILE")
	setInt(&cfg.Discovery.PageLimit, "POLYARB_DISCOVERY_PAGE_LIMIT")
	setInt(&cfg.Discovery.BatchSize, "POLYARB_DISCOVERY_BATCH_SIZE")
	setInt(&cfg.Discovery.Workers, "POLYARB_DISCOVERY_WORKERS")
	setInt(&cfg.Discovery.VerifyBatchSize, "POLYARB_DISCOVERY_VERIFY_BATCH_SIZE")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
