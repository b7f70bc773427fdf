// Package config defines all configuration for the tradecore runtime.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TRADECORE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Trader    TraderConfig    `mapstructure:"trader"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Bus       BusConfig       `mapstructure:"bus"`
	DataEngine DataEngineConfig `mapstructure:"data_engine"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Adapters  AdaptersConfig  `mapstructure:"adapters"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Introspection IntrospectionConfig `mapstructure:"introspection"`
}

// TraderConfig identifies the trader/engine instance this process runs as.
type TraderConfig struct {
	TraderID string `mapstructure:"trader_id"`
}

// CacheConfig tunes the bounded LRU+TTL cache (internal/cache.Config).
//
//   - MaxEntries: total capacity across all shards.
//   - DefaultTTL: entry lifetime when Put is called with ttl<=0.
//   - ShardCount: number of independent LRU shards.
//   - SnapshotPath: where periodic snapshots are written; empty disables persistence.
//   - SnapshotInterval: how often to flush a snapshot while running.
type CacheConfig struct {
	MaxEntries       int           `mapstructure:"max_entries"`
	DefaultTTL       time.Duration `mapstructure:"default_ttl"`
	ShardCount       int           `mapstructure:"shard_count"`
	SnapshotPath     string        `mapstructure:"snapshot_path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// BusConfig tunes the message bus's ingress queue and request timeout.
type BusConfig struct {
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DataEngineConfig tunes the tick aggregation engine's ring buffer depths.
type DataEngineConfig struct {
	RecentBarsPerSeries      int `mapstructure:"recent_bars_per_series"`
	RecentTicksPerInstrument int `mapstructure:"recent_ticks_per_instrument"`
}

// ExecutionConfig declares static venue routing entries, keyed by
// "SYMBOL.VENUE" instrument id, valued by venue name.
type ExecutionConfig struct {
	Routes map[string]string `mapstructure:"routes"`
}

// AdaptersConfig tunes the reference polling ingress adapter.
type AdaptersConfig struct {
	PollURL         string        `mapstructure:"poll_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
}

// LoggingConfig controls slog output level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IntrospectionConfig controls the read-only stats/stream HTTP+WS server.
type IntrospectionConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// TRADECORE_TRADER_ID overrides trader.trader_id.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if traderID := os.Getenv("TRADECORE_TRADER_ID"); traderID != "" {
		cfg.Trader.TraderID = traderID
	}
	if url := os.Getenv("TRADECORE_ADAPTERS_POLL_URL"); url != "" {
		cfg.Adapters.PollURL = url
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Trader.TraderID == "" {
		return fmt.Errorf("trader.trader_id is required (set TRADECORE_TRADER_ID)")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Cache.ShardCount <= 0 {
		return fmt.Errorf("cache.shard_count must be > 0")
	}
	if c.Bus.QueueCapacity <= 0 {
		return fmt.Errorf("bus.queue_capacity must be > 0")
	}
	if c.Bus.RequestTimeout <= 0 {
		return fmt.Errorf("bus.request_timeout must be > 0")
	}
	if c.DataEngine.RecentBarsPerSeries <= 0 {
		return fmt.Errorf("data_engine.recent_bars_per_series must be > 0")
	}
	if c.DataEngine.RecentTicksPerInstrument <= 0 {
		return fmt.Errorf("data_engine.recent_ticks_per_instrument must be > 0")
	}
	for instrument, venue := range c.Execution.Routes {
		if venue == "" {
			return fmt.Errorf("execution.routes[%s] has an empty venue", instrument)
		}
	}
	if c.Introspection.Enabled && c.Introspection.Port <= 0 {
		return fmt.Errorf("introspection.port must be > 0 when introspection.enabled")
	}
	return nil
}
