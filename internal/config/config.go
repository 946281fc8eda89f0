// Package config loads and validates PumpSentinel's TOML configuration file.
//
// The file supports ${VAR} environment-variable expansion before parsing, in
// the same spirit as the gatherer's YAML loader, but the wire format is TOML
// (sections api, general, cooldowns, orderbook, strategy1..strategy4) to match
// the reference implementation's config.toml.
package config

import "time"

// Config is the root of the parsed configuration file.
type Config struct {
	API       APIConfig       `toml:"api"`
	General   GeneralConfig   `toml:"general"`
	Cooldowns CooldownsConfig `toml:"cooldowns"`
	Orderbook OrderbookConfig `toml:"orderbook"`
	Database  DatabaseConfig  `toml:"database"`
	Strategy1 StrategyConfig  `toml:"strategy1"`
	Strategy2 Strategy2Config `toml:"strategy2"`
	Strategy3 Strategy3Config `toml:"strategy3"`
	Strategy4 StrategyConfig  `toml:"strategy4"`
}

// Duration wraps time.Duration so the TOML decoder accepts human strings
// like "10s" or "1m" via encoding.TextUnmarshaler, instead of requiring a
// raw nanosecond integer.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// APIConfig describes the REST discovery endpoint and WebSocket feed.
type APIConfig struct {
	RestURL    string   `toml:"rest_url"`
	WSURL      string   `toml:"ws_url"`
	Timeout    Duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	Symbols                []string `toml:"symbols"`
	LogDir                 string   `toml:"log_dir"`
	PollIntervalMs         int64    `toml:"poll_interval_ms"`
	PostAnomalyRecordingS  int64    `toml:"post_anomaly_recording_secs"`
	CSVRecordingDir        string   `toml:"csv_recording_dir"`
	RecordPreBufferCandles int      `toml:"record_pre_buffer_candles"`
}

// CooldownsConfig configures the shared per-symbol cooldown window.
type CooldownsConfig struct {
	PerSymbolSeconds int64 `toml:"per_symbol_seconds"`
}

// OrderbookConfig configures depth handling and Strategy 4's thickness gate.
type OrderbookConfig struct {
	MaxLevels         int     `toml:"max_levels"`
	DepthBandPct      float64 `toml:"depth_band_pct"`
	MinThickDepthUSDT float64 `toml:"min_thick_depth_usdt"`
	MaxSpreadPct      float64 `toml:"max_spread_pct"`
}

// StrategyConfig holds the common predicate parameters shared by every strategy.
type StrategyConfig struct {
	Enabled       bool    `toml:"enabled"`
	SpreadRatioMin float64 `toml:"spread_ratio_min"`
	MinAbsDiff    float64 `toml:"min_abs_diff"`
	MinPrice      float64 `toml:"min_price"`
}

// Strategy2Config adds the recent-spike parameters to the common predicate.
type Strategy2Config struct {
	StrategyConfig
	SpikeLookbackSecs int64   `toml:"spike_lookback_secs"`
	SpikeRatioMin     float64 `toml:"spike_ratio_min"`
}

// Strategy3Config adds the baseline-stability parameters to the common predicate.
type Strategy3Config struct {
	StrategyConfig
	BaselineWindowSecs int64   `toml:"baseline_window_secs"`
	PumpVsBaselineMin  float64 `toml:"pump_vs_baseline_min"`
	MarkStabilityMax   float64 `toml:"mark_stability_max"`
}

// DatabaseConfig configures the optional Postgres episode archive sink.
// An empty Host disables the sink entirely; file and CSV sinks never depend
// on this section.
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
	MinConns int    `toml:"min_conns"`
	MaxConns int    `toml:"max_conns"`
}

// Enabled reports whether the Postgres archive sink should be started.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// WindowSeconds returns the longest history window required by any enabled
// strategy, i.e. H_max from spec §4.1. Falls back to 60s if nothing needs a
// window (or everything is disabled).
func (c Config) WindowSeconds() int64 {
	var max int64
	if c.Strategy2.Enabled && c.Strategy2.SpikeLookbackSecs > max {
		max = c.Strategy2.SpikeLookbackSecs
	}
	if c.Strategy3.Enabled && c.Strategy3.BaselineWindowSecs > max {
		max = c.Strategy3.BaselineWindowSecs
	}
	if max == 0 {
		max = 60
	}
	return max
}
