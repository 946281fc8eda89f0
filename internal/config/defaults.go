package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://fapi.example-exchange.com"
	DefaultWSURL             = "wss://fstream.example-exchange.com"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultLogDir            = "./episodes"
	DefaultPollIntervalMs    = 5000
	DefaultPostAnomalySecs   = 30
	DefaultRecordPreBuffer   = 30
	DefaultCSVRecordingDir   = "./recordings"
	DefaultCooldownSecs      = 60
	DefaultMaxLevels         = 20
	DefaultDepthBandPct      = 0.01
	DefaultMinThickDepthUSDT = 50000
	DefaultMaxSpreadPct      = 0.02
	DefaultDBSSLMode         = "prefer"
	DefaultDBMinConns        = 1
	DefaultDBMaxConns        = 4
)

func (c *Config) applyDefaults() {
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout.Duration = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.General.LogDir == "" {
		c.General.LogDir = DefaultLogDir
	}
	if c.General.PollIntervalMs == 0 {
		c.General.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.General.PostAnomalyRecordingS == 0 {
		c.General.PostAnomalyRecordingS = DefaultPostAnomalySecs
	}
	if c.General.RecordPreBufferCandles == 0 {
		c.General.RecordPreBufferCandles = DefaultRecordPreBuffer
	}
	if c.General.CSVRecordingDir == "" {
		c.General.CSVRecordingDir = DefaultCSVRecordingDir
	}

	if c.Cooldowns.PerSymbolSeconds == 0 {
		c.Cooldowns.PerSymbolSeconds = DefaultCooldownSecs
	}

	if c.Orderbook.MaxLevels == 0 {
		c.Orderbook.MaxLevels = DefaultMaxLevels
	}
	if c.Orderbook.DepthBandPct == 0 {
		c.Orderbook.DepthBandPct = DefaultDepthBandPct
	}
	if c.Orderbook.MinThickDepthUSDT == 0 {
		c.Orderbook.MinThickDepthUSDT = DefaultMinThickDepthUSDT
	}
	if c.Orderbook.MaxSpreadPct == 0 {
		c.Orderbook.MaxSpreadPct = DefaultMaxSpreadPct
	}

	if c.Database.Enabled() {
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultDBMinConns
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultDBMaxConns
		}
	}
}
