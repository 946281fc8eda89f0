package config

import "fmt"

// Validate checks that all required fields are set and every parameter is
// within the range the detection engine assumes. It returns the first
// violated invariant as a plain sentence; configuration errors are fatal
// at startup (spec §7).
func (c *Config) Validate() error {
	if c.API.RestURL == "" {
		return fmt.Errorf("api.rest_url is required")
	}
	if c.API.WSURL == "" {
		return fmt.Errorf("api.ws_url is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0")
	}

	if c.Cooldowns.PerSymbolSeconds <= 0 {
		return fmt.Errorf("cooldowns.per_symbol_seconds must be > 0")
	}

	if c.Orderbook.MaxLevels < 1 {
		return fmt.Errorf("orderbook.max_levels must be >= 1")
	}
	if c.Orderbook.DepthBandPct <= 0 {
		return fmt.Errorf("orderbook.depth_band_pct must be > 0")
	}
	if c.Orderbook.MaxSpreadPct <= 0 {
		return fmt.Errorf("orderbook.max_spread_pct must be > 0")
	}
	if c.Orderbook.MinThickDepthUSDT < 0 {
		return fmt.Errorf("orderbook.min_thick_depth_usdt must be >= 0")
	}

	if err := c.Strategy1.validate("strategy1"); err != nil {
		return err
	}
	if err := c.Strategy2.StrategyConfig.validate("strategy2"); err != nil {
		return err
	}
	if c.Strategy2.Enabled {
		if c.Strategy2.SpikeLookbackSecs <= 0 {
			return fmt.Errorf("strategy2.spike_lookback_secs must be > 0")
		}
		if c.Strategy2.SpikeRatioMin <= 0 {
			return fmt.Errorf("strategy2.spike_ratio_min must be > 0")
		}
	}
	if err := c.Strategy3.StrategyConfig.validate("strategy3"); err != nil {
		return err
	}
	if c.Strategy3.Enabled {
		if c.Strategy3.BaselineWindowSecs <= 0 {
			return fmt.Errorf("strategy3.baseline_window_secs must be > 0")
		}
		if c.Strategy3.PumpVsBaselineMin <= 0 {
			return fmt.Errorf("strategy3.pump_vs_baseline_min must be > 0")
		}
		if c.Strategy3.MarkStabilityMax <= 0 {
			return fmt.Errorf("strategy3.mark_stability_max must be > 0")
		}
	}
	if err := c.Strategy4.validate("strategy4"); err != nil {
		return err
	}

	if !c.Strategy1.Enabled && !c.Strategy2.Enabled && !c.Strategy3.Enabled && !c.Strategy4.Enabled {
		return fmt.Errorf("at least one strategy must be enabled")
	}

	if c.Database.Enabled() {
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required when database.host is set")
		}
		if c.Database.MinConns < 0 || c.Database.MaxConns < 1 || c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database.min_conns/max_conns out of range")
		}
	}

	return nil
}

// validate checks the common predicate parameters shared by every
// strategy. Disabled strategies skip validation beyond their Enabled
// flag: a strategy that never runs cannot crash the process (spec §7).
func (s StrategyConfig) validate(name string) error {
	if !s.Enabled {
		return nil
	}
	if s.SpreadRatioMin <= 0 {
		return fmt.Errorf("%s.spread_ratio_min must be > 0", name)
	}
	if s.MinAbsDiff < 0 {
		return fmt.Errorf("%s.min_abs_diff must be >= 0", name)
	}
	if s.MinPrice < 0 {
		return fmt.Errorf("%s.min_price must be >= 0", name)
	}
	return nil
}
