package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalValidConfig = `
[api]
rest_url = "https://fapi.example.com"
ws_url = "wss://fstream.example.com"

[cooldowns]
per_symbol_seconds = 60

[orderbook]
max_levels = 20
depth_band_pct = 0.005
min_thick_depth_usdt = 10000
max_spread_pct = 0.003

[strategy1]
enabled = true
spread_ratio_min = 1.5
min_abs_diff = 0.0001
min_price = 0.01
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Strategy1.Enabled {
		t.Error("Strategy1.Enabled = false, want true")
	}
	if cfg.Strategy1.SpreadRatioMin != 1.5 {
		t.Errorf("Strategy1.SpreadRatioMin = %v, want 1.5", cfg.Strategy1.SpreadRatioMin)
	}
	if cfg.General.LogDir != DefaultLogDir {
		t.Errorf("General.LogDir = %q, want default %q", cfg.General.LogDir, DefaultLogDir)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("PUMPSENTINEL_REST_URL", "https://env.example.com")

	body := `
[api]
rest_url = "${PUMPSENTINEL_REST_URL}"
ws_url = "wss://fstream.example.com"

[cooldowns]
per_symbol_seconds = 60

[strategy1]
enabled = true
spread_ratio_min = 1.5
min_abs_diff = 0.0001
min_price = 0.01
`
	path := writeTempConfig(t, body)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.RestURL != "https://env.example.com" {
		t.Errorf("API.RestURL = %q, want expanded env value", cfg.API.RestURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load on missing file: err = nil, want error")
	}
}

func TestValidateRejectsNoEnabledStrategies(t *testing.T) {
	body := `
[api]
rest_url = "https://fapi.example.com"
ws_url = "wss://fstream.example.com"

[cooldowns]
per_symbol_seconds = 60
`
	path := writeTempConfig(t, body)

	if _, err := Load(path); err == nil {
		t.Error("Load with no enabled strategies: err = nil, want error")
	}
}

func TestValidateRejectsBadSpreadRatio(t *testing.T) {
	var cfg Config
	cfg.API.RestURL = "https://fapi.example.com"
	cfg.API.WSURL = "wss://fstream.example.com"
	cfg.Cooldowns.PerSymbolSeconds = 60
	cfg.Strategy1.Enabled = true
	cfg.Strategy1.SpreadRatioMin = 0
	cfg.applyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Error("Validate with spread_ratio_min=0: err = nil, want error")
	}
}

func TestValidateDisabledStrategyNotChecked(t *testing.T) {
	var cfg Config
	cfg.API.RestURL = "https://fapi.example.com"
	cfg.API.WSURL = "wss://fstream.example.com"
	cfg.Cooldowns.PerSymbolSeconds = 60
	cfg.Strategy1.Enabled = true
	cfg.Strategy1.SpreadRatioMin = 1.5
	// Strategy2 left disabled with zero-valued fields that would be
	// invalid if it were enabled.
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with disabled strategy2 zero-valued: %v, want nil", err)
	}
}

func TestWindowSeconds(t *testing.T) {
	var cfg Config
	cfg.Strategy2.Enabled = true
	cfg.Strategy2.SpikeLookbackSecs = 45
	cfg.Strategy3.Enabled = true
	cfg.Strategy3.BaselineWindowSecs = 120

	if got := cfg.WindowSeconds(); got != 120 {
		t.Errorf("WindowSeconds() = %d, want 120", got)
	}
}

func TestWindowSecondsDefault(t *testing.T) {
	var cfg Config
	if got := cfg.WindowSeconds(); got != 60 {
		t.Errorf("WindowSeconds() = %d, want default 60", got)
	}
}
