package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

const testYAML = `
app:
  name: spaft
  version: 0.3.0
trading:
  mode: PAPER
  symbol: "7203"
  exchange: 1
  price_group: topix100
  lower_limit: "700"
  upper_limit: "1300"
  unit_size: 100
  order_line_ticks: 3
  benefit_ticks: 2
  loss_cut_ticks: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Trading.ConsecutiveEmptyCycles != DefaultConsecutiveEmptyCycles {
		t.Errorf("ConsecutiveEmptyCycles = %d, want %d",
			cfg.Trading.ConsecutiveEmptyCycles, DefaultConsecutiveEmptyCycles)
	}
	if cfg.Trading.ErrorRateThreshold != DefaultErrorRateThreshold {
		t.Errorf("ErrorRateThreshold = %d, want %d",
			cfg.Trading.ErrorRateThreshold, DefaultErrorRateThreshold)
	}
	if cfg.Session.Timezone != "Asia/Tokyo" || cfg.Session.Open != "09:00" {
		t.Errorf("session defaults not applied: %+v", cfg.Session)
	}
	if cfg.PacingInterval() != time.Duration(DefaultPacingMS)*time.Millisecond {
		t.Errorf("PacingInterval = %s", cfg.PacingInterval())
	}
}

func TestLoadConfig_EnvOverridesPassword(t *testing.T) {
	t.Setenv("SPAFT_TRADE_PASSWORD", "s3cret")
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.Password != "s3cret" {
		t.Error("env password not applied")
	}
}

func TestLoadConfig_SecretsFileFallback(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	secret := "gateway:\n  password: from-file\n"
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte(secret), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.Password != "from-file" {
		t.Error("secrets file password not applied")
	}
}

func TestLoadConfig_EnvWinsOverSecretsFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("gateway:\n  password: from-file\n"), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	t.Setenv("SPAFT_TRADE_PASSWORD", "from-env")

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.Password != "from-env" {
		t.Error("environment credential must win over the secrets file")
	}
}

func TestLoadConfig_RejectsMissingSymbol(t *testing.T) {
	bad := `
trading:
  mode: PAPER
  lower_limit: "700"
  upper_limit: "1300"
  unit_size: 100
  order_line_ticks: 3
  benefit_ticks: 2
  loss_cut_ticks: 5
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("config without symbol must be rejected")
	}
}

func TestLoadConfig_RejectsBadMultiplier(t *testing.T) {
	bad := testYAML + `
  maintenance_multiplier: "1.5"
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("multiplier above 1 must be rejected")
	}
}

func TestLoadConfig_RejectsMalformedLimit(t *testing.T) {
	bad := `
trading:
  mode: PAPER
  symbol: "7203"
  price_group: topix100
  lower_limit: "7OO"
  upper_limit: "1300"
  unit_size: 100
  order_line_ticks: 3
  benefit_ticks: 2
  loss_cut_ticks: 5
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("a limit that does not parse must be rejected, not priced at zero")
	}
}

func TestLoadConfig_RejectsInvertedLimits(t *testing.T) {
	bad := `
trading:
  mode: PAPER
  symbol: "7203"
  price_group: topix100
  lower_limit: "1300"
  upper_limit: "700"
  unit_size: 100
  order_line_ticks: 3
  benefit_ticks: 2
  loss_cut_ticks: 5
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("lower_limit above upper_limit must be rejected")
	}
}

func TestConfig_Limits(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	lower, upper, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if lower != quant.MustParsePrice("700") || upper != quant.MustParsePrice("1300") {
		t.Errorf("limits = %s / %s, want 700 / 1300", lower, upper)
	}
}

func TestConfig_MaintenanceMultiplier(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	d, err := cfg.MaintenanceMultiplier()
	if err != nil {
		t.Fatalf("MaintenanceMultiplier: %v", err)
	}
	if d.String() != "0.9" {
		t.Errorf("default multiplier = %s, want 0.9", d)
	}
}
