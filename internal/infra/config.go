package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/poi-ai/SPAFT-sub000/pkg/quant"
)

// Config holds every application setting. Secrets are overridden from
// environment variables after load; the trading password never lives in the
// main config file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode                   string `yaml:"mode"` // PAPER or REAL
		Symbol                 string `yaml:"symbol"`
		Exchange               int    `yaml:"exchange"`
		PriceGroup             string `yaml:"price_group"` // standard / topix100
		LowerLimit             string `yaml:"lower_limit"` // daily limit-down price
		UpperLimit             string `yaml:"upper_limit"` // daily limit-up price
		UnitSize               int64  `yaml:"unit_size"`
		OrderLineTicks         int    `yaml:"order_line_ticks"` // entry distance below touch
		BenefitTicks           int    `yaml:"benefit_ticks"`    // take-profit distance
		LossCutTicks           int    `yaml:"loss_cut_ticks"`   // stop-loss distance
		RequoteTicks           int    `yaml:"requote_ticks"`    // entry drift before re-quote
		MaintenanceMultiplier  string `yaml:"maintenance_multiplier"`
		ConsecutiveEmptyCycles int    `yaml:"consecutive_empty_cycles"`
		ErrorRateThreshold     int    `yaml:"error_rate_threshold"`
		PacingMS               int    `yaml:"pacing_ms"`
	} `yaml:"trading"`

	Session struct {
		Timezone        string `yaml:"timezone"`
		Open            string `yaml:"open"`
		LunchStart      string `yaml:"lunch_start"`
		LunchEnd        string `yaml:"lunch_end"`
		Close           string `yaml:"close"`
		Cutoff          string `yaml:"cutoff"`
		ClosingGuardMin int    `yaml:"closing_guard_min"`
	} `yaml:"session"`

	Gateway struct {
		BaseURL  string `yaml:"base_url"`
		WSURL    string `yaml:"ws_url"`
		Password string `yaml:"-"` // env-only, see overrideWithEnv
	} `yaml:"gateway"`

	Storage struct {
		DBPath string `yaml:"db_path"` // relative paths resolve under the workspace dir
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Defaults applied in LoadConfig when the file leaves a field zero. The
// cycle/threshold values come from the source system's tuning and have no
// documented rationale; they stay named and configurable rather than
// hard-coded at use sites.
const (
	DefaultConsecutiveEmptyCycles = 3
	DefaultErrorRateThreshold     = 5
	DefaultRequoteTicks           = 2
	DefaultPacingMS               = 200
	DefaultClosingGuardMin        = 5
)

// LoadConfig reads and parses the config file, applies environment
// overrides, fills defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	if cfg.Gateway.Password == "" {
		// Operators who keep the credential out of the environment can
		// drop it in a separate secrets file next to the config.
		if sc, err := LoadSecretConfig(filepath.Join(filepath.Dir(path), "secrets.yaml")); err == nil {
			cfg.Gateway.Password = sc.Gateway.Password
		}
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	t := &cfg.Trading
	if t.Mode == "" {
		t.Mode = "PAPER"
	}
	if t.ConsecutiveEmptyCycles == 0 {
		t.ConsecutiveEmptyCycles = DefaultConsecutiveEmptyCycles
	}
	if t.ErrorRateThreshold == 0 {
		t.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if t.RequoteTicks == 0 {
		t.RequoteTicks = DefaultRequoteTicks
	}
	if t.PacingMS == 0 {
		t.PacingMS = DefaultPacingMS
	}
	if t.MaintenanceMultiplier == "" {
		t.MaintenanceMultiplier = "0.9"
	}

	s := &cfg.Session
	if s.Timezone == "" {
		s.Timezone = "Asia/Tokyo"
	}
	if s.Open == "" {
		s.Open = "09:00"
	}
	if s.LunchStart == "" {
		s.LunchStart = "11:30"
	}
	if s.LunchEnd == "" {
		s.LunchEnd = "12:30"
	}
	if s.Close == "" {
		s.Close = "15:00"
	}
	if s.Cutoff == "" {
		s.Cutoff = "14:45"
	}
	if s.ClosingGuardMin == 0 {
		s.ClosingGuardMin = DefaultClosingGuardMin
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "trades.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate fails fast on configuration that would misprice orders.
func (c *Config) Validate() error {
	t := &c.Trading
	if t.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if t.UnitSize <= 0 {
		return fmt.Errorf("trading.unit_size must be positive")
	}
	if t.LowerLimit == "" || t.UpperLimit == "" {
		return fmt.Errorf("trading.lower_limit and trading.upper_limit are required")
	}
	if _, _, err := c.Limits(); err != nil {
		return err
	}
	if t.OrderLineTicks <= 0 || t.BenefitTicks <= 0 || t.LossCutTicks <= 0 {
		return fmt.Errorf("order_line_ticks, benefit_ticks and loss_cut_ticks must all be positive")
	}
	if t.Mode != "PAPER" && t.Mode != "REAL" {
		return fmt.Errorf("trading.mode must be PAPER or REAL, got %q", t.Mode)
	}
	if _, err := c.MaintenanceMultiplier(); err != nil {
		return err
	}
	// The pacing interval is the cooperative delay between gateway calls;
	// the broker rate limit assumes at least 100ms.
	if d := c.PacingInterval(); d < 100*time.Millisecond || d > time.Second {
		return fmt.Errorf("trading.pacing_ms must be between 100 and 1000, got %d", t.PacingMS)
	}
	return nil
}

// Limits parses the configured daily price limits. Like the maintenance
// multiplier these are money values, so they parse as exact decimals and a
// malformed string is a hard error rather than a zero price.
func (c *Config) Limits() (lower, upper quant.PriceMicros, err error) {
	lo, err := decimal.NewFromString(c.Trading.LowerLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("trading.lower_limit %q: %w", c.Trading.LowerLimit, err)
	}
	hi, err := decimal.NewFromString(c.Trading.UpperLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("trading.upper_limit %q: %w", c.Trading.UpperLimit, err)
	}
	lower, upper = quant.FromDecimal(lo), quant.FromDecimal(hi)
	if lower <= 0 || upper <= lower {
		return 0, 0, fmt.Errorf("trading limits must satisfy 0 < lower_limit < upper_limit, got %s / %s", lo, hi)
	}
	return lower, upper, nil
}

// MaintenanceMultiplier parses the configured multiplier as an exact
// decimal; money-affecting fractions never go through float64.
func (c *Config) MaintenanceMultiplier() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Trading.MaintenanceMultiplier)
	if err != nil {
		return decimal.Zero, fmt.Errorf("trading.maintenance_multiplier %q: %w", c.Trading.MaintenanceMultiplier, err)
	}
	if d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("trading.maintenance_multiplier must be in (0, 1], got %s", d)
	}
	return d, nil
}

// PacingInterval returns the minimum delay between gateway calls.
func (c *Config) PacingInterval() time.Duration {
	return time.Duration(c.Trading.PacingMS) * time.Millisecond
}

// overrideWithEnv pulls secrets from the environment. Env always wins over
// file contents for credentials.
func overrideWithEnv(cfg *Config) {
	if pw := os.Getenv("SPAFT_TRADE_PASSWORD"); pw != "" {
		cfg.Gateway.Password = pw
	}
	if url := os.Getenv("SPAFT_GATEWAY_URL"); url != "" {
		cfg.Gateway.BaseURL = url
	}
}
