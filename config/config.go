package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/risk"
	"github.com/quantfold/tradecore/sim"
)

// Config is the complete engine configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Fees       FeesConfig       `json:"fees" yaml:"fees"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Simulation SimulationConfig `json:"simulation,omitempty" yaml:"simulation,omitempty"`
}

// AccountConfig identifies the portfolio owner and its cash.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

// FeesConfig holds per-fill fee rates.
type FeesConfig struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	TaxRate        float64 `json:"tax_rate" yaml:"tax_rate"`
}

func (f FeesConfig) Schedule() sim.FeeSchedule {
	return sim.FeeSchedule{CommissionRate: f.CommissionRate, TaxRate: f.TaxRate}
}

// RiskConfig mirrors risk.Limits in file form.
type RiskConfig struct {
	MaxPositionPct    float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxDailyLossPct   float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxCorrelation    float64 `json:"max_correlation" yaml:"max_correlation"`
	VaRConfidence     float64 `json:"var_confidence" yaml:"var_confidence"`
	CorrelationWindow int     `json:"correlation_window" yaml:"correlation_window"`
}

func (r RiskConfig) Limits() risk.Limits {
	return risk.Limits{
		MaxPositionPct:    r.MaxPositionPct,
		MaxDailyLossPct:   r.MaxDailyLossPct,
		MaxCorrelation:    r.MaxCorrelation,
		VaRConfidence:     r.VaRConfidence,
		CorrelationWindow: r.CorrelationWindow,
	}
}

// EngineConfig controls the lifecycle manager.
type EngineConfig struct {
	Mode        string `json:"mode" yaml:"mode"` // "simulated" or "live"
	AutoExecute bool   `json:"auto_execute" yaml:"auto_execute"`
	OrderTTL    string `json:"order_ttl,omitempty" yaml:"order_ttl,omitempty"`
	ScanEvery   string `json:"scan_every,omitempty" yaml:"scan_every,omitempty"`
}

func (e EngineConfig) ParseMode() (order.Mode, error) {
	return order.ParseMode(e.Mode)
}

func (e EngineConfig) ParseOrderTTL() (time.Duration, error) {
	if e.OrderTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(e.OrderTTL)
}

func (e EngineConfig) ParseScanEvery() (time.Duration, error) {
	if e.ScanEvery == "" {
		return 0, nil
	}
	return time.ParseDuration(e.ScanEvery)
}

// JournalConfig selects the persistence backend.
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "sqlite", "csv" or "memory"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrdersFile    string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	PositionsFile string `json:"positions_file,omitempty" yaml:"positions_file,omitempty"`
}

// SimulationConfig scripts a simulated session: initial quotes, the
// orders to place, then price steps applied in order.
type SimulationConfig struct {
	Quotes []QuoteConfig `json:"quotes,omitempty" yaml:"quotes,omitempty"`
	Orders []OrderConfig `json:"orders,omitempty" yaml:"orders,omitempty"`
	Steps  []PriceStep   `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// OrderConfig is a scripted order.
type OrderConfig struct {
	Symbol     string   `json:"symbol" yaml:"symbol"`
	Kind       string   `json:"kind" yaml:"kind"`
	Side       string   `json:"side" yaml:"side"`
	Quantity   float64  `json:"quantity" yaml:"quantity"`
	LimitPrice *float64 `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	StopPrice  *float64 `json:"stop_price,omitempty" yaml:"stop_price,omitempty"`
}

// Request converts the scripted order into an engine request.
func (oc OrderConfig) Request(mode order.Mode) (order.Request, error) {
	kind, err := order.ParseKind(oc.Kind)
	if err != nil {
		return order.Request{}, err
	}
	side, err := order.ParseSide(oc.Side)
	if err != nil {
		return order.Request{}, err
	}
	return order.Request{
		Symbol:     oc.Symbol,
		Kind:       kind,
		Side:       side,
		Mode:       mode,
		Quantity:   oc.Quantity,
		LimitPrice: oc.LimitPrice,
		StopPrice:  oc.StopPrice,
	}, nil
}

type QuoteConfig struct {
	Symbol string  `json:"symbol" yaml:"symbol"`
	Bid    float64 `json:"bid" yaml:"bid"`
	Ask    float64 `json:"ask" yaml:"ask"`
}

// PriceStep is a scripted price update, applied after Delay.
type PriceStep struct {
	Symbol string  `json:"symbol" yaml:"symbol"`
	Bid    float64 `json:"bid" yaml:"bid"`
	Ask    float64 `json:"ask" yaml:"ask"`
	Delay  string  `json:"delay,omitempty" yaml:"delay,omitempty"` // e.g. "1s", "30m"
}

func (ps PriceStep) ParseDuration() (time.Duration, error) {
	if ps.Delay == "" {
		return 0, nil
	}
	return time.ParseDuration(ps.Delay)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if c.Fees.CommissionRate < 0 || c.Fees.CommissionRate >= 1 {
		return fmt.Errorf("fees.commission_rate must be in [0, 1)")
	}
	if c.Fees.TaxRate < 0 || c.Fees.TaxRate >= 1 {
		return fmt.Errorf("fees.tax_rate must be in [0, 1)")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in (0, 1]")
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0, 1]")
	}
	if c.Risk.MaxCorrelation <= 0 || c.Risk.MaxCorrelation > 1 {
		return fmt.Errorf("risk.max_correlation must be in (0, 1]")
	}
	if c.Risk.VaRConfidence <= 0.5 || c.Risk.VaRConfidence >= 1 {
		return fmt.Errorf("risk.var_confidence must be in (0.5, 1)")
	}
	if c.Risk.CorrelationWindow <= 1 {
		return fmt.Errorf("risk.correlation_window must be greater than 1")
	}
	if _, err := c.Engine.ParseMode(); err != nil {
		return fmt.Errorf("engine.mode: %w", err)
	}
	if _, err := c.Engine.ParseOrderTTL(); err != nil {
		return fmt.Errorf("engine.order_ttl: %w", err)
	}
	if _, err := c.Engine.ParseScanEvery(); err != nil {
		return fmt.Errorf("engine.scan_every: %w", err)
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.TradesFile == "" || c.Journal.PositionsFile == "" {
			return fmt.Errorf("journal orders_file, trades_file and positions_file required for csv type")
		}
	case "memory":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'memory'")
	}

	for i, q := range c.Simulation.Quotes {
		if q.Symbol == "" || q.Bid <= 0 || q.Ask < q.Bid {
			return fmt.Errorf("simulation.quotes[%d] invalid", i)
		}
	}
	for i, o := range c.Simulation.Orders {
		if _, err := o.Request(order.Simulated); err != nil {
			return fmt.Errorf("simulation.orders[%d]: %w", i, err)
		}
		if o.Quantity <= 0 {
			return fmt.Errorf("simulation.orders[%d]: quantity must be positive", i)
		}
	}
	for i, s := range c.Simulation.Steps {
		if _, err := s.ParseDuration(); err != nil {
			return fmt.Errorf("simulation.steps[%d].delay: %w", i, err)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Cash:     1000000,
		},
		Fees: FeesConfig{
			CommissionRate: sim.DefaultCommissionRate,
			TaxRate:        sim.DefaultTaxRate,
		},
		Risk: RiskConfig{
			MaxPositionPct:    0.20,
			MaxDailyLossPct:   0.05,
			MaxCorrelation:    0.85,
			VaRConfidence:     0.95,
			CorrelationWindow: 30,
		},
		Engine: EngineConfig{
			Mode:        "simulated",
			AutoExecute: true,
			OrderTTL:    "24h",
			ScanEvery:   "1s",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradecore.db",
		},
	}
}
