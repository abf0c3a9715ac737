// Package config materializes mode YAML into strongly typed, validated
// structs instead of runtime reflection over config dicts, following a
// load-then-validate shape: os.ReadFile -> yaml.Unmarshal -> Validate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/basisengine/internal/errs"
)

// ShareClass is the currency of P&L reporting and equity tracking.
type ShareClass string

const (
	ShareClassUSDT ShareClass = "USDT"
	ShareClassETH  ShareClass = "ETH"
)

// Mode is the closed, compile-time-enumerated set of strategy archetypes.
type Mode string

const (
	ModePureLending             Mode = "pure_lending"
	ModeBasisBTC                Mode = "basis_btc"
	ModeBasisETH                Mode = "basis_eth"
	ModeDirectionalStaking      Mode = "directional_staking"
	ModeLeveragedStaking        Mode = "leveraged_staking"
	ModeHedgedStaking           Mode = "hedged_staking"
	ModeHedgedLeveragedStaking  Mode = "hedged_leveraged_staking"
	ModeMLDirectional           Mode = "ml_directional"
)

// HedgeVenue is one CEX allocation slice for hedged modes.
type HedgeVenue struct {
	Venue    string  `yaml:"venue"`
	Fraction float64 `yaml:"fraction"`
}

// MLConfig holds the ML directional mode's signal-interpretation
// parameters; signal_threshold is a raw confidence score in [0,1].
type MLConfig struct {
	SignalThreshold float64 `yaml:"signal_threshold"`
	TakeProfitSD    float64 `yaml:"take_profit_sd"`
	StopLossSD      float64 `yaml:"stop_loss_sd"`
	SDFloorBPS      float64 `yaml:"sd_floor_bps"`
	SDCapBPS        float64 `yaml:"sd_cap_bps"`
}

// RiskThresholds holds the Critical threshold per dimension; Warning is
// derived as a fraction of Critical (default 60%).
type RiskThresholds struct {
	HealthFactorCritical float64 `yaml:"health_factor_critical"`
	MarginRatioCritical  float64 `yaml:"margin_ratio_critical"`
	DeltaDriftCritical   float64 `yaml:"delta_drift_critical"`
	WarningFraction      float64 `yaml:"warning_fraction"`
}

func (t RiskThresholds) Warning() float64 {
	if t.WarningFraction == 0 {
		return 0.6
	}
	return t.WarningFraction
}

// ModeConfig is the fully typed configuration for one strategy run.
type ModeConfig struct {
	Mode                       Mode           `yaml:"mode"`
	ShareClass                 ShareClass     `yaml:"share_class"`
	Asset                      string         `yaml:"asset"`
	MarketNeutral              bool           `yaml:"market_neutral"`
	LendingEnabled             bool           `yaml:"lending_enabled"`
	BorrowingEnabled           bool           `yaml:"borrowing_enabled"`
	StakingEnabled             bool           `yaml:"staking_enabled"`
	BasisTradeEnabled          bool           `yaml:"basis_trade_enabled"`
	TargetLTV                  float64        `yaml:"target_ltv"`
	StakeAllocation            float64        `yaml:"stake_allocation"`
	HedgeVenues                []HedgeVenue   `yaml:"hedge_venues"`
	LSTType                    string         `yaml:"lst_type"`
	PositionDeviationThreshold float64        `yaml:"position_deviation_threshold"`
	MaxDeltaDrift              float64        `yaml:"max_delta_drift"`
	RiskThresholds             RiskThresholds `yaml:"risk_thresholds"`
	MLConfig                   MLConfig       `yaml:"ml_config"`
	InitialCapital             float64        `yaml:"initial_capital"`
	TightLoopTimeout           int            `yaml:"tight_loop_timeout_seconds"`
	MaxRetries                 int            `yaml:"max_retries"`
	BaseRetryDelayMS           int            `yaml:"base_retry_delay_ms"`
	VenueCallTimeoutSeconds    int            `yaml:"venue_call_timeout_seconds"`
}

// Load reads and validates a mode configuration file.
func Load(path string) (*ModeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mode config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mode config: %w", err)
	}
	return &cfg, nil
}

// Default returns a ModeConfig with baseline defaults applied
// (position_deviation_threshold 0.02, max_delta_drift 0.02), so a mode
// file only needs to override what differs.
func Default() ModeConfig {
	return ModeConfig{
		PositionDeviationThreshold: 0.02,
		MaxDeltaDrift:              0.02,
		RiskThresholds: RiskThresholds{
			HealthFactorCritical: 1.1,
			MarginRatioCritical:  0.05,
			DeltaDriftCritical:   0.02,
			WarningFraction:      0.6,
		},
		TightLoopTimeout:        120,
		MaxRetries:              3,
		BaseRetryDelayMS:        1000,
		VenueCallTimeoutSeconds: 30,
	}
}

// Validate enforces required invariants at construction, returning
// errs.ConfigError on any violation.
func (c ModeConfig) Validate() error {
	switch c.Mode {
	case ModePureLending, ModeBasisBTC, ModeBasisETH, ModeDirectionalStaking,
		ModeLeveragedStaking, ModeHedgedStaking, ModeHedgedLeveragedStaking, ModeMLDirectional:
	default:
		return fmt.Errorf("%w: unrecognized mode %q", errs.ConfigError, c.Mode)
	}
	if c.ShareClass != ShareClassUSDT && c.ShareClass != ShareClassETH {
		return fmt.Errorf("%w: share_class must be USDT or ETH, got %q", errs.ConfigError, c.ShareClass)
	}
	if c.Asset == "" {
		return fmt.Errorf("%w: asset must not be empty", errs.ConfigError)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", errs.ConfigError)
	}
	if c.PositionDeviationThreshold <= 0 {
		return fmt.Errorf("%w: position_deviation_threshold must be positive", errs.ConfigError)
	}
	if c.MaxDeltaDrift <= 0 {
		return fmt.Errorf("%w: max_delta_drift must be positive", errs.ConfigError)
	}
	if (c.Mode == ModeLeveragedStaking || c.Mode == ModeHedgedLeveragedStaking) && (c.TargetLTV <= 0 || c.TargetLTV >= 1) {
		return fmt.Errorf("%w: target_ltv must be in (0,1) for leveraged modes, got %v", errs.ConfigError, c.TargetLTV)
	}
	if (c.Mode == ModeHedgedStaking || c.Mode == ModeHedgedLeveragedStaking) && (c.StakeAllocation <= 0 || c.StakeAllocation > 1) {
		return fmt.Errorf("%w: stake_allocation must be in (0,1] for hedged modes, got %v", errs.ConfigError, c.StakeAllocation)
	}
	if c.Mode == ModeHedgedStaking || c.Mode == ModeHedgedLeveragedStaking || c.Mode == ModeBasisBTC || c.Mode == ModeBasisETH {
		sum := 0.0
		for _, hv := range c.HedgeVenues {
			sum += hv.Fraction
		}
		if len(c.HedgeVenues) == 0 {
			return fmt.Errorf("%w: hedge_venues must not be empty for hedged/basis modes", errs.ConfigError)
		}
		if diff := sum - 1.0; diff > 1e-6 || diff < -1e-6 {
			return fmt.Errorf("%w: hedge_venues fractions must sum to 1.0, got %v", errs.ConfigError, sum)
		}
	}
	if c.Mode == ModeMLDirectional {
		if c.MLConfig.SignalThreshold < 0 || c.MLConfig.SignalThreshold > 1 {
			return fmt.Errorf("%w: ml_config.signal_threshold must be in [0,1], got %v", errs.ConfigError, c.MLConfig.SignalThreshold)
		}
		if c.MLConfig.SDCapBPS < c.MLConfig.SDFloorBPS {
			return fmt.Errorf("%w: ml_config.sd_cap_bps must be >= sd_floor_bps", errs.ConfigError)
		}
	}
	if c.TightLoopTimeout <= 0 {
		return fmt.Errorf("%w: tight_loop_timeout_seconds must be positive", errs.ConfigError)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive", errs.ConfigError)
	}
	return nil
}

// DataRequirements returns the data categories this mode needs, so unused
// categories are never read.
func (c ModeConfig) DataRequirements() []string {
	reqs := []string{"prices"}
	if c.LendingEnabled || c.BorrowingEnabled {
		reqs = append(reqs, "lending_rates", "indices", "risk_params")
	}
	if c.StakingEnabled {
		reqs = append(reqs, "oracles", "staking_rewards")
	}
	if c.BasisTradeEnabled {
		reqs = append(reqs, "funding")
	}
	return reqs
}
