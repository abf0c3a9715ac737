package strategy

import (
	"fmt"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/errs"
)

// New constructs the Decider for a run's configured mode. Mode is
// validated by config.ModeConfig.Validate before this is ever called, so
// the default case here indicates a registry gap rather than bad input.
func New(cfg config.ModeConfig) (Decider, error) {
	switch cfg.Mode {
	case config.ModePureLending:
		return NewPureLendingDecider(cfg), nil
	case config.ModeBasisBTC, config.ModeBasisETH:
		return NewBasisDecider(cfg), nil
	case config.ModeDirectionalStaking:
		return NewDirectionalStakingDecider(cfg), nil
	case config.ModeLeveragedStaking:
		return NewLeveragedStakingDecider(cfg), nil
	case config.ModeHedgedStaking:
		return NewHedgedStakingDecider(cfg), nil
	case config.ModeHedgedLeveragedStaking:
		return NewHedgedLeveragedStakingDecider(cfg), nil
	case config.ModeMLDirectional:
		return NewMLDirectionalDecider(cfg), nil
	default:
		return nil, fmt.Errorf("%w: no decider registered for mode %q", errs.ConfigError, cfg.Mode)
	}
}
