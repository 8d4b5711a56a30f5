package index

import (
	apperrors "cnvix/internal/errors"
)

// Params are the constants of the index methodology. All times are
// measured in trading days and converted to years by TradingDaysPerYear.
type Params struct {
	RiskFreeRate       float64 `json:"risk_free_rate"` // annualized, continuously compounded
	TradingDaysPerYear float64 `json:"trading_days_per_year"`
	TargetTradingDays  int     `json:"target_trading_days"`
}

// DefaultParams returns the published methodology constants.
func DefaultParams() Params {
	return Params{
		RiskFreeRate:       0.03,
		TradingDaysPerYear: 252,
		TargetTradingDays:  30,
	}
}

// Validate rejects parameters the computation cannot use.
func (p Params) Validate() error {
	if p.TradingDaysPerYear <= 0 {
		return apperrors.NewValidationError("trading_days_per_year", p.TradingDaysPerYear, "must be positive")
	}
	if p.TargetTradingDays <= 0 {
		return apperrors.NewValidationError("target_trading_days", p.TargetTradingDays, "must be positive")
	}
	if p.RiskFreeRate < -1 || p.RiskFreeRate > 1 {
		return apperrors.NewValidationError("risk_free_rate", p.RiskFreeRate, "must be within [-1, 1]")
	}
	return nil
}

// TargetYears is the target horizon in years.
func (p Params) TargetYears() float64 {
	return float64(p.TargetTradingDays) / p.TradingDaysPerYear
}
