package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskCheckResult is the typed outcome of a pre-trade check. A failed check
// is a business result, never an error.
type RiskCheckResult struct {
	Passed    bool      `json:"passed"`
	Reason    string    `json:"reason,omitempty"`
	RiskScore float64   `json:"risk_score"`
	Rule      string    `json:"rule,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func Pass() RiskCheckResult {
	return RiskCheckResult{Passed: true}
}

func Fail(rule, reason string, score float64) RiskCheckResult {
	return RiskCheckResult{Rule: rule, Reason: reason, RiskScore: score}
}

// Statistics aggregates every order the manager has seen.
type Statistics struct {
	Total           int             `json:"total_orders"`
	Filled          int             `json:"filled_orders"`
	Cancelled       int             `json:"cancelled_orders"`
	FillRate        float64         `json:"fill_rate"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	AvgFillPrice    decimal.Decimal `json:"avg_fill_price"`
}
