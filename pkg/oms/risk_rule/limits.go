package riskrule

import (
	"fmt"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

const (
	RulePositionLimit = "position_limit"
	RuleDailyLoss     = "daily_loss"
	RuleConcentration = "concentration"
	RuleVelocity      = "velocity"
	RuleMarket        = "market_condition"
)

// PositionLimitRule caps |position| per symbol. Symbols without a limit
// are unconstrained. Quantity already reserved by in-flight orders on the
// same side counts toward the hypothetical position.
type PositionLimitRule struct {
	limits map[string]decimal.Decimal
}

func NewPositionLimitRule(limits map[string]decimal.Decimal) *PositionLimitRule {
	r := &PositionLimitRule{limits: make(map[string]decimal.Decimal)}
	for k, v := range limits {
		r.limits[k] = v
	}
	return r
}

func (r *PositionLimitRule) Name() string { return RulePositionLimit }

func (r *PositionLimitRule) Check(req *model.OrderRequest, exp *Exposure) model.RiskCheckResult {
	limit, ok := r.limits[req.Symbol]
	if !ok {
		return model.Pass()
	}

	hypothetical := exp.Positions[req.Symbol]
	if req.Side == model.OrderSideBuy {
		hypothetical = hypothetical.Add(exp.PendingBuy[req.Symbol]).Add(req.Quantity)
	} else {
		hypothetical = hypothetical.Sub(exp.PendingSell[req.Symbol]).Sub(req.Quantity)
	}

	if hypothetical.Abs().GreaterThan(limit) {
		score, _ := hypothetical.Abs().Div(limit).Float64()
		return model.Fail(r.Name(),
			fmt.Sprintf("Position limit exceeded: %s > %s", hypothetical.Abs(), limit), score)
	}
	return model.Pass()
}

// DailyLossRule blocks a strategy once its realised PnL for the day is
// below -limit.
type DailyLossRule struct {
	limits map[string]decimal.Decimal
}

func NewDailyLossRule(limits map[string]decimal.Decimal) *DailyLossRule {
	r := &DailyLossRule{limits: make(map[string]decimal.Decimal)}
	for k, v := range limits {
		r.limits[k] = v
	}
	return r
}

func (r *DailyLossRule) Name() string { return RuleDailyLoss }

func (r *DailyLossRule) Check(req *model.OrderRequest, exp *Exposure) model.RiskCheckResult {
	if req.StrategyID == "" {
		return model.Pass()
	}
	limit, ok := r.limits[req.StrategyID]
	if !ok {
		return model.Pass()
	}

	pnl := exp.DailyPnL[req.StrategyID]
	if pnl.LessThan(limit.Neg()) {
		return model.Fail(r.Name(),
			fmt.Sprintf("Daily loss limit exceeded: %s < -%s", pnl, limit), 1)
	}
	return model.Pass()
}

// ConcentrationRule rejects orders on a symbol already holding more than
// ceiling of total absolute exposure.
type ConcentrationRule struct {
	ceiling decimal.Decimal
}

func NewConcentrationRule(ceiling decimal.Decimal) *ConcentrationRule {
	return &ConcentrationRule{ceiling: ceiling}
}

func (r *ConcentrationRule) Name() string { return RuleConcentration }

func (r *ConcentrationRule) Check(req *model.OrderRequest, exp *Exposure) model.RiskCheckResult {
	total := decimal.Zero
	for _, pos := range exp.Positions {
		total = total.Add(pos.Abs())
	}
	if total.IsZero() {
		return model.Pass()
	}

	concentration := exp.Positions[req.Symbol].Abs().Div(total)
	if concentration.GreaterThan(r.ceiling) {
		score, _ := concentration.Float64()
		return model.Fail(r.Name(),
			fmt.Sprintf("Concentration limit exceeded: %s%% > %s%%",
				concentration.Mul(decimal.NewFromInt(100)).StringFixed(2),
				r.ceiling.Mul(decimal.NewFromInt(100)).String()), score)
	}
	return model.Pass()
}

// VelocityRule caps accepted orders per symbol per day.
type VelocityRule struct {
	maxPerDay int
}

func NewVelocityRule(maxPerDay int) *VelocityRule {
	return &VelocityRule{maxPerDay: maxPerDay}
}

func (r *VelocityRule) Name() string { return RuleVelocity }

func (r *VelocityRule) Check(req *model.OrderRequest, exp *Exposure) model.RiskCheckResult {
	count := exp.OrderCount[orderCountKey(req.Symbol, exp.Today)]
	if count >= r.maxPerDay {
		return model.Fail(r.Name(),
			fmt.Sprintf("Daily order limit exceeded: %d >= %d", count, r.maxPerDay), 1)
	}
	return model.Pass()
}
