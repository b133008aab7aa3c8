package riskrule

import (
	"fmt"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// PriceBand is a circuit-breaker style band for priced orders.
type PriceBand struct {
	Floor decimal.Decimal `yaml:"floor"`
	Ceil  decimal.Decimal `yaml:"ceil"`
}

// MarketConditionRule is the venue/market-state gate. With nothing
// configured it passes everything.
type MarketConditionRule struct {
	halted map[string]bool
	bands  map[string]PriceBand
}

func NewMarketConditionRule(halted []string, bands map[string]PriceBand) *MarketConditionRule {
	r := &MarketConditionRule{
		halted: make(map[string]bool),
		bands:  make(map[string]PriceBand),
	}
	for _, s := range halted {
		r.halted[s] = true
	}
	for k, v := range bands {
		r.bands[k] = v
	}
	return r
}

func (r *MarketConditionRule) Name() string { return RuleMarket }

func (r *MarketConditionRule) Check(req *model.OrderRequest, _ *Exposure) model.RiskCheckResult {
	if r.halted[req.Symbol] {
		return model.Fail(r.Name(), fmt.Sprintf("Market halted for %s", req.Symbol), 1)
	}

	band, ok := r.bands[req.Symbol]
	if !ok || req.Price.IsZero() {
		return model.Pass()
	}
	if req.Price.GreaterThan(band.Ceil) || req.Price.LessThan(band.Floor) {
		return model.Fail(r.Name(),
			fmt.Sprintf("Price %s outside band [%s, %s]", req.Price, band.Floor, band.Ceil), 1)
	}
	return model.Pass()
}
