package riskrule

import (
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// RiskRule is one link of the pre-trade chain. Rules only read exposure.
type RiskRule interface {
	Name() string
	Check(req *model.OrderRequest, exp *Exposure) model.RiskCheckResult
}

// Exposure is the accounting state shared by concurrent submissions.
// It is owned by Engine and only ever handed to rules under Engine.mu.
type Exposure struct {
	Positions   map[string]decimal.Decimal `json:"positions"`
	PendingBuy  map[string]decimal.Decimal `json:"pending_buy"`
	PendingSell map[string]decimal.Decimal `json:"pending_sell"`
	DailyPnL    map[string]decimal.Decimal `json:"daily_pnl"`
	OrderCount  map[string]int             `json:"order_count"` // orderCountKey(symbol, day)
	Today       string                     `json:"today"`
}

func newExposure() *Exposure {
	return &Exposure{
		Positions:   make(map[string]decimal.Decimal),
		PendingBuy:  make(map[string]decimal.Decimal),
		PendingSell: make(map[string]decimal.Decimal),
		DailyPnL:    make(map[string]decimal.Decimal),
		OrderCount:  make(map[string]int),
	}
}

func orderCountKey(symbol, day string) string {
	return symbol + "_" + day
}

func (e *Exposure) clone() *Exposure {
	cp := newExposure()
	cp.Today = e.Today
	for k, v := range e.Positions {
		cp.Positions[k] = v
	}
	for k, v := range e.PendingBuy {
		cp.PendingBuy[k] = v
	}
	for k, v := range e.PendingSell {
		cp.PendingSell[k] = v
	}
	for k, v := range e.DailyPnL {
		cp.DailyPnL[k] = v
	}
	for k, v := range e.OrderCount {
		cp.OrderCount[k] = v
	}
	return cp
}
