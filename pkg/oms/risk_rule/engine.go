package riskrule

import (
	"sync"
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultConcentrationCeiling = "0.5"
	DefaultMaxOrdersPerDay      = 100
)

type Config struct {
	PositionLimits       map[string]decimal.Decimal `yaml:"position_limits"`
	DailyLossLimits      map[string]decimal.Decimal `yaml:"daily_loss_limits"`
	ConcentrationCeiling decimal.Decimal            `yaml:"concentration_ceiling"`
	MaxOrdersPerDay      int                        `yaml:"max_orders_per_day"`
	HaltedSymbols        []string                   `yaml:"halted_symbols"`
	PriceBands           map[string]PriceBand       `yaml:"price_bands"`
}

func (c *Config) applyDefaults() {
	if c.ConcentrationCeiling.IsZero() {
		c.ConcentrationCeiling = decimal.RequireFromString(DefaultConcentrationCeiling)
	}
	if c.MaxOrdersPerDay <= 0 {
		c.MaxOrdersPerDay = DefaultMaxOrdersPerDay
	}
}

type Option func(*Engine)

// WithClock overrides the clock used for the velocity day key.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine evaluates the pre-trade chain and owns the exposure state. A
// single mutex serializes every read and write of that state so a check
// and the reservation it grants happen in one critical section.
type Engine struct {
	mu       sync.Mutex
	exposure *Exposure
	rules    []RiskRule
	position *PositionLimitRule
	loss     *DailyLossRule
	now      func() time.Time
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		exposure: newExposure(),
		position: NewPositionLimitRule(cfg.PositionLimits),
		loss:     NewDailyLossRule(cfg.DailyLossLimits),
		now:      time.Now,
	}
	e.rules = []RiskRule{
		e.position,
		e.loss,
		NewConcentrationRule(cfg.ConcentrationCeiling),
		NewVelocityRule(cfg.MaxOrdersPerDay),
		NewMarketConditionRule(cfg.HaltedSymbols, cfg.PriceBands),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) SetPositionLimit(symbol string, limit decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position.limits[symbol] = limit
}

func (e *Engine) SetDailyLossLimit(strategyID string, limit decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loss.limits[strategyID] = limit
}

// PreTradeCheck runs the chain without touching exposure.
func (e *Engine) PreTradeCheck(req *model.OrderRequest) model.RiskCheckResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.check(req)
}

func (e *Engine) check(req *model.OrderRequest) model.RiskCheckResult {
	e.exposure.Today = e.today()
	now := e.now()
	for _, rule := range e.rules {
		if res := rule.Check(req, e.exposure); !res.Passed {
			res.Timestamp = now
			return res
		}
	}
	res := model.Pass()
	res.Reason = "All risk checks passed"
	res.Timestamp = now
	return res
}

func (e *Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}

// Reservation is the open, not yet filled quantity of an accepted order.
type Reservation struct {
	Symbol string
	Side   model.OrderSide
	open   decimal.Decimal
}

// Reserve checks req and, if it passes, counts it toward the velocity
// limit and reserves its quantity, all under one lock. Concurrent
// submissions on a symbol therefore see each other before any fill lands.
func (e *Engine) Reserve(req *model.OrderRequest) (model.RiskCheckResult, *Reservation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.check(req)
	if !res.Passed {
		return res, nil
	}

	e.exposure.OrderCount[orderCountKey(req.Symbol, e.exposure.Today)]++
	r := &Reservation{Symbol: req.Symbol, Side: req.Side, open: req.Quantity}
	e.addPending(r.Symbol, r.Side, r.open)
	return res, r
}

// Amend resizes a reservation to a new total open quantity. Growing it
// re-runs the position limit for the increment only.
func (e *Engine) Amend(r *Reservation, newOpen decimal.Decimal) model.RiskCheckResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	delta := newOpen.Sub(r.open)
	if delta.IsPositive() {
		res := e.position.Check(&model.OrderRequest{
			Symbol: r.Symbol, Side: r.Side, Quantity: delta,
		}, e.exposure)
		if !res.Passed {
			res.Timestamp = e.now()
			return res
		}
	}
	e.addPending(r.Symbol, r.Side, delta)
	r.open = newOpen
	return model.Pass()
}

// Fill books an execution against a reservation. Fills beyond the open
// quantity (late fills after release) still move the position.
func (e *Engine) Fill(r *Reservation, qty decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	consumed := decimal.Min(qty, r.open)
	r.open = r.open.Sub(consumed)
	e.addPending(r.Symbol, r.Side, consumed.Neg())
	e.applyPosition(r.Symbol, r.Side, qty)
}

// Release drops whatever is still open on r.
func (e *Engine) Release(r *Reservation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.addPending(r.Symbol, r.Side, r.open.Neg())
	r.open = decimal.Zero
}

// ApplyFill moves a position directly, outside any reservation.
func (e *Engine) ApplyFill(symbol string, side model.OrderSide, qty decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyPosition(symbol, side, qty)
}

// UpdatePnL is the hook for the external PnL calculator.
func (e *Engine) UpdatePnL(strategyID string, delta decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exposure.DailyPnL[strategyID] = e.exposure.DailyPnL[strategyID].Add(delta)
}

// ResetDaily is the daily rollover: PnL and order counts start over,
// positions carry.
func (e *Engine) ResetDaily() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exposure.DailyPnL = make(map[string]decimal.Decimal)
	e.exposure.OrderCount = make(map[string]int)
}

// Snapshot returns a copy of the exposure for diagnostics.
func (e *Engine) Snapshot() Exposure {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exposure.Today = e.today()
	return *e.exposure.clone()
}

func (e *Engine) applyPosition(symbol string, side model.OrderSide, qty decimal.Decimal) {
	e.exposure.Positions[symbol] = e.exposure.Positions[symbol].Add(qty.Mul(side.Sign()))
}

func (e *Engine) addPending(symbol string, side model.OrderSide, qty decimal.Decimal) {
	pending := e.exposure.PendingBuy
	if side == model.OrderSideSell {
		pending = e.exposure.PendingSell
	}
	next := pending[symbol].Add(qty)
	if !next.IsPositive() {
		delete(pending, symbol)
		return
	}
	pending[symbol] = next
}
