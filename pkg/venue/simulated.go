package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnknownOrder = errors.New("unknown venue order id")
	ErrOrderClosed  = errors.New("venue order already closed")
)

const (
	DefaultCommissionRate = "0.001"
	DefaultFallbackPrice  = "45000"
)

// PriceSource is the slice of a market data feed the venue needs.
type PriceSource interface {
	LastPrice(symbol string) (decimal.Decimal, bool)
}

// ReportFunc delivers an execution that happened after PlaceOrder
// returned. The OMS's ReportExecution fits.
type ReportFunc func(ctx context.Context, clientOrderID string, exec model.Execution) error

type Config struct {
	CommissionRate decimal.Decimal
	// FallbackPrice fills market orders when no last price is known.
	FallbackPrice decimal.Decimal
	// RestLimitOrders keeps limit orders that are not marketable against
	// the last price working until Sweep finds them marketable.
	RestLimitOrders bool
}

type restingOrder struct {
	venueOrderID string
	req          model.OrderRequest
	closed       bool
}

// Simulated is a paper venue. Market orders fill in full at the last
// price; limit orders fill at their limit, or rest when configured to.
type Simulated struct {
	cfg    Config
	prices PriceSource
	logger *logging.Logger

	mu      sync.Mutex
	seq     int64
	orders  map[string]*restingOrder
	resting map[string][]string // symbol -> venue ids
	report  ReportFunc
}

func NewSimulated(cfg Config, prices PriceSource, logger *logging.Logger) *Simulated {
	if cfg.CommissionRate.IsZero() {
		cfg.CommissionRate = decimal.RequireFromString(DefaultCommissionRate)
	}
	if cfg.FallbackPrice.IsZero() {
		cfg.FallbackPrice = decimal.RequireFromString(DefaultFallbackPrice)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Simulated{
		cfg:     cfg,
		prices:  prices,
		logger:  logger,
		orders:  make(map[string]*restingOrder),
		resting: make(map[string][]string),
	}
}

// SetReporter wires asynchronous fills back into the order manager.
func (v *Simulated) SetReporter(fn ReportFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.report = fn
}

func (v *Simulated) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Execution, error) {
	if !req.Quantity.IsPositive() {
		return model.Execution{}, fmt.Errorf("place %s: quantity must be positive", req.ClientOrderID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	venueID := fmt.Sprintf("SIM-%d", v.seq)
	last, hasLast := v.lastPrice(req.Symbol)

	if req.Price.IsPositive() && v.cfg.RestLimitOrders && hasLast && !marketable(req, last) {
		v.orders[venueID] = &restingOrder{venueOrderID: venueID, req: req}
		v.resting[req.Symbol] = append(v.resting[req.Symbol], venueID)
		v.logger.Debug(ctx, "order resting",
			zap.String("venue_order_id", venueID),
			zap.String("client_order_id", req.ClientOrderID),
			zap.String("limit", req.Price.String()),
			zap.String("last", last.String()))
		return model.Execution{VenueOrderID: venueID}, nil
	}

	price := req.Price
	if !price.IsPositive() {
		price = v.cfg.FallbackPrice
		if hasLast {
			price = last
		}
	}
	v.orders[venueID] = &restingOrder{venueOrderID: venueID, req: req, closed: true}
	return v.fill(venueID, req.Quantity, price), nil
}

func (v *Simulated) CancelOrder(ctx context.Context, venueOrderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[venueOrderID]
	if !ok {
		return ErrUnknownOrder
	}
	if o.closed {
		return ErrOrderClosed
	}
	o.closed = true
	v.unrest(o.req.Symbol, venueOrderID)
	v.logger.Debug(ctx, "order cancelled at venue", zap.String("venue_order_id", venueOrderID))
	return nil
}

// Sweep fills every resting order on symbol that the given price makes
// marketable and reports the fills.
func (v *Simulated) Sweep(ctx context.Context, symbol string, price decimal.Decimal) int {
	type pending struct {
		clientOrderID string
		exec          model.Execution
	}

	v.mu.Lock()
	var fills []pending
	kept := v.resting[symbol][:0]
	for _, id := range v.resting[symbol] {
		o := v.orders[id]
		if o.closed {
			continue
		}
		if !marketable(o.req, price) {
			kept = append(kept, id)
			continue
		}
		o.closed = true
		fills = append(fills, pending{o.req.ClientOrderID, v.fill(id, o.req.Quantity, o.req.Price)})
	}
	v.resting[symbol] = kept
	report := v.report
	v.mu.Unlock()

	for _, f := range fills {
		if report == nil {
			break
		}
		if err := report(ctx, f.clientOrderID, f.exec); err != nil {
			v.logger.Warn(ctx, "report fill failed",
				zap.String("client_order_id", f.clientOrderID), zap.Error(err))
		}
	}
	return len(fills)
}

// Run sweeps every symbol with resting orders against the price source
// until ctx is done.
func (v *Simulated) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range v.restingSymbols() {
				if last, ok := v.prices.LastPrice(symbol); ok {
					v.Sweep(ctx, symbol, last)
				}
			}
		}
	}
}

func (v *Simulated) restingSymbols() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	symbols := make([]string, 0, len(v.resting))
	for s, ids := range v.resting {
		if len(ids) > 0 {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (v *Simulated) lastPrice(symbol string) (decimal.Decimal, bool) {
	if v.prices == nil {
		return decimal.Zero, false
	}
	return v.prices.LastPrice(symbol)
}

func (v *Simulated) fill(venueID string, qty, price decimal.Decimal) model.Execution {
	return model.Execution{
		VenueOrderID: venueID,
		Quantity:     qty,
		Price:        price,
		Commission:   qty.Mul(price).Mul(v.cfg.CommissionRate),
	}
}

func (v *Simulated) unrest(symbol, venueID string) {
	ids := v.resting[symbol]
	for i, id := range ids {
		if id == venueID {
			v.resting[symbol] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func marketable(req model.OrderRequest, last decimal.Decimal) bool {
	if req.Side == model.OrderSideBuy {
		return last.LessThanOrEqual(req.Price)
	}
	return last.GreaterThanOrEqual(req.Price)
}
