package algo

import (
	"errors"
	"fmt"
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

const (
	// SliceUnit is the nominal spacing between scheduled slices. Children
	// carry ScheduledOffset in multiples of it; the dispatcher may rescale.
	SliceUnit = time.Minute

	DefaultTWAPDuration = 300 * time.Second
	DefaultIcebergRatio = "0.1"
	DefaultSplitSlices  = 10

	// MaxSlices bounds how many children one parent may be split into.
	MaxSlices = 10000
)

var ErrTooManySlices = errors.New("too many slices")

// MinSliceQty is the smallest tradable child quantity.
var MinSliceQty = decimal.RequireFromString("0.001")

// Planner decomposes a parent order into child requests. Plan is pure:
// the same order and context always give the same plan.
type Planner interface {
	Name() string
	Plan(order model.Order, ctx PlanContext) []model.OrderRequest
}

// PlanContext carries market inputs needed by some planners.
type PlanContext struct {
	VolumeProfile []decimal.Decimal
	Now           time.Time
}

// Config holds fallbacks for algorithm parameters left unset on a request.
type Config struct {
	TWAPDuration time.Duration   `yaml:"twap_duration"`
	IcebergRatio decimal.Decimal `yaml:"iceberg_ratio"`
}

func (c Config) withDefaults() Config {
	if c.TWAPDuration <= 0 {
		c.TWAPDuration = DefaultTWAPDuration
	}
	if !c.IcebergRatio.IsPositive() {
		c.IcebergRatio = decimal.RequireFromString(DefaultIcebergRatio)
	}
	return c
}

// Select returns the planner for req.Type.
func Select(req *model.OrderRequest, cfg Config) Planner {
	cfg = cfg.withDefaults()

	switch req.Type {
	case model.OrderTypeTWAP:
		d := req.TWAPDuration
		if d <= 0 {
			d = cfg.TWAPDuration
		}
		return TWAP{Duration: d}
	case model.OrderTypeVWAP:
		return VWAP{}
	case model.OrderTypeIceberg:
		visible := req.IcebergQty
		if !visible.IsPositive() {
			visible = req.Quantity.Mul(cfg.IcebergRatio)
		}
		return Iceberg{VisibleQty: visible}
	default:
		return Immediate{}
	}
}

// Scheduled reports whether p spaces its children in time.
func Scheduled(p Planner) bool {
	switch p.(type) {
	case TWAP, VWAP:
		return true
	}
	return false
}

// CheckSlices fails when p would split qty into more than MaxSlices
// children. It does not build the plan.
func CheckSlices(p Planner, qty decimal.Decimal) error {
	var n decimal.Decimal
	switch p := p.(type) {
	case Iceberg:
		n = p.slices(qty)
	case TWAP:
		n = decimal.NewFromInt(int64(p.Slices()))
	default:
		return nil
	}
	if n.GreaterThan(decimal.NewFromInt(MaxSlices)) {
		return fmt.Errorf("%w: %s > %d", ErrTooManySlices, n, MaxSlices)
	}
	return nil
}

// ChildID derives a slice client order id from its parent's.
func ChildID(parent, algo string, i int) string {
	return fmt.Sprintf("%s_%s_%d", parent, algo, i)
}

// child copies the parent fields every slice inherits.
func child(order model.Order, typ model.OrderType, qty decimal.Decimal, id string) model.OrderRequest {
	return model.OrderRequest{
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          typ,
		Quantity:      qty,
		Price:         order.Price,
		TimeInForce:   order.TimeInForce,
		ClientOrderID: id,
		StrategyID:    order.StrategyID,
	}
}

// sliceType is LIMIT for a priced parent, MARKET otherwise.
func sliceType(order model.Order) model.OrderType {
	if order.Price.IsPositive() {
		return model.OrderTypeLimit
	}
	return model.OrderTypeMarket
}

// Sum adds up child quantities.
func Sum(children []model.OrderRequest) decimal.Decimal {
	total := decimal.Zero
	for _, c := range children {
		total = total.Add(c.Quantity)
	}
	return total
}
