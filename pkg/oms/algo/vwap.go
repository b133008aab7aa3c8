package algo

import (
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// VWAP weights slices by a historical volume profile, one bucket per
// SliceUnit. Buckets whose share falls below MinSliceQty are skipped and
// the rounding residual lands on the last emitted slice.
type VWAP struct{}

func (VWAP) Name() string { return "vwap" }

// Weights normalises a volume profile. Negative buckets count as zero.
// It returns nil when the profile carries no volume.
func Weights(volume []decimal.Decimal) []decimal.Decimal {
	total := decimal.Zero
	for _, v := range volume {
		if v.IsPositive() {
			total = total.Add(v)
		}
	}
	if !total.IsPositive() {
		return nil
	}

	weights := make([]decimal.Decimal, len(volume))
	for i, v := range volume {
		if v.IsPositive() {
			weights[i] = v.Div(total)
		}
	}
	return weights
}

func (v VWAP) Plan(order model.Order, ctx PlanContext) []model.OrderRequest {
	weights := Weights(ctx.VolumeProfile)
	if weights == nil {
		return equalSplit(order, DefaultSplitSlices)
	}

	var children []model.OrderRequest
	remaining := order.Quantity
	for i, w := range weights {
		if !remaining.IsPositive() {
			break
		}
		qty := decimal.Min(order.Quantity.Mul(w), remaining)
		if qty.LessThan(MinSliceQty) {
			continue
		}

		c := child(order, model.OrderTypeMarket, qty, ChildID(order.ClientOrderID, v.Name(), i))
		c.Price = decimal.Zero
		c.ScheduledOffset = time.Duration(i) * SliceUnit
		children = append(children, c)
		remaining = remaining.Sub(qty)
	}

	if len(children) == 0 {
		return equalSplit(order, DefaultSplitSlices)
	}
	last := &children[len(children)-1]
	last.Quantity = last.Quantity.Add(remaining)
	return children
}

// equalSplit is the fallback when no usable volume profile exists.
func equalSplit(order model.Order, n int) []model.OrderRequest {
	sliceQty := order.Quantity.Div(decimal.NewFromInt(int64(n)))
	typ := sliceType(order)

	children := make([]model.OrderRequest, 0, n)
	allocated := decimal.Zero
	for i := 0; i < n; i++ {
		qty := sliceQty
		if i == n-1 {
			qty = order.Quantity.Sub(allocated)
		}
		allocated = allocated.Add(qty)

		c := child(order, typ, qty, ChildID(order.ClientOrderID, "split", i))
		c.ScheduledOffset = time.Duration(i) * SliceUnit
		children = append(children, c)
	}
	return children
}
