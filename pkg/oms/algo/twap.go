package algo

import (
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// TWAP splits the parent into equal MARKET slices, one per SliceUnit of
// Duration. A duration shorter than one unit gives a single slice.
type TWAP struct {
	Duration time.Duration
}

func (TWAP) Name() string { return "twap" }

func (t TWAP) Slices() int {
	n := int(t.Duration / SliceUnit)
	if n < 1 {
		return 1
	}
	return n
}

func (t TWAP) Plan(order model.Order, _ PlanContext) []model.OrderRequest {
	n := t.Slices()
	sliceQty := order.Quantity.Div(decimal.NewFromInt(int64(n)))

	children := make([]model.OrderRequest, 0, n)
	allocated := decimal.Zero
	for i := 0; i < n; i++ {
		qty := sliceQty
		if i == n-1 {
			qty = order.Quantity.Sub(allocated)
		}
		allocated = allocated.Add(qty)

		c := child(order, model.OrderTypeMarket, qty, ChildID(order.ClientOrderID, t.Name(), i))
		c.Price = decimal.Zero
		c.ScheduledOffset = time.Duration(i) * SliceUnit
		children = append(children, c)
	}
	return children
}
