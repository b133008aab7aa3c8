package algo

import (
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// Iceberg reveals VisibleQty at a time until the parent is exhausted.
// Slices are not scheduled: the next one goes out once the previous fills.
type Iceberg struct {
	VisibleQty decimal.Decimal
}

func (Iceberg) Name() string { return "iceberg" }

func (ib Iceberg) slices(qty decimal.Decimal) decimal.Decimal {
	if !ib.VisibleQty.IsPositive() || ib.VisibleQty.GreaterThanOrEqual(qty) {
		return decimal.NewFromInt(1)
	}
	return qty.Div(ib.VisibleQty).Ceil()
}

func (ib Iceberg) Plan(order model.Order, _ PlanContext) []model.OrderRequest {
	visible := ib.VisibleQty
	if !visible.IsPositive() || visible.GreaterThan(order.Quantity) {
		visible = order.Quantity
	}
	typ := sliceType(order)

	var children []model.OrderRequest
	remaining := order.Quantity
	for i := 0; remaining.IsPositive(); i++ {
		qty := decimal.Min(visible, remaining)
		children = append(children, child(order, typ, qty, ChildID(order.ClientOrderID, ib.Name(), i)))
		remaining = remaining.Sub(qty)
	}
	return children
}
