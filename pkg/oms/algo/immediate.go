package algo

import "github.com/joripage/oms-core/pkg/oms/model"

// Immediate sends the parent as a single child.
type Immediate struct{}

func (Immediate) Name() string { return "immediate" }

func (Immediate) Plan(order model.Order, _ PlanContext) []model.OrderRequest {
	c := child(order, order.Type, order.Quantity, order.ClientOrderID)
	c.StopPrice = order.StopPrice
	return []model.OrderRequest{c}
}
