package oms

import (
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// GetStatistics aggregates over active and historical orders. The average
// fill price is volume weighted across every order with fills.
func (s *OMS) GetStatistics() model.Statistics {
	stats := model.Statistics{
		TotalVolume:     decimal.Zero,
		TotalCommission: decimal.Zero,
		AvgFillPrice:    decimal.Zero,
	}

	notional := decimal.Zero
	for _, o := range s.allOrders() {
		stats.Total++
		switch o.Status {
		case model.OrderStatusFilled:
			stats.Filled++
		case model.OrderStatusCancelled:
			stats.Cancelled++
		}
		stats.TotalVolume = stats.TotalVolume.Add(o.FilledQuantity)
		stats.TotalCommission = stats.TotalCommission.Add(o.Commission)
		notional = notional.Add(o.FilledQuantity.Mul(o.AvgFillPrice))
	}

	if stats.Total > 0 {
		stats.FillRate = float64(stats.Filled) / float64(stats.Total)
	}
	if stats.TotalVolume.IsPositive() {
		stats.AvgFillPrice = notional.Div(stats.TotalVolume)
	}
	return stats
}
