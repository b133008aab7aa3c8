package httpapi

import (
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	ClientOrderID        string                 `json:"client_order_id"`
	StrategyID           string                 `json:"strategy_id"`
	Symbol               string                 `json:"symbol" validate:"required"`
	Side                 model.OrderSide        `json:"side" validate:"required,oneof=BUY SELL"`
	Type                 model.OrderType        `json:"type" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT ICEBERG TWAP VWAP"`
	Quantity             decimal.Decimal        `json:"quantity" validate:"-"`
	Price                decimal.Decimal        `json:"price" validate:"-"`
	StopPrice            decimal.Decimal        `json:"stop_price" validate:"-"`
	TimeInForce          model.OrderTimeInForce `json:"time_in_force" validate:"omitempty,oneof=GTC IOC FOK DAY"`
	IcebergQty           decimal.Decimal        `json:"iceberg_qty" validate:"-"`
	TWAPDurationSeconds  int64                  `json:"twap_duration_seconds" validate:"gte=0"`
	MaxParticipationRate decimal.Decimal        `json:"max_participation_rate" validate:"-"`
}

func (r *PlaceOrderRequest) toOrderRequest() model.OrderRequest {
	return model.OrderRequest{
		ClientOrderID:        r.ClientOrderID,
		StrategyID:           r.StrategyID,
		Symbol:               r.Symbol,
		Side:                 r.Side,
		Type:                 r.Type,
		Quantity:             r.Quantity,
		Price:                r.Price,
		StopPrice:            r.StopPrice,
		TimeInForce:          r.TimeInForce,
		IcebergQty:           r.IcebergQty,
		TWAPDuration:         time.Duration(r.TWAPDurationSeconds) * time.Second,
		MaxParticipationRate: r.MaxParticipationRate,
	}
}

// ModifyOrderRequest leaves an attribute unchanged when it is omitted.
type ModifyOrderRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

type PnLUpdateRequest struct {
	StrategyID string          `json:"strategy_id" validate:"required"`
	Delta      decimal.Decimal `json:"delta" validate:"-"`
}

type RejectedResponse struct {
	Error     string                `json:"error"`
	RiskCheck model.RiskCheckResult `json:"risk_check"`
}
