package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms"
	"github.com/joripage/oms-core/pkg/oms/model"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RiskView is the part of the risk engine exposed over HTTP.
type RiskView interface {
	Snapshot() riskrule.Exposure
	UpdatePnL(strategyID string, delta decimal.Decimal)
}

type OrderHandler struct {
	OMS       oms.IOMS
	Risk      RiskView
	Validator *validator.Validate
	logger    *logging.Logger
}

func NewOrderHandler(o oms.IOMS, risk RiskView, logger *logging.Logger) *OrderHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OrderHandler{
		OMS:       o,
		Risk:      risk,
		Validator: validator.New(),
		logger:    logger,
	}
}

func formatValidationError(err error) map[string]string {
	errs := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["request"] = err.Error()
		return errs
	}
	for _, e := range verrs {
		errs[e.Field()] = "failed on tag '" + e.Tag() + "'"
	}
	return errs
}

// POST /orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"validation_errors": formatValidationError(err)})
		return
	}

	order, res := h.OMS.SubmitWithResult(c.Request.Context(), req.toOrderRequest())
	if order == nil {
		c.JSON(http.StatusUnprocessableEntity, RejectedResponse{Error: res.Reason, RiskCheck: res})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// DELETE /orders/:id
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order := h.lookup(c.Param("id"))
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if !h.OMS.Cancel(c.Request.Context(), order.OrderID) {
		c.JSON(http.StatusConflict, gin.H{"error": "order is already " + string(order.Status)})
		return
	}
	c.JSON(http.StatusOK, h.OMS.GetOrder(order.OrderID))
}

// PATCH /orders/:id
func (h *OrderHandler) ModifyOrder(c *gin.Context) {
	var req ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Quantity == nil && req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity or price is required"})
		return
	}

	order := h.lookup(c.Param("id"))
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if !h.OMS.Modify(c.Request.Context(), order.OrderID, req.Quantity, req.Price) {
		c.JSON(http.StatusConflict, gin.H{"error": "order cannot be modified"})
		return
	}
	c.JSON(http.StatusOK, h.OMS.GetOrder(order.OrderID))
}

// GET /orders/:id, by order id or client order id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order := h.lookup(c.Param("id"))
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// GET /orders?symbol=XYZ
func (h *OrderHandler) ListActiveOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.OMS.GetActiveOrders(c.Query("symbol")))
}

// GET /history
func (h *OrderHandler) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.OMS.GetHistory())
}

// GET /statistics
func (h *OrderHandler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.OMS.GetStatistics())
}

// GET /risk/exposure
func (h *OrderHandler) GetExposure(c *gin.Context) {
	c.JSON(http.StatusOK, h.Risk.Snapshot())
}

// POST /risk/pnl
func (h *OrderHandler) UpdatePnL(c *gin.Context) {
	var req PnLUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"validation_errors": formatValidationError(err)})
		return
	}

	h.Risk.UpdatePnL(req.StrategyID, req.Delta)
	h.logger.Info(c.Request.Context(), "pnl updated",
		zap.String("strategy_id", req.StrategyID),
		zap.String("delta", req.Delta.String()))
	c.JSON(http.StatusOK, gin.H{"strategy_id": req.StrategyID, "daily_pnl": h.Risk.Snapshot().DailyPnL[req.StrategyID]})
}

func (h *OrderHandler) lookup(id string) *model.Order {
	if order := h.OMS.GetOrder(id); order != nil {
		return order
	}
	return h.OMS.GetOrderByClientOrderID(id)
}
