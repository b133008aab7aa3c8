package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/marketdata"
	"github.com/joripage/oms-core/pkg/oms"
	"github.com/joripage/oms-core/pkg/oms/model"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/joripage/oms-core/pkg/venue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupRouter(t *testing.T) (*gin.Engine, *oms.OMS) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	feed := marketdata.NewStatic()
	feed.SetLastPrice("BTC", d("100"))
	sim := venue.NewSimulated(venue.Config{RestLimitOrders: true}, feed, nil)
	risk := riskrule.NewEngine(riskrule.Config{
		PositionLimits:       map[string]decimal.Decimal{"BTC": d("10")},
		ConcentrationCeiling: d("1"),
	})
	o := oms.NewOMS(sim, risk, oms.WithMarketData(feed), oms.WithLogger(logging.NewNop()))
	sim.SetReporter(o.ReportExecution)
	t.Cleanup(o.Stop)

	return NewRouter(NewOrderHandler(o, risk, nil)), o
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) model.Order {
	t.Helper()
	var order model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func TestPlaceOrder(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{
			name:   "market order fills",
			body:   gin.H{"symbol": "BTC", "side": "BUY", "type": "MARKET", "quantity": "2"},
			status: http.StatusCreated,
		},
		{
			name:   "bad side",
			body:   gin.H{"symbol": "BTC", "side": "HOLD", "type": "MARKET", "quantity": "2"},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing symbol",
			body:   gin.H{"side": "BUY", "type": "MARKET", "quantity": "2"},
			status: http.StatusBadRequest,
		},
		{
			name:   "position limit",
			body:   gin.H{"symbol": "BTC", "side": "BUY", "type": "MARKET", "quantity": "50"},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := doJSON(t, router, http.MethodPost, "/api/orders",
		gin.H{"symbol": "BTC", "side": "BUY", "type": "MARKET", "quantity": "1", "client_order_id": "C-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decodeOrder(t, w)
	assert.Equal(t, model.OrderStatusFilled, order.Status)
	assert.True(t, order.AvgFillPrice.Equal(d("100")))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = doJSON(t, router, http.MethodPost, "/api/orders",
		gin.H{"symbol": "BTC", "side": "BUY", "type": "MARKET", "quantity": "50"})
	var rejected RejectedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rejected))
	assert.Equal(t, riskrule.RulePositionLimit, rejected.RiskCheck.Rule)
	assert.Contains(t, rejected.Error, "Position limit exceeded")
}

func TestOrderLifecycle(t *testing.T) {
	router, o := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/orders",
		gin.H{"symbol": "BTC", "side": "BUY", "type": "LIMIT", "quantity": "1", "price": "90", "client_order_id": "L-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decodeOrder(t, w)
	assert.Equal(t, model.OrderStatusSubmitted, order.Status)

	// lookup by client order id
	w = doJSON(t, router, http.MethodGet, "/api/orders/L-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.OrderID, decodeOrder(t, w).OrderID)

	w = doJSON(t, router, http.MethodGet, "/api/orders?symbol=BTC", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)

	w = doJSON(t, router, http.MethodPatch, "/api/orders/"+order.OrderID, gin.H{"quantity": "2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeOrder(t, w).Quantity.Equal(d("2")))

	w = doJSON(t, router, http.MethodPatch, "/api/orders/"+order.OrderID, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/orders/"+order.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.OrderStatusCancelled, decodeOrder(t, w).Status)

	w = doJSON(t, router, http.MethodDelete, "/api/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/orders/"+order.OrderID, gin.H{"price": "91"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)

	assert.Len(t, o.GetHistory(), 1)
}

func TestStatisticsAndRisk(t *testing.T) {
	router, o := setupRouter(t)
	o.Submit(context.Background(), model.OrderRequest{
		Symbol: "BTC", Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Quantity: d("3"),
	})

	w := doJSON(t, router, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Filled)
	assert.True(t, stats.TotalVolume.Equal(d("3")))

	w = doJSON(t, router, http.MethodGet, "/api/risk/exposure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var exp riskrule.Exposure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))
	assert.True(t, exp.Positions["BTC"].Equal(d("3")))

	w = doJSON(t, router, http.MethodPost, "/api/risk/pnl", gin.H{"strategy_id": "momentum", "delta": "-250.5"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		DailyPnL decimal.Decimal `json:"daily_pnl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.DailyPnL.Equal(d("-250.5")))

	w = doJSON(t, router, http.MethodPost, "/api/risk/pnl", gin.H{"delta": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
