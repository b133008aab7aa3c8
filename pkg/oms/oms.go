package oms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/oms-core/pkg/logging"
	"github.com/joripage/oms-core/pkg/oms/algo"
	eventstore "github.com/joripage/oms-core/pkg/oms/event_store"
	"github.com/joripage/oms-core/pkg/oms/model"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ruleValidation = "validation"
	ruleDuplicate  = "duplicate"
)

// OMS sequences risk check, algorithm planning, child dispatch and fill
// application for every order it accepts. It owns the order registry;
// the risk engine owns exposure.
type OMS struct {
	gateway    ExchangeGateway
	risk       *riskrule.Engine
	feed       MarketDataFeed
	eventstore eventstore.EventStore
	logger     *logging.Logger

	algoCfg          algo.Config
	sliceInterval    time.Duration
	historyRetention time.Duration
	cleanInterval    time.Duration
	now              func() time.Time

	mu      sync.RWMutex
	active  map[string]*orderState
	history map[string]*orderState

	cbMu            sync.RWMutex
	updateCallbacks []OrderUpdateFunc
	fillCallbacks   []FillFunc
	purgeCallbacks  []PurgeFunc

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

type Option func(*OMS)

func WithMarketData(feed MarketDataFeed) Option {
	return func(s *OMS) { s.feed = feed }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *OMS) { s.logger = l }
}

// WithSliceInterval sets the wall-clock length of one scheduled slice
// unit. TWAP deadlines scale with it.
func WithSliceInterval(d time.Duration) Option {
	return func(s *OMS) {
		if d > 0 {
			s.sliceInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OMS) { s.now = now }
}

// WithDefaults sets fallbacks for algorithm parameters left unset.
func WithDefaults(cfg algo.Config) Option {
	return func(s *OMS) { s.algoCfg = cfg }
}

func WithEventStore(es eventstore.EventStore) Option {
	return func(s *OMS) { s.eventstore = es }
}

// WithHistoryRetention purges terminal orders from history once they are
// older than retention. Zero keeps history forever.
func WithHistoryRetention(retention, interval time.Duration) Option {
	return func(s *OMS) {
		s.historyRetention = retention
		s.cleanInterval = interval
	}
}

func NewOMS(gateway ExchangeGateway, risk *riskrule.Engine, opts ...Option) *OMS {
	s := &OMS{
		gateway:       gateway,
		risk:          risk,
		eventstore:    eventstore.NewInMemoryEventStore(),
		logger:        logging.NewLogger(logging.INFO),
		sliceInterval: algo.SliceUnit,
		cleanInterval: time.Minute,
		now:           time.Now,
		active:        make(map[string]*orderState),
		history:       make(map[string]*orderState),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs background maintenance until ctx is done or Stop is called.
func (s *OMS) Start(ctx context.Context) {
	if s.historyRetention <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.startCleaner(ctx, s.cleanInterval)
	}()
}

// Stop halts slice schedulers and maintenance, then waits for them.
// Orders keep their current state.
func (s *OMS) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Wait blocks until the order's slice scheduler has finished.
func (s *OMS) Wait(ctx context.Context, orderID string) error {
	st := s.getState(orderID)
	if st == nil {
		return ErrOrderIDNotFound
	}
	select {
	case <-st.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OMS) Submit(ctx context.Context, req model.OrderRequest) *model.Order {
	order, _ := s.SubmitWithResult(ctx, req)
	return order
}

// SubmitWithResult is Submit that also returns the check outcome. On
// rejection the order is nil and a REJECTED snapshot without an order id
// is published to update callbacks.
func (s *OMS) SubmitWithResult(ctx context.Context, req model.OrderRequest) (*model.Order, model.RiskCheckResult) {
	req.Normalize()
	now := s.now()

	if err := req.Validate(); err != nil {
		return s.reject(ctx, &req, model.Fail(ruleValidation, err.Error(), 0))
	}

	order := model.NewOrder(uuid.NewString(), &req, now)
	planner := algo.Select(&req, s.algoCfg)
	if err := algo.CheckSlices(planner, req.Quantity); err != nil {
		return s.reject(ctx, &req, model.Fail(ruleValidation, err.Error(), 0))
	}
	children := s.plan(planner, order, now)

	// id claim, reservation and registration form one step. Slice ids
	// route venue fills, so they must not belong to another order either.
	s.mu.Lock()
	if err := s.eventstore.ClaimOrder(order.OrderID, req.ClientOrderID, childIDs(children)); err != nil {
		s.mu.Unlock()
		return s.reject(ctx, &req, model.Fail(ruleDuplicate, err.Error(), 0))
	}
	res, reservation := s.risk.Reserve(&req)
	if !res.Passed {
		s.eventstore.DeleteChainByOrderID(order.OrderID)
		s.mu.Unlock()
		return s.reject(ctx, &req, res)
	}

	st := newOrderState(order, reservation, planner, children, now)
	if twap, ok := planner.(algo.TWAP); ok {
		st.deadline = now.Add(s.scale(twap.Duration))
	}
	s.active[order.OrderID] = st
	s.mu.Unlock()

	logger := s.logger.With(zap.String("order_id", order.OrderID), zap.String("client_order_id", order.ClientOrderID))
	logger.Info(ctx, "order accepted",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("quantity", order.Quantity.String()),
		zap.String("algo", planner.Name()),
		zap.Int("slices", len(children)))

	st.mu.Lock()
	snap := st.touch(now)
	st.mu.Unlock()
	s.notify(ctx, snap)

	if !s.kick(ctx, st) {
		st.closeDone()
	}

	st.mu.Lock()
	snap = st.order.Snapshot()
	st.mu.Unlock()
	return &snap, res
}

func (s *OMS) reject(ctx context.Context, req *model.OrderRequest, res model.RiskCheckResult) (*model.Order, model.RiskCheckResult) {
	if res.Timestamp.IsZero() {
		res.Timestamp = s.now()
	}
	s.logger.Warn(ctx, "order rejected",
		zap.String("client_order_id", req.ClientOrderID),
		zap.String("symbol", req.Symbol),
		zap.String("rule", res.Rule),
		zap.String("reason", res.Reason))

	s.notify(ctx, *model.RejectedOrder(req, res.Reason, res.Timestamp))
	return nil, res
}

func (s *OMS) plan(planner algo.Planner, order *model.Order, now time.Time) []model.OrderRequest {
	pc := algo.PlanContext{Now: now}
	if _, ok := planner.(algo.VWAP); ok && s.feed != nil {
		pc.VolumeProfile = s.feed.VolumeProfile(order.Symbol)
	}
	return planner.Plan(order.Snapshot(), pc)
}

// scale converts a nominal slice offset into wall-clock time.
func (s *OMS) scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * float64(s.sliceInterval) / float64(algo.SliceUnit))
}

// Cancel abandons undispatched slices, best-effort cancels in-flight ones
// and moves the order to history. Fills arriving later are still applied.
func (s *OMS) Cancel(ctx context.Context, orderID string) bool {
	st := s.getState(orderID)
	if st == nil {
		s.logger.Warn(ctx, "cancel: order not found", zap.String("order_id", orderID))
		return false
	}
	if !s.terminate(ctx, st, model.OrderStatusCancelled, "") {
		s.logger.Info(ctx, "cancel: order already terminal",
			zap.String("order_id", orderID), zap.Error(errInvalidOrderStatus))
		return false
	}
	s.logger.Info(ctx, "order cancelled", zap.String("order_id", orderID))
	return true
}

// Modify amends quantity and/or price in place. Only orders without fills
// qualify; quantity cannot drop below what was already sent to the venue.
// Undispatched slices are re-planned around the new size. A new price
// applies to undispatched slices only: slices already resting at the
// venue keep the price they were placed with.
func (s *OMS) Modify(ctx context.Context, orderID string, newQty, newPrice *decimal.Decimal) bool {
	logger := s.logger.With(zap.String("order_id", orderID))

	st := s.getState(orderID)
	if st == nil {
		logger.Warn(ctx, "modify: order not found")
		return false
	}
	if newQty == nil && newPrice == nil {
		return false
	}
	if (newQty != nil && !newQty.IsPositive()) || (newPrice != nil && !newPrice.IsPositive()) {
		logger.Warn(ctx, "modify rejected", zap.Error(errInvalidModify))
		return false
	}

	st.mu.Lock()
	if !st.order.CanModify() {
		st.mu.Unlock()
		logger.Warn(ctx, "modify rejected", zap.Error(errInvalidOrderStatus),
			zap.String("status", string(st.order.Status)))
		return false
	}
	if newQty != nil {
		if newQty.LessThan(st.dispatched) {
			st.mu.Unlock()
			logger.Warn(ctx, "modify rejected", zap.Error(errBelowDispatched),
				zap.String("dispatched", st.dispatched.String()))
			return false
		}
		remaining := newQty.Sub(st.dispatched)
		if err := algo.CheckSlices(st.planner, remaining); err != nil {
			st.mu.Unlock()
			logger.Warn(ctx, "modify rejected", zap.Error(err))
			return false
		}
		next := st.replan(remaining)
		if err := s.eventstore.TrackChildOrders(st.order.OrderID, childIDs(next)); err != nil {
			st.mu.Unlock()
			logger.Warn(ctx, "modify rejected", zap.Error(err))
			return false
		}
		if res := s.risk.Amend(st.reservation, *newQty); !res.Passed {
			st.mu.Unlock()
			logger.Warn(ctx, "modify rejected by risk", zap.String("reason", res.Reason))
			return false
		}
		st.order.Quantity = *newQty
		st.commitPlan(next)
	}
	if newPrice != nil {
		st.order.Price = *newPrice
		st.reprice(*newPrice)
	}
	snap := st.touch(s.now())
	running := st.running
	st.mu.Unlock()

	logger.Info(ctx, "order modified",
		zap.String("quantity", snap.Quantity.String()),
		zap.String("price", snap.Price.String()))
	s.notify(ctx, snap)

	if running {
		st.signal()
	} else {
		s.kick(ctx, st)
	}
	return true
}

// ReportExecution applies a fill the venue reported after PlaceOrder
// returned, keyed by the child's client order id.
func (s *OMS) ReportExecution(ctx context.Context, clientOrderID string, exec model.Execution) error {
	st := s.getState(s.eventstore.GetOrderID(clientOrderID))
	if st == nil {
		return ErrOrderIDNotFound
	}
	s.applyExecution(ctx, st, clientOrderID, exec)
	return nil
}

func (s *OMS) OnOrderUpdate(cb OrderUpdateFunc) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.updateCallbacks = append(s.updateCallbacks, cb)
}

func (s *OMS) OnFill(cb FillFunc) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.fillCallbacks = append(s.fillCallbacks, cb)
}

// OnOrderPurged registers cb for orders dropped by the history cleaner.
func (s *OMS) OnOrderPurged(cb PurgeFunc) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.purgeCallbacks = append(s.purgeCallbacks, cb)
}

// notify records the event and runs update callbacks in registration
// order, in the caller's goroutine.
func (s *OMS) notify(ctx context.Context, snap model.Order) {
	s.eventstore.AddEvent(model.NewOrderEvent(snap))

	s.cbMu.RLock()
	cbs := append([]OrderUpdateFunc(nil), s.updateCallbacks...)
	s.cbMu.RUnlock()

	for _, cb := range cbs {
		s.safeCall(ctx, "order update", snap.OrderID, func() { cb(snap) })
	}
}

func (s *OMS) notifyFill(ctx context.Context, snap model.Order, qty, price decimal.Decimal) {
	s.cbMu.RLock()
	cbs := append([]FillFunc(nil), s.fillCallbacks...)
	s.cbMu.RUnlock()

	for _, cb := range cbs {
		s.safeCall(ctx, "fill", snap.OrderID, func() { cb(snap, qty, price) })
	}
}

// safeCall keeps a misbehaving subscriber from taking the OMS down.
func (s *OMS) safeCall(ctx context.Context, kind, orderID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "callback panicked",
				zap.String("callback", kind),
				zap.String("order_id", orderID),
				zap.Any("panic", r))
		}
	}()
	fn()
}
