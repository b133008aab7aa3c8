package oms

import (
	"context"
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// kick dispatches the next slice if it is due and starts a scheduler for
// whatever is left. It reports whether a scheduler was started.
func (s *OMS) kick(ctx context.Context, st *orderState) bool {
	if s.dueNow(st) {
		s.dispatchNext(ctx, st)
	}

	st.mu.Lock()
	start := !st.running && !st.order.IsTerminal() &&
		(st.pending.Len() > 0 || !st.deadline.IsZero())
	select {
	case <-s.stopCh:
		start = false
	default:
	}
	if start {
		st.running = true
	}
	st.mu.Unlock()

	if start {
		s.wg.Add(1)
		go s.runSlices(context.WithoutCancel(ctx), st)
	}
	return start
}

func (s *OMS) dueNow(st *orderState) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.order.IsTerminal() || st.pending.Len() == 0 {
		return false
	}
	if st.scheduled {
		due := st.startedAt.Add(s.scale(st.pending.Front().ScheduledOffset))
		return !due.After(s.now())
	}
	return !st.paced || len(st.inflight) == 0
}

// runSlices is the per-order scheduler. Scheduled slices wait for their
// offset; iceberg slices wait for the previous one to fill. An order with
// a deadline that is still working when it passes expires.
func (s *OMS) runSlices(ctx context.Context, st *orderState) {
	defer s.wg.Done()
	defer st.closeDone()

	for {
		st.mu.Lock()
		if st.order.IsTerminal() {
			st.running = false
			st.mu.Unlock()
			return
		}

		now := s.now()
		if !st.deadline.IsZero() && !now.Before(st.deadline) {
			st.mu.Unlock()
			s.terminate(ctx, st, model.OrderStatusExpired, "algorithm duration elapsed")
			continue
		}

		wait, fillWait := time.Duration(0), false
		switch {
		case st.pending.Len() == 0:
			if st.deadline.IsZero() {
				st.running = false
				st.mu.Unlock()
				return
			}
			wait = st.deadline.Sub(now)
		case st.scheduled:
			wait = st.startedAt.Add(s.scale(st.pending.Front().ScheduledOffset)).Sub(now)
		case st.paced && len(st.inflight) > 0:
			fillWait = true
		}
		st.mu.Unlock()

		if wait > 0 || fillWait {
			if !s.sleep(st, wait) {
				return
			}
			continue
		}
		s.dispatchNext(ctx, st)
	}
}

// sleep waits for the timer, a wake-up or a fill. It returns false when
// the order halted or the OMS is stopping.
func (s *OMS) sleep(st *orderState, wait time.Duration) bool {
	var timerC <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-timerC:
	case <-st.wake:
	case <-st.halt:
		return false
	case <-s.stopCh:
		return false
	}
	return true
}

// dispatchNext sends the front slice to the gateway and books whatever
// the gateway executed synchronously.
func (s *OMS) dispatchNext(ctx context.Context, st *orderState) {
	st.mu.Lock()
	if st.order.IsTerminal() || st.pending.Len() == 0 {
		st.mu.Unlock()
		return
	}
	child := st.pending.PopFront()
	st.dispatched = st.dispatched.Add(child.Quantity)
	st.inflight[child.ClientOrderID] = &childOrder{req: child}

	var submitted *model.Order
	if st.order.Status == model.OrderStatusPending {
		now := s.now()
		if err := st.order.Transition(model.OrderStatusSubmitted, now); err == nil {
			snap := st.touch(now)
			submitted = &snap
		}
	}
	orderID := st.order.OrderID
	st.mu.Unlock()

	if submitted != nil {
		s.notify(ctx, *submitted)

		// a subscriber may have cancelled on SUBMITTED
		st.mu.Lock()
		halted := st.order.IsTerminal()
		if halted {
			delete(st.inflight, child.ClientOrderID)
		}
		st.mu.Unlock()
		if halted {
			return
		}
	}

	logger := s.logger.With(
		zap.String("order_id", orderID),
		zap.String("child_id", child.ClientOrderID))
	logger.Debug(ctx, "dispatching slice",
		zap.String("quantity", child.Quantity.String()),
		zap.String("type", string(child.Type)))

	exec, err := s.gateway.PlaceOrder(ctx, child)
	if err != nil {
		logger.Error(ctx, "place order failed", zap.Error(err))
		s.fail(ctx, st, child.ClientOrderID, err)
		return
	}
	s.applyExecution(ctx, st, child.ClientOrderID, exec)
}

// applyExecution books one venue execution against its parent. A missing
// price falls back to the slice's limit price, then to market data.
func (s *OMS) applyExecution(ctx context.Context, st *orderState, childID string, exec model.Execution) {
	st.mu.Lock()
	c, known := st.inflight[childID]
	if known && exec.VenueOrderID != "" {
		c.venueOrderID = exec.VenueOrderID
	}
	if !exec.Quantity.IsPositive() {
		st.mu.Unlock()
		return
	}
	price := exec.Price
	if !price.IsPositive() && known {
		price = c.req.Price
	}
	symbol, orderID := st.order.Symbol, st.order.OrderID
	st.mu.Unlock()

	if !price.IsPositive() && s.feed != nil {
		if last, ok := s.feed.LastPrice(symbol); ok {
			price = last
		}
	}
	if !price.IsPositive() {
		s.logger.Error(ctx, "execution without price",
			zap.String("order_id", orderID),
			zap.String("child_id", childID),
			zap.String("quantity", exec.Quantity.String()))
		s.fail(ctx, st, childID, errNoExecutionPrice)
		return
	}

	snap, filled := s.bookFill(st, childID, exec.Quantity, price, exec.Commission)
	if filled {
		s.finish(st)
	}

	s.logger.Info(ctx, "fill applied",
		zap.String("order_id", orderID),
		zap.String("child_id", childID),
		zap.String("quantity", exec.Quantity.String()),
		zap.String("price", price.String()),
		zap.String("status", string(snap.Status)))

	s.notifyFill(ctx, snap, exec.Quantity, price)
	s.notify(ctx, snap)
}

// bookFill panics on an overfill; the lock is released on the way out.
func (s *OMS) bookFill(st *orderState, childID string, qty, price, commission decimal.Decimal) (model.Order, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := s.now()
	st.order.ApplyFill(qty, price, commission, now)
	s.risk.Fill(st.reservation, qty)

	if c, ok := st.inflight[childID]; ok {
		c.filled = c.filled.Add(qty)
		if c.filled.GreaterThanOrEqual(c.req.Quantity) {
			delete(st.inflight, childID)
		}
	}
	st.signal()

	return st.touch(now), st.order.Status == model.OrderStatusFilled
}

func (s *OMS) fail(ctx context.Context, st *orderState, childID string, err error) {
	st.mu.Lock()
	delete(st.inflight, childID)
	st.mu.Unlock()

	if !s.terminate(ctx, st, model.OrderStatusFailed, err.Error()) {
		s.logger.Warn(ctx, "gateway error on terminal order",
			zap.String("child_id", childID), zap.Error(err))
	}
}

// terminate moves a working order to a terminal status, drops its
// undispatched slices and best-effort cancels the ones still resting.
func (s *OMS) terminate(ctx context.Context, st *orderState, status model.OrderStatus, reason string) bool {
	st.mu.Lock()
	if st.order.IsTerminal() {
		st.mu.Unlock()
		return false
	}
	now := s.now()
	if err := st.order.Transition(status, now); err != nil {
		st.mu.Unlock()
		s.logger.Error(ctx, "terminate", zap.String("order_id", st.order.OrderID), zap.Error(err))
		return false
	}
	if reason != "" {
		st.order.Reason = reason
	}
	st.pending.Clear()
	resting := st.resting()
	snap := st.touch(now)
	st.mu.Unlock()

	s.finish(st)

	for _, id := range resting {
		if err := s.gateway.CancelOrder(ctx, id); err != nil {
			s.logger.Warn(ctx, "cancel slice at venue failed",
				zap.String("order_id", snap.OrderID),
				zap.String("venue_order_id", id),
				zap.Error(err))
		}
	}

	s.notify(ctx, snap)
	return true
}

// finish runs once per order when it turns terminal.
func (s *OMS) finish(st *orderState) {
	st.finishOnce.Do(func() {
		close(st.halt)
		s.risk.Release(st.reservation)
		s.archive(st)
	})
}
