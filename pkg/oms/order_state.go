package oms

import (
	"sort"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/joripage/oms-core/pkg/oms/algo"
	"github.com/joripage/oms-core/pkg/oms/model"
	riskrule "github.com/joripage/oms-core/pkg/oms/risk_rule"
	"github.com/shopspring/decimal"
)

// childOrder is a slice handed to the gateway and not yet fully filled.
type childOrder struct {
	req          model.OrderRequest
	venueOrderID string
	filled       decimal.Decimal
}

// orderState is everything the OMS tracks for one parent order. mu guards
// all fields except the channels and archivedAt, which OMS.mu guards.
type orderState struct {
	mu sync.Mutex

	order       *model.Order
	reservation *riskrule.Reservation
	planner     algo.Planner
	scheduled   bool
	paced       bool // next slice waits for the previous one to fill
	template    model.OrderRequest

	pending    *deque.Deque[model.OrderRequest]
	planned    int
	amends     int
	dispatched decimal.Decimal
	inflight   map[string]*childOrder

	startedAt time.Time
	deadline  time.Time
	running   bool

	wake       chan struct{}
	halt       chan struct{}
	done       chan struct{}
	finishOnce sync.Once
	doneOnce   sync.Once

	archivedAt time.Time
}

func newOrderState(order *model.Order, r *riskrule.Reservation, planner algo.Planner, plan []model.OrderRequest, now time.Time) *orderState {
	st := &orderState{
		order:       order,
		reservation: r,
		planner:     planner,
		scheduled:   algo.Scheduled(planner),
		paced:       isIceberg(planner),
		pending:     &deque.Deque[model.OrderRequest]{},
		planned:     len(plan),
		inflight:    make(map[string]*childOrder),
		startedAt:   now,
		wake:        make(chan struct{}, 1),
		halt:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, c := range plan {
		st.pending.PushBack(c)
	}
	if len(plan) > 0 {
		st.template = plan[0]
	}
	return st
}

// touch bumps the revision for a change about to be published and
// returns the snapshot to publish.
func (st *orderState) touch(now time.Time) model.Order {
	st.order.Revision++
	st.order.UpdatedTime = now
	return st.order.Snapshot()
}

func isIceberg(p algo.Planner) bool {
	_, ok := p.(algo.Iceberg)
	return ok
}

func (st *orderState) signal() {
	select {
	case st.wake <- struct{}{}:
	default:
	}
}

func (st *orderState) closeDone() {
	st.doneOnce.Do(func() { close(st.done) })
}

// resting lists the venue ids of slices still working at the venue,
// falling back to the child client id when the venue never acked.
func (st *orderState) resting() []string {
	ids := make([]string, 0, len(st.inflight))
	for id, c := range st.inflight {
		if c.venueOrderID != "" {
			id = c.venueOrderID
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// replan computes undispatched slices adding up to remaining. The state
// is left untouched until commitPlan.
func (st *orderState) replan(remaining decimal.Decimal) []model.OrderRequest {
	if !remaining.IsPositive() {
		return nil
	}

	if p, ok := st.planner.(algo.Iceberg); ok {
		parent := st.order.Snapshot()
		parent.Quantity = remaining
		next := p.Plan(parent, algo.PlanContext{})
		for i := range next {
			next[i].ClientOrderID = algo.ChildID(st.order.ClientOrderID, p.Name(), st.planned+i)
		}
		return next
	}

	if st.pending.Len() == 0 {
		c := st.template
		c.Quantity = remaining
		c.ScheduledOffset = 0
		c.ClientOrderID = algo.ChildID(st.order.ClientOrderID, "amend", st.amends)
		return []model.OrderRequest{c}
	}
	old := make([]model.OrderRequest, st.pending.Len())
	for i := range old {
		old[i] = st.pending.At(i)
	}
	return resize(old, remaining)
}

// commitPlan replaces the undispatched slices with next, as computed by
// replan.
func (st *orderState) commitPlan(next []model.OrderRequest) {
	if _, ok := st.planner.(algo.Iceberg); ok {
		st.planned += len(next)
	} else if st.pending.Len() == 0 && len(next) > 0 {
		st.amends++
	}
	st.pending.Clear()
	for _, c := range next {
		st.pending.PushBack(c)
	}
}

func childIDs(children []model.OrderRequest) []string {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ClientOrderID
	}
	return ids
}

// reprice moves priced undispatched slices to price.
func (st *orderState) reprice(price decimal.Decimal) {
	for i := 0; i < st.pending.Len(); i++ {
		c := st.pending.At(i)
		if c.Price.IsPositive() {
			c.Price = price
			st.pending.Set(i, c)
		}
	}
	if st.template.Price.IsPositive() {
		st.template.Price = price
	}
}

// resize scales slices proportionally to a new total, folding the
// residual into the last one.
func resize(slices []model.OrderRequest, total decimal.Decimal) []model.OrderRequest {
	oldTotal := algo.Sum(slices)
	out := make([]model.OrderRequest, len(slices))
	allocated := decimal.Zero
	for i, c := range slices {
		if i == len(slices)-1 {
			c.Quantity = total.Sub(allocated)
		} else {
			c.Quantity = c.Quantity.Mul(total).Div(oldTotal)
		}
		allocated = allocated.Add(c.Quantity)
		out[i] = c
	}
	return out
}
