// Package execution owns the order lifecycle: submission, venue routing,
// fills, cancellation, and expiry (spec §3.G). Grounded on
// alphaforge.model.orders.Order's apply_fill/cancel/expire methods (now
// implemented on pkg/types.Order) and on the teacher's sharded-mutex,
// RWMutex-indexed map pattern in internal/engine/engine.go and
// internal/market/book.go.
package execution

import (
	"fmt"
	"log/slog"
	"sync"

	"tradecore/internal/bus"
	"tradecore/internal/clock"
	"tradecore/internal/lifecycle"
	"tradecore/pkg/tcerr"
	"tradecore/pkg/types"
)

// Router resolves the venue responsible for routing an instrument's
// orders. NoRoute is returned by Submit when no entry exists.
type Router struct {
	mu     sync.RWMutex
	routes map[types.InstrumentId]string
}

// NewRouter constructs an empty routing table.
func NewRouter() *Router {
	return &Router{routes: make(map[types.InstrumentId]string)}
}

// SetRoute installs or replaces the venue for instrument.
func (r *Router) SetRoute(instrument types.InstrumentId, venue string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[instrument] = venue
}

// Resolve returns the venue for instrument, or ErrNoRoute.
func (r *Router) Resolve(instrument types.InstrumentId) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	venue, ok := r.routes[instrument]
	if !ok {
		return "", fmt.Errorf("%w: instrument %s", tcerr.ErrNoRoute, instrument)
	}
	return venue, nil
}

// orderLock pairs an order with the mutex serializing access to it, so
// that submission, fills, and cancellation for one order never race each
// other while unrelated orders proceed concurrently.
type orderLock struct {
	mu    sync.Mutex
	order *types.Order
}

// Statistics reports execution engine throughput and outcome counters
// (spec §4.G). FillRate is derived, not stored: OrdersFilled /
// OrdersSubmitted, 0 when OrdersSubmitted is 0.
type Statistics struct {
	OrdersSubmitted  uint64
	OrdersFilled     uint64
	OrdersCancelled  uint64
	OrdersRejected   uint64
	TotalFillVolume  types.Quantity
	TotalCommission  types.Price
}

// FillRate returns OrdersFilled / OrdersSubmitted, or 0 when no orders
// have been submitted.
func (s Statistics) FillRate() float64 {
	if s.OrdersSubmitted == 0 {
		return 0
	}
	return float64(s.OrdersFilled) / float64(s.OrdersSubmitted)
}

type statCounters struct {
	mu              sync.Mutex
	ordersSubmitted uint64
	ordersFilled    uint64
	ordersCancelled uint64
	ordersRejected  uint64
	totalFillVolume types.Quantity
	totalCommission types.Price
	volumeSet       bool
	commissionSet   bool
}

// Engine is the execution engine. Safe for concurrent use once started.
type Engine struct {
	*lifecycle.Base

	clock  clock.Clock
	bus    *bus.Bus
	router *Router
	log    *slog.Logger

	mu           sync.RWMutex
	byClientID   map[string]*orderLock
	byStrategy   map[string][]string // strategy id -> client order ids
	byInstrument map[string][]string // instrument id -> client order ids

	stats statCounters
}

// New constructs an execution Engine routing orders via router and
// publishing lifecycle events on b.
func New(clk clock.Clock, b *bus.Bus, router *Router, log *slog.Logger) *Engine {
	e := &Engine{
		clock: clk, bus: b, router: router,
		log:          log.With("component", "execution-engine"),
		byClientID:   make(map[string]*orderLock),
		byStrategy:   make(map[string][]string),
		byInstrument: make(map[string][]string),
	}
	e.Base = lifecycle.NewBase("execution-engine", log, lifecycle.Hooks{})
	return e
}

// Submit registers a new order in INITIALIZED status, resolves its venue
// route, and transitions it through PENDING_NEW -> ACCEPTED, publishing
// OrderSubmitted and OrderAccepted (or OrderRejected if no route exists)
// on "orders.{strategy}".
func (e *Engine) Submit(order types.Order, tsNanos uint64) error {
	key := order.ClientOrderID.String()
	ol := &orderLock{order: &order}

	// Check and reserve the client order id in one critical section under
	// e.mu before the submission is counted: a resubmission under an
	// already-known id is rejected here and never reaches the stats
	// increment below, even when racing another Submit for the same id.
	e.mu.Lock()
	if _, exists := e.byClientID[key]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: order %s already submitted", tcerr.ErrValidation, key)
	}
	e.byClientID[key] = ol
	e.mu.Unlock()

	e.stats.mu.Lock()
	e.stats.ordersSubmitted++
	e.stats.mu.Unlock()

	ol.mu.Lock()
	defer ol.mu.Unlock()

	if _, err := e.router.Resolve(order.Instrument); err != nil {
		ol.order.Status = types.OrderStatusRejected
		e.publish(types.NewOrderEvent(types.EventOrderRejected, *ol.order, tsNanos))
		e.stats.mu.Lock()
		e.stats.ordersRejected++
		e.stats.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.byStrategy[order.StrategyID.String()] = append(e.byStrategy[order.StrategyID.String()], key)
	e.byInstrument[order.Instrument.String()] = append(e.byInstrument[order.Instrument.String()], key)
	e.mu.Unlock()

	e.publish(types.NewOrderEvent(types.EventOrderSubmitted, *ol.order, tsNanos))

	if err := ol.order.Transition(types.OrderStatusPendingNew, tsNanos); err != nil {
		return err
	}
	if err := ol.order.Transition(types.OrderStatusAccepted, tsNanos); err != nil {
		return err
	}
	e.publish(types.NewOrderEvent(types.EventOrderAccepted, *ol.order, tsNanos))
	return nil
}

func (e *Engine) lockFor(clientOrderID string) (*orderLock, error) {
	e.mu.RLock()
	ol, ok := e.byClientID[clientOrderID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: order %s", tcerr.ErrNotFound, clientOrderID)
	}
	return ol, nil
}

// ApplyFill applies fill to the order identified by clientOrderID,
// serialized against any other concurrent operation on the same order so
// fills are applied strictly in the order this method is called, and
// publishes OrderFilled.
func (e *Engine) ApplyFill(clientOrderID string, fill types.OrderFill) error {
	ol, err := e.lockFor(clientOrderID)
	if err != nil {
		return err
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()

	if err := ol.order.ApplyFill(fill); err != nil {
		return err
	}
	e.publish(types.NewFillEvent(*ol.order, fill, fill.TsEventNanos))

	e.stats.mu.Lock()
	if ol.order.Status == types.OrderStatusFilled {
		e.stats.ordersFilled++
	}
	v, verr := addQuantity(e.stats.totalFillVolume, e.stats.volumeSet, fill.Size)
	if verr == nil {
		e.stats.totalFillVolume = v
		e.stats.volumeSet = true
	}
	c, cerr := addPrice(e.stats.totalCommission, e.stats.commissionSet, fill.Commission)
	if cerr == nil {
		e.stats.totalCommission = c
		e.stats.commissionSet = true
	}
	e.stats.mu.Unlock()
	if verr != nil {
		e.log.Warn("fill volume precision mismatch, dropped from running total",
			"order", clientOrderID, "error", verr)
	}
	if cerr != nil {
		e.log.Warn("commission precision mismatch, dropped from running total",
			"order", clientOrderID, "error", cerr)
	}
	return nil
}

// HandleFill is the spec.md §6 ingress call name for ApplyFill.
func (e *Engine) HandleFill(clientOrderID string, fill types.OrderFill) error {
	return e.ApplyFill(clientOrderID, fill)
}

// addQuantity sums running into next, treating an unset running total as
// next's own precision (nothing accumulated yet) rather than failing on
// the first fill.
func addQuantity(running types.Quantity, set bool, next types.Quantity) (types.Quantity, error) {
	if !set {
		return next, nil
	}
	return running.Add(next)
}

func addPrice(running types.Price, set bool, next types.Price) (types.Price, error) {
	if next.IsZero() && next.Precision() == 0 {
		return running, nil
	}
	if !set {
		return next, nil
	}
	return running.Add(next)
}

// Cancel requests cancellation of clientOrderID. It is rejected with
// ErrOrderInvalidTransition for orders already in a terminal state; an
// order in a working state moves through PENDING_CANCEL to CANCELED,
// publishing OrderCanceled. There is no external venue in this engine to
// reject the cancel asynchronously, so the transition completes
// synchronously, matching Submit's synchronous accept.
func (e *Engine) Cancel(clientOrderID string, tsNanos uint64) error {
	ol, err := e.lockFor(clientOrderID)
	if err != nil {
		return err
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()

	if err := ol.order.Transition(types.OrderStatusPendingCancel, tsNanos); err != nil {
		return err
	}
	if err := ol.order.Transition(types.OrderStatusCanceled, tsNanos); err != nil {
		return err
	}
	e.publish(types.NewOrderEvent(types.EventOrderCanceled, *ol.order, tsNanos))
	e.stats.mu.Lock()
	e.stats.ordersCancelled++
	e.stats.mu.Unlock()
	return nil
}

// Modify requests a quantity and/or price change on clientOrderID.
// newQty, if given, must exceed the order's filled quantity (spec
// §4.G); the order moves through PENDING_UPDATE and back to its prior
// working status, publishing an OrderAccepted event that carries the
// updated order (there is no separate "modified" event kind, and the
// prior quantity/price are not included).
func (e *Engine) Modify(clientOrderID string, newQty *types.Quantity, newPrice *types.Price, tsNanos uint64) error {
	ol, err := e.lockFor(clientOrderID)
	if err != nil {
		return err
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()

	if newQty != nil && newQty.Cmp(ol.order.FilledQty) <= 0 {
		return fmt.Errorf("%w: new quantity %s must exceed filled quantity %s for order %s",
			tcerr.ErrValidation, newQty, ol.order.FilledQty, clientOrderID)
	}

	priorStatus := ol.order.Status
	if err := ol.order.Transition(types.OrderStatusPendingUpdate, tsNanos); err != nil {
		return err
	}

	if newQty != nil {
		ol.order.Quantity = *newQty
	}
	if newPrice != nil {
		ol.order.Price = *newPrice
	}

	restore := priorStatus
	if restore != types.OrderStatusAccepted && restore != types.OrderStatusPartiallyFilled {
		restore = types.OrderStatusAccepted
	}
	if err := ol.order.Transition(restore, tsNanos); err != nil {
		return err
	}
	e.publish(types.NewOrderEvent(types.EventOrderAccepted, *ol.order, tsNanos))
	return nil
}

// Expire moves the order to EXPIRED and publishes OrderExpired.
func (e *Engine) Expire(clientOrderID string, tsNanos uint64) error {
	ol, err := e.lockFor(clientOrderID)
	if err != nil {
		return err
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()

	if err := ol.order.Transition(types.OrderStatusExpired, tsNanos); err != nil {
		return err
	}
	e.publish(types.NewOrderEvent(types.EventOrderExpired, *ol.order, tsNanos))
	return nil
}

// Order returns a snapshot of the order identified by clientOrderID.
func (e *Engine) Order(clientOrderID string) (types.Order, error) {
	ol, err := e.lockFor(clientOrderID)
	if err != nil {
		return types.Order{}, err
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()
	return *ol.order, nil
}

// OrdersByStrategy returns snapshots of every order submitted by strategyID.
func (e *Engine) OrdersByStrategy(strategyID string) []types.Order {
	e.mu.RLock()
	ids := append([]string(nil), e.byStrategy[strategyID]...)
	e.mu.RUnlock()

	out := make([]types.Order, 0, len(ids))
	for _, id := range ids {
		if o, err := e.Order(id); err == nil {
			out = append(out, o)
		}
	}
	return out
}

// OrdersByInstrument returns snapshots of every order routed for instrument.
func (e *Engine) OrdersByInstrument(instrument string) []types.Order {
	e.mu.RLock()
	ids := append([]string(nil), e.byInstrument[instrument]...)
	e.mu.RUnlock()

	out := make([]types.Order, 0, len(ids))
	for _, id := range ids {
		if o, err := e.Order(id); err == nil {
			out = append(out, o)
		}
	}
	return out
}

// ActiveOrdersCount returns the number of tracked orders not yet in a
// terminal state.
func (e *Engine) ActiveOrdersCount() int {
	e.mu.RLock()
	ids := make([]string, 0, len(e.byClientID))
	for id := range e.byClientID {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if o, err := e.Order(id); err == nil && !o.Status.IsClosed() {
			count++
		}
	}
	return count
}

// Statistics returns a snapshot of the engine's cumulative counters.
func (e *Engine) Statistics() Statistics {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return Statistics{
		OrdersSubmitted: e.stats.ordersSubmitted,
		OrdersFilled:    e.stats.ordersFilled,
		OrdersCancelled: e.stats.ordersCancelled,
		OrdersRejected:  e.stats.ordersRejected,
		TotalFillVolume: e.stats.totalFillVolume,
		TotalCommission: e.stats.totalCommission,
	}
}

func (e *Engine) publish(ev types.Event) {
	if e.bus == nil {
		return
	}
	topic := fmt.Sprintf("orders.%s", subjectStrategy(ev))
	if err := e.bus.Publish(topic, ev); err != nil {
		e.log.Warn("publish order event failed", "topic", topic, "error", err)
	}
}

func subjectStrategy(ev types.Event) string {
	if ev.Order != nil {
		return ev.Order.StrategyID.String()
	}
	return "unknown"
}
