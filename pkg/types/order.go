package types

import (
	"fmt"

	"tradecore/pkg/tcerr"
)

// OrderSide is the buy/sell direction of an order.
type OrderSide uint8

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

func (s OrderSide) String() string {
	if s == OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

// OrderType names the venue order type requested.
type OrderType uint8

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit
)

// TimeInForce controls how long an order remains working.
type TimeInForce uint8

const (
	TimeInForceGTC TimeInForce = iota
	TimeInForceIOC
	TimeInForceFOK
	TimeInForceGTD
)

// OrderStatus is a node in the order lifecycle state machine (spec §3.F):
//
//	INITIALIZED -> PENDING_NEW -> ACCEPTED -> (PARTIALLY_FILLED)* -> FILLED
//	                                        -> CANCELED | EXPIRED | REJECTED
type OrderStatus uint8

const (
	OrderStatusInitialized OrderStatus = iota
	OrderStatusPendingNew
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusRejected
	// OrderStatusPendingCancel and OrderStatusPendingUpdate are the
	// intermediate variants spec.md names alongside the canonical
	// lifecycle: a cancel or modify request dispatched to the venue but
	// not yet acknowledged. Both resolve back to a working state (on
	// reject) or to their terminal/accepted outcome (on ack).
	OrderStatusPendingCancel
	OrderStatusPendingUpdate
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusInitialized:
		return "INITIALIZED"
	case OrderStatusPendingNew:
		return "PENDING_NEW"
	case OrderStatusAccepted:
		return "ACCEPTED"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCanceled:
		return "CANCELED"
	case OrderStatusExpired:
		return "EXPIRED"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusPendingCancel:
		return "PENDING_CANCEL"
	case OrderStatusPendingUpdate:
		return "PENDING_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// IsClosed reports whether the status is terminal.
func (s OrderStatus) IsClosed() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// validOrderTransitions enumerates the legal edges of the order state
// machine. A transition not listed here is rejected with
// ErrOrderInvalidTransition.
var validOrderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusInitialized: {OrderStatusPendingNew: true, OrderStatusRejected: true},
	OrderStatusPendingNew:  {OrderStatusAccepted: true, OrderStatusRejected: true},
	OrderStatusAccepted: {
		OrderStatusPartiallyFilled: true, OrderStatusFilled: true,
		OrderStatusCanceled: true, OrderStatusExpired: true,
		OrderStatusPendingCancel: true, OrderStatusPendingUpdate: true,
	},
	OrderStatusPartiallyFilled: {
		OrderStatusPartiallyFilled: true, OrderStatusFilled: true,
		OrderStatusCanceled: true, OrderStatusExpired: true,
		OrderStatusPendingCancel: true, OrderStatusPendingUpdate: true,
	},
	// PendingCancel/PendingUpdate resolve back to canceled/working state
	// on venue ack/reject; which working state they restore to is
	// decided by the caller (execution.Engine), not by this table, since
	// the table only knows the two candidate destinations are legal.
	OrderStatusPendingCancel: {
		OrderStatusCanceled: true, OrderStatusAccepted: true,
		OrderStatusPartiallyFilled: true, OrderStatusFilled: true,
	},
	OrderStatusPendingUpdate: {
		OrderStatusAccepted: true, OrderStatusPartiallyFilled: true, OrderStatusFilled: true,
	},
}

// CanTransition reports whether moving from s to next is a legal edge of
// the order lifecycle.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	edges, ok := validOrderTransitions[s]
	return ok && edges[next]
}

// OrderFill records one partial or full execution against an order.
type OrderFill struct {
	TradeID           TradeId
	Price             Price
	Size              Quantity
	Commission        Price
	CommissionCurrency string
	Liquidity         LiquiditySide
	TsEventNanos      uint64
}

// LiquiditySide marks whether a fill added or removed book liquidity.
type LiquiditySide uint8

const (
	LiquidityNone LiquiditySide = iota
	LiquidityMaker
	LiquidityTaker
)

// Order is the full lifecycle record for a single client order (spec §3.F).
// AvgPx and FilledQty are maintained by ApplyFill using a running weighted
// average, matching alphaforge.model.orders.Order.apply_fill.
type Order struct {
	ClientOrderID ClientOrderId
	VenueOrderID  VenueOrderId
	StrategyID    StrategyId
	TraderID      TraderId
	Instrument    InstrumentId
	Side          OrderSide
	Type          OrderType
	TimeInForce   TimeInForce
	Quantity      Quantity
	Price         Price // zero value for market orders
	Status        OrderStatus
	FilledQty     Quantity
	AvgPx         Price
	ReduceOnly    bool
	TsInitNanos   uint64
	TsLastNanos   uint64
}

// LeavesQty returns the quantity still open for execution.
func (o Order) LeavesQty() (Quantity, error) {
	return o.Quantity.Sub(o.FilledQty)
}

// IsOpen reports whether the order can still receive fills or be canceled.
func (o Order) IsOpen() bool {
	switch o.Status {
	case OrderStatusAccepted, OrderStatusPartiallyFilled, OrderStatusPendingCancel, OrderStatusPendingUpdate:
		return true
	default:
		return false
	}
}

// Transition moves the order to next, validating the edge against the
// order lifecycle state machine.
func (o *Order) Transition(next OrderStatus, tsNanos uint64) error {
	if !o.Status.CanTransition(next) {
		return fmt.Errorf("%w: order %s cannot move from %s to %s", tcerr.ErrOrderInvalidTransition, o.ClientOrderID, o.Status, next)
	}
	o.Status = next
	o.TsLastNanos = tsNanos
	return nil
}

// ApplyFill records a fill, updating FilledQty and the running weighted
// average price, and transitions to PARTIALLY_FILLED or FILLED depending
// on whether the order is now fully filled.
func (o *Order) ApplyFill(fill OrderFill) error {
	if !o.IsOpen() {
		return fmt.Errorf("%w: order %s is not open for fills (status %s)", tcerr.ErrOrderInvalidTransition, o.ClientOrderID, o.Status)
	}
	if fill.Size.IsZero() || fill.Size.IsNegative() {
		return fmt.Errorf("%w: fill size %s must be positive for order %s", tcerr.ErrValidation, fill.Size, o.ClientOrderID)
	}
	leaves, err := o.LeavesQty()
	if err != nil {
		return err
	}
	if fill.Size.Cmp(leaves) > 0 {
		return fmt.Errorf("%w: fill size %s exceeds leaves qty %s for order %s", tcerr.ErrOrderInvalidTransition, fill.Size, leaves, o.ClientOrderID)
	}

	prevFilled := o.FilledQty
	newFilled, err := prevFilled.Add(fill.Size)
	if err != nil {
		return err
	}

	if prevFilled.IsZero() {
		o.AvgPx = fill.Price
	} else {
		notionalPrev := o.AvgPx.MulQuantity(prevFilled)
		notionalFill := fill.Price.MulQuantity(fill.Size)
		notionalSum, err := notionalPrev.Add(notionalFill)
		if err != nil {
			return err
		}
		avg, err := notionalSum.DivQuantity(newFilled)
		if err != nil {
			return err
		}
		o.AvgPx = avg
	}
	o.FilledQty = newFilled
	o.TsLastNanos = fill.TsEventNanos

	remaining, err := o.LeavesQty()
	if err != nil {
		return err
	}
	if remaining.IsZero() {
		return o.Transition(OrderStatusFilled, fill.TsEventNanos)
	}
	return o.Transition(OrderStatusPartiallyFilled, fill.TsEventNanos)
}
