package types

// EventKind discriminates the tagged union carried on the message bus and
// appended to the event store. New kinds are added as the runtime grows;
// consumers not interested in a kind ignore it.
type EventKind uint8

const (
	EventOrderSubmitted EventKind = iota
	EventOrderAccepted
	EventOrderRejected
	EventOrderCanceled
	EventOrderExpired
	EventOrderFilled
	EventBarClosed
	EventQuoteUpdated
	EventTradeReceived
	EventVenueStatusChanged
)

func (k EventKind) String() string {
	switch k {
	case EventOrderSubmitted:
		return "ORDER_SUBMITTED"
	case EventOrderAccepted:
		return "ORDER_ACCEPTED"
	case EventOrderRejected:
		return "ORDER_REJECTED"
	case EventOrderCanceled:
		return "ORDER_CANCELED"
	case EventOrderExpired:
		return "ORDER_EXPIRED"
	case EventOrderFilled:
		return "ORDER_FILLED"
	case EventBarClosed:
		return "BAR_CLOSED"
	case EventQuoteUpdated:
		return "QUOTE_UPDATED"
	case EventTradeReceived:
		return "TRADE_RECEIVED"
	case EventVenueStatusChanged:
		return "VENUE_STATUS_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// VenueStatus names the trading status of a venue or instrument.
type VenueStatus uint8

const (
	VenueStatusUnknown VenueStatus = iota
	VenueStatusOpen
	VenueStatusClosed
	VenueStatusHalted
)

// Event is the single envelope published on the message bus and recorded
// in the event store. The payload field matching Kind is populated (an
// OrderFilled event carries both Order and Fill); Extra carries fields that don't warrant a dedicated payload type
// yet (adapter-specific metadata, diagnostics).
type Event struct {
	Kind         EventKind
	Subject      string // canonical id of the thing the event is about (order id, instrument id, ...)
	Order        *Order
	Fill         *OrderFill
	Bar          *Bar
	Quote        *QuoteTick
	Trade        *TradeTick
	VenueStatus  VenueStatus
	TsEventNanos uint64
	Extra        map[string]any
}

// NewOrderEvent builds an Event carrying a snapshot of an order, keyed by
// its client order id.
func NewOrderEvent(kind EventKind, order Order, tsNanos uint64) Event {
	o := order
	return Event{Kind: kind, Subject: order.ClientOrderID.String(), Order: &o, TsEventNanos: tsNanos}
}

// NewFillEvent builds an OrderFilled event carrying both the post-fill
// order snapshot and the fill that produced it.
func NewFillEvent(order Order, fill OrderFill, tsNanos uint64) Event {
	o, f := order, fill
	return Event{Kind: EventOrderFilled, Subject: order.ClientOrderID.String(), Order: &o, Fill: &f, TsEventNanos: tsNanos}
}

// NewBarEvent builds a BarClosed event keyed by the bar's instrument.
func NewBarEvent(bar Bar, tsNanos uint64) Event {
	b := bar
	return Event{Kind: EventBarClosed, Subject: bar.Type.Instrument.String(), Bar: &b, TsEventNanos: tsNanos}
}

// NewQuoteEvent builds a QuoteUpdated event keyed by the quote's instrument.
func NewQuoteEvent(q QuoteTick, tsNanos uint64) Event {
	qq := q
	return Event{Kind: EventQuoteUpdated, Subject: q.Instrument.String(), Quote: &qq, TsEventNanos: tsNanos}
}

// NewTradeEvent builds a TradeReceived event keyed by the trade's instrument.
func NewTradeEvent(t TradeTick, tsNanos uint64) Event {
	tt := t
	return Event{Kind: EventTradeReceived, Subject: t.Instrument.String(), Trade: &tt, TsEventNanos: tsNanos}
}
