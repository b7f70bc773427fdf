package types

import "fmt"

// AggressorSide records which side of a trade crossed the spread.
type AggressorSide uint8

const (
	AggressorNone AggressorSide = iota
	AggressorBuyer
	AggressorSeller
)

func (a AggressorSide) String() string {
	switch a {
	case AggressorBuyer:
		return "BUYER"
	case AggressorSeller:
		return "SELLER"
	default:
		return "NONE"
	}
}

// BarAggregation names the rule a BarType aggregates ticks under.
type BarAggregation uint8

const (
	AggregationTickCount BarAggregation = iota
	AggregationVolume
	AggregationTimeSecond
	AggregationTimeMinute
	AggregationTimeHour
)

func (a BarAggregation) String() string {
	switch a {
	case AggregationTickCount:
		return "TICK_COUNT"
	case AggregationVolume:
		return "VOLUME"
	case AggregationTimeSecond:
		return "SECOND"
	case AggregationTimeMinute:
		return "MINUTE"
	case AggregationTimeHour:
		return "HOUR"
	default:
		return "UNKNOWN"
	}
}

// PriceType selects which price series (last trade vs. mid/bid/ask) a
// BarType aggregates.
type PriceType uint8

const (
	PriceTypeLast PriceType = iota
	PriceTypeBid
	PriceTypeAsk
	PriceTypeMid
)

// BarType identifies one aggregation series for one instrument: the
// instrument, the aggregation rule, the step size (ticks/units/seconds per
// bar), and the price series used.
type BarType struct {
	Instrument  InstrumentId
	Aggregation BarAggregation
	Step        uint64
	Price       PriceType
}

func (bt BarType) String() string {
	return fmt.Sprintf("%s-%d-%s", bt.Instrument, bt.Step, bt.Aggregation)
}

// Bar is a completed OHLCV aggregate over a BarType's window.
type Bar struct {
	Type        BarType
	Open        Price
	High        Price
	Low         Price
	Close       Price
	Volume      Quantity
	TickCount   uint64
	TsOpenNanos uint64
	TsCloseNanos uint64
}

// QuoteTick is a top-of-book snapshot for an instrument.
type QuoteTick struct {
	Instrument InstrumentId
	BidPrice   Price
	AskPrice   Price
	BidSize    Quantity
	AskSize    Quantity
	TsEventNanos uint64
	TsInitNanos  uint64
}

// TradeTick is a single executed trade observed for an instrument.
type TradeTick struct {
	Instrument   InstrumentId
	Price        Price
	Size         Quantity
	Aggressor    AggressorSide
	TradeID      TradeId
	TsEventNanos uint64
	TsInitNanos  uint64
}

// BookOrder is a single resting order on one side of an order book level.
type BookOrder struct {
	Price Price
	Size  Quantity
	Side  OrderSide
	Order VenueOrderId
}

// OrderBookDelta is one incremental change (add/update/delete) to a venue
// order book, used to maintain a local book mirror.
type OrderBookDelta struct {
	Instrument   InstrumentId
	Action       BookAction
	Order        BookOrder
	TsEventNanos uint64
	TsInitNanos  uint64
}

// BookAction names the kind of change an OrderBookDelta applies.
type BookAction uint8

const (
	BookActionAdd BookAction = iota
	BookActionUpdate
	BookActionDelete
	BookActionClear
)
