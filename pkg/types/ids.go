// Package types is the shared vocabulary of the runtime: identifiers,
// fixed-precision numerics, market data, orders, and events. It has no
// dependency on any internal package so it can be imported by every layer.
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tradecore/pkg/tcerr"
)

const maxIDLength = 64

// InstrumentId identifies a tradable instrument as SYMBOL.VENUE. Both parts
// are uppercased and must be non-empty; equality and hashing act on the
// canonical joined string.
type InstrumentId struct {
	value string
}

// NewInstrumentId parses "SYMBOL.VENUE" into a canonical InstrumentId.
func NewInstrumentId(identifier string) (InstrumentId, error) {
	parts := strings.SplitN(identifier, ".", 2)
	if len(parts) != 2 {
		return InstrumentId{}, fmt.Errorf("%w: invalid instrument id format %q, want SYMBOL.VENUE", tcerr.ErrValidation, identifier)
	}
	symbol, venue := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if symbol == "" || venue == "" {
		return InstrumentId{}, fmt.Errorf("%w: empty symbol or venue in instrument id %q", tcerr.ErrValidation, identifier)
	}
	return InstrumentId{value: symbol + "." + venue}, nil
}

// InstrumentIdFromParts joins a symbol and venue into a canonical InstrumentId.
func InstrumentIdFromParts(symbol, venue string) (InstrumentId, error) {
	return NewInstrumentId(symbol + "." + venue)
}

func (id InstrumentId) String() string { return id.value }

// Symbol returns the symbol component.
func (id InstrumentId) Symbol() string {
	s, _, _ := strings.Cut(id.value, ".")
	return s
}

// Venue returns the venue component.
func (id InstrumentId) Venue() string {
	_, v, _ := strings.Cut(id.value, ".")
	return v
}

// IsZero reports whether this is the zero-value InstrumentId.
func (id InstrumentId) IsZero() bool { return id.value == "" }

// AccountId identifies a trading account as ISSUER-NUMBER.
type AccountId struct {
	value string
}

// NewAccountId creates an AccountId, uppercasing the issuer.
func NewAccountId(issuer, number string) (AccountId, error) {
	if issuer == "" || number == "" {
		return AccountId{}, fmt.Errorf("%w: account issuer and number cannot be empty", tcerr.ErrValidation)
	}
	return AccountId{value: strings.ToUpper(issuer) + "-" + number}, nil
}

func (id AccountId) String() string { return id.value }
func (id AccountId) IsZero() bool   { return id.value == "" }

// newBoundedID is the shared implementation for simple non-empty,
// length-bounded string identifiers (ClientOrderId, TraderId, ...).
func newBoundedID(kind, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: %s cannot be empty", tcerr.ErrValidation, kind)
	}
	if len(value) > maxIDLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", tcerr.ErrValidation, kind, maxIDLength)
	}
	return value, nil
}

// ClientOrderId is the strategy-assigned identifier for an order.
type ClientOrderId struct{ value string }

// NewClientOrderId validates and wraps a client order id.
func NewClientOrderId(value string) (ClientOrderId, error) {
	v, err := newBoundedID("client order id", value)
	if err != nil {
		return ClientOrderId{}, err
	}
	return ClientOrderId{value: v}, nil
}

// GenerateClientOrderId creates a new client order id from a random UUID.
func GenerateClientOrderId() ClientOrderId {
	return ClientOrderId{value: uuid.NewString()}
}

func (id ClientOrderId) String() string { return id.value }
func (id ClientOrderId) IsZero() bool   { return id.value == "" }

// VenueOrderId is the identifier assigned to an order by the executing venue.
type VenueOrderId struct{ value string }

// NewVenueOrderId validates and wraps a venue order id.
func NewVenueOrderId(value string) (VenueOrderId, error) {
	v, err := newBoundedID("venue order id", value)
	if err != nil {
		return VenueOrderId{}, err
	}
	return VenueOrderId{value: v}, nil
}

func (id VenueOrderId) String() string { return id.value }
func (id VenueOrderId) IsZero() bool   { return id.value == "" }

// TradeId identifies a single executed trade/fill.
type TradeId struct{ value string }

// NewTradeId validates and wraps a trade id.
func NewTradeId(value string) (TradeId, error) {
	v, err := newBoundedID("trade id", value)
	if err != nil {
		return TradeId{}, err
	}
	return TradeId{value: v}, nil
}

func (id TradeId) String() string { return id.value }
func (id TradeId) IsZero() bool   { return id.value == "" }

// PositionId identifies a net position resulting from one or more fills.
type PositionId struct{ value string }

// NewPositionId validates and wraps a position id.
func NewPositionId(value string) (PositionId, error) {
	v, err := newBoundedID("position id", value)
	if err != nil {
		return PositionId{}, err
	}
	return PositionId{value: v}, nil
}

func (id PositionId) String() string { return id.value }
func (id PositionId) IsZero() bool   { return id.value == "" }

// StrategyId identifies the trading strategy that owns an order.
type StrategyId struct{ value string }

// NewStrategyId validates and wraps a strategy id.
func NewStrategyId(value string) (StrategyId, error) {
	v, err := newBoundedID("strategy id", value)
	if err != nil {
		return StrategyId{}, err
	}
	return StrategyId{value: v}, nil
}

func (id StrategyId) String() string { return id.value }
func (id StrategyId) IsZero() bool   { return id.value == "" }

// TraderId identifies the trader (or engine instance) operating strategies.
type TraderId struct{ value string }

// NewTraderId validates and wraps a trader id.
func NewTraderId(value string) (TraderId, error) {
	v, err := newBoundedID("trader id", value)
	if err != nil {
		return TraderId{}, err
	}
	return TraderId{value: v}, nil
}

func (id TraderId) String() string { return id.value }
func (id TraderId) IsZero() bool   { return id.value == "" }
