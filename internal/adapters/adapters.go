// Package adapters defines the runtime's external-interface boundary
// (spec §6): the narrow set of calls a venue integration uses to push
// market data into the core, and the calls a
// strategy uses to read market data and manage orders. Everything here
// is a thin seam — no venue wire protocol, no strategy logic — kept
// deliberately small so adapters and strategies stay "external
// collaborators," never part of the core's four subsystems.
package adapters

import "tradecore/pkg/types"

// VenueIngress is the boundary a venue adapter pushes validated trade and
// quote ticks through; internal/data.Engine satisfies it. Fills are not
// part of it: they enter through internal/execution.Engine.HandleFill.
type VenueIngress interface {
	SubmitTradeTick(t types.TradeTick) error
	SubmitQuoteTick(q types.QuoteTick) error
}

// StrategyEgress is the boundary a strategy uses to submit and manage
// orders and read its own order book. internal/execution.Engine
// satisfies it.
type StrategyEgress interface {
	Submit(order types.Order, tsNanos uint64) error
	Cancel(clientOrderID string, tsNanos uint64) error
	Modify(clientOrderID string, newQty *types.Quantity, newPrice *types.Price, tsNanos uint64) error
	OrdersByStrategy(strategyID string) []types.Order
}
