// Package data is the tick-to-bar aggregation engine (spec §3.F):
// ingests trades and quotes per instrument, feeds one or more BarType
// aggregators, publishes completed bars on the message bus, and keeps
// bounded ring buffers of recent bars/ticks for introspection. Grounded
// on alphaforge.model.data's Bar/Trade/Quote dataclasses for the data
// model and on the teacher's internal/market/book.go for the
// RWMutex-guarded per-instrument state pattern.
package data

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

// Config controls ring buffer depth; bar subscriptions are registered at
// runtime via RegisterBarType, not from static config.
type Config struct {
	RecentBarsPerSeries int `mapstructure:"recent_bars_per_series"`
	RecentTicksPerInstrument int `mapstructure:"recent_ticks_per_instrument"`
}

// Stats reports data engine throughput and data quality counters.
type Stats struct {
	TradesProcessed  uint64
	QuotesProcessed  uint64
	BarsEmitted      uint64
	OutOfOrderDropped uint64
	TicksRejected    uint64
}

type instrumentState struct {
	mu         sync.Mutex
	lastTradeTs uint64
	lastQuoteTs uint64
	recentTrades *ringBuffer[types.TradeTick]
	recentQuotes *ringBuffer[types.QuoteTick]
	series       map[types.BarType]*seriesState
}

type seriesState struct {
	agg        aggregator
	recentBars *ringBuffer[types.Bar]
}

// Engine is the tick aggregation engine. Safe for concurrent use once
// started; OnTrade/OnQuote are expected to be called from adapter
// goroutines while RegisterBarType/RecentBars are called from strategy or
// introspection code.
type Engine struct {
	*lifecycle.Base

	cfg   Config
	clock clock.Clock
	bus   *bus.Bus
	log   *slog.Logger

	mu         sync.RWMutex
	statsMu    sync.Mutex
	stats      Stats
	byInstrument map[types.InstrumentId]*instrumentState
}

// New constructs a data Engine publishing completed bars and accepted
// ticks onto b.
func New(cfg Config, clk clock.Clock, b *bus.Bus, log *slog.Logger) *Engine {
	if cfg.RecentBarsPerSeries <= 0 {
		cfg.RecentBarsPerSeries = 500
	}
	if cfg.RecentTicksPerInstrument <= 0 {
		cfg.RecentTicksPerInstrument = 1000
	}
	e := &Engine{
		cfg: cfg, clock: clk, bus: b,
		log:          log.With("component", "data-engine"),
		byInstrument: make(map[types.InstrumentId]*instrumentState),
	}
	e.Base = lifecycle.NewBase("data-engine", log, lifecycle.Hooks{})
	return e
}

func (e *Engine) stateFor(instrument types.InstrumentId) *instrumentState {
	e.mu.RLock()
	st, ok := e.byInstrument[instrument]
	e.mu.RUnlock()
	if ok {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.byInstrument[instrument]; ok {
		return st
	}
	st = &instrumentState{
		recentTrades: newRingBuffer[types.TradeTick](e.cfg.RecentTicksPerInstrument),
		recentQuotes: newRingBuffer[types.QuoteTick](e.cfg.RecentTicksPerInstrument),
		series:       make(map[types.BarType]*seriesState),
	}
	e.byInstrument[instrument] = st
	return st
}

// RegisterBarType starts aggregating bt from this point forward. Calling
// it more than once for the same BarType is a no-op.
func (e *Engine) RegisterBarType(bt types.BarType) {
	st := e.stateFor(bt.Instrument)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.series[bt]; ok {
		return
	}
	st.series[bt] = &seriesState{
		agg:        newAggregator(bt),
		recentBars: newRingBuffer[types.Bar](e.cfg.RecentBarsPerSeries),
	}
}

// OnTrade ingests a trade tick, feeding every registered BarType for its
// instrument. Trades older than the last trade seen for the instrument
// are dropped and counted rather than rejected with an error, since
// venues occasionally redeliver or reorder under load.
func (e *Engine) OnTrade(t types.TradeTick) error {
	if err := validateTrade(t); err != nil {
		e.statsMu.Lock()
		e.stats.TicksRejected++
		e.statsMu.Unlock()
		return err
	}

	st := e.stateFor(t.Instrument)
	st.mu.Lock()
	if t.TsEventNanos < st.lastTradeTs {
		st.mu.Unlock()
		e.statsMu.Lock()
		e.stats.OutOfOrderDropped++
		e.statsMu.Unlock()
		return nil
	}
	st.lastTradeTs = t.TsEventNanos
	st.recentTrades.push(t)

	var closed []types.Bar
	for _, series := range st.series {
		for _, bar := range series.agg.onTrade(t) {
			series.recentBars.push(bar)
			closed = append(closed, bar)
		}
	}
	st.mu.Unlock()

	e.statsMu.Lock()
	e.stats.TradesProcessed++
	e.stats.BarsEmitted += uint64(len(closed))
	e.statsMu.Unlock()

	if e.bus == nil {
		return nil
	}
	tick := e.clock.NowNanos()
	if err := e.bus.Publish(fmt.Sprintf("ticks.%s", t.Instrument), types.NewTradeEvent(t, tick)); err != nil {
		e.log.Warn("publish trade tick failed", "instrument", t.Instrument, "error", err)
	}
	for _, bar := range closed {
		topic := fmt.Sprintf("bars.%s.%s", bar.Type.Instrument, bar.Type.Aggregation)
		if err := e.bus.Publish(topic, types.NewBarEvent(bar, tick)); err != nil {
			e.log.Warn("publish bar failed", "topic", topic, "error", err)
		}
	}
	return nil
}

// OnQuote ingests a top-of-book quote, applying the same out-of-order
// drop policy as OnTrade.
func (e *Engine) OnQuote(q types.QuoteTick) error {
	st := e.stateFor(q.Instrument)
	st.mu.Lock()
	if q.TsEventNanos < st.lastQuoteTs {
		st.mu.Unlock()
		e.statsMu.Lock()
		e.stats.OutOfOrderDropped++
		e.statsMu.Unlock()
		return nil
	}
	st.lastQuoteTs = q.TsEventNanos
	st.recentQuotes.push(q)
	st.mu.Unlock()

	e.statsMu.Lock()
	e.stats.QuotesProcessed++
	e.statsMu.Unlock()

	if e.bus == nil {
		return nil
	}
	if err := e.bus.Publish(fmt.Sprintf("quotes.%s", q.Instrument), types.NewQuoteEvent(q, e.clock.NowNanos())); err != nil {
		e.log.Warn("publish quote failed", "instrument", q.Instrument, "error", err)
	}
	return nil
}

// RecentBars returns the buffered bars for bt, oldest first. Empty if bt
// was never registered.
func (e *Engine) RecentBars(bt types.BarType) []types.Bar {
	st := e.stateFor(bt.Instrument)
	st.mu.Lock()
	defer st.mu.Unlock()
	series, ok := st.series[bt]
	if !ok {
		return nil
	}
	return series.recentBars.snapshot()
}

// RecentTrades returns the buffered trades for instrument, oldest first.
func (e *Engine) RecentTrades(instrument types.InstrumentId) []types.TradeTick {
	st := e.stateFor(instrument)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.recentTrades.snapshot()
}

// Stats returns a point-in-time snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// validateTrade rejects a trade with a negative size or an aggressor code
// outside the known enum, per spec.md §4.F's failure semantics. A
// non-finite price cannot reach here: types.Price is backed by
// shopspring/decimal, which has no NaN/Inf representation, so that check
// is enforced at construction time instead (PriceFromFloat64 et al).
func validateTrade(t types.TradeTick) error {
	if t.Size.IsNegative() {
		return fmt.Errorf("%w: trade size %s is negative for %s", tcerr.ErrValidation, t.Size, t.Instrument)
	}
	switch t.Aggressor {
	case types.AggressorNone, types.AggressorBuyer, types.AggressorSeller:
	default:
		return fmt.Errorf("%w: unknown aggressor code %d for %s", tcerr.ErrValidation, t.Aggressor, t.Instrument)
	}
	return nil
}

// SubmitTradeTick is the spec.md §6 ingress call name for OnTrade; venue
// adapters call this name, internal callers use OnTrade directly.
func (e *Engine) SubmitTradeTick(t types.TradeTick) error { return e.OnTrade(t) }

// SubmitQuoteTick is the spec.md §6 ingress call name for OnQuote.
func (e *Engine) SubmitQuoteTick(q types.QuoteTick) error { return e.OnQuote(q) }
