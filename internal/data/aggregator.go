package data

import "tradecore/pkg/types"

// aggregator accumulates trades into an in-progress Bar for one BarType
// and reports when the bar is complete. Grounded on the tick/volume/time
// bar builders described by alphaforge.model.enums.BarAggregation, each
// implemented here as a small state machine over TradeTick input.
type aggregator interface {
	// onTrade folds one trade into the in-progress bar, returning every
	// bar the trade completes, oldest first. Ordinarily at most one bar
	// closes per trade; a single oversized volume trade can close more
	// than one in a row, each carrying the closing tick's price forward
	// with the unconsumed remainder of its size.
	onTrade(t types.TradeTick) []types.Bar
}

type partial struct {
	open, high, low, close types.Price
	volume                 types.Quantity
	tickCount              uint64
	tsOpen                 uint64
	started                bool
}

func (p *partial) fold(t types.TradeTick) {
	p.foldPrice(t.Price, t.Size, t.TsEventNanos)
}

// ensureOpen opens the bar at price/tsEvent if no trade has folded into it
// yet. It does not count as a tick — it exists so a volume aggregator can
// establish the open price before deciding how much of an oversized
// trade's size actually fits in this bar.
func (p *partial) ensureOpen(price types.Price, precision uint8, tsEvent uint64) {
	if p.started {
		return
	}
	p.open, p.high, p.low = price, price, price
	p.volume = types.ZeroQuantity(precision)
	p.tsOpen = tsEvent
	p.started = true
}

// foldPrice folds size units traded at price into the in-progress bar,
// as of tsEvent, counting as one tick. Used directly (rather than via
// fold) when a volume aggregator only consumes part of a trade's size
// into this bar.
func (p *partial) foldPrice(price types.Price, size types.Quantity, tsEvent uint64) {
	p.ensureOpen(price, size.Precision(), tsEvent)
	if price.GreaterThan(p.high) {
		p.high = price
	}
	if price.LessThan(p.low) {
		p.low = price
	}
	p.close = price
	if v, err := p.volume.Add(size); err == nil {
		p.volume = v
	}
	p.tickCount++
}

func (p *partial) bar(bt types.BarType, tsClose uint64) types.Bar {
	return types.Bar{
		Type: bt, Open: p.open, High: p.high, Low: p.low, Close: p.close,
		Volume: p.volume, TickCount: p.tickCount,
		TsOpenNanos: p.tsOpen, TsCloseNanos: tsClose,
	}
}

func (p *partial) reset() { *p = partial{} }

// tickCountAggregator closes a bar every Step trades.
type tickCountAggregator struct {
	bt   types.BarType
	step uint64
	p    partial
}

func newTickCountAggregator(bt types.BarType) *tickCountAggregator {
	return &tickCountAggregator{bt: bt, step: bt.Step}
}

func (a *tickCountAggregator) onTrade(t types.TradeTick) []types.Bar {
	a.p.fold(t)
	if a.p.tickCount >= a.step {
		bar := a.p.bar(a.bt, t.TsEventNanos)
		a.p.reset()
		return []types.Bar{bar}
	}
	return nil
}

// volumeAggregator closes a bar once accumulated volume reaches Step units.
type volumeAggregator struct {
	bt   types.BarType
	step uint64
	p    partial
}

func newVolumeAggregator(bt types.BarType) *volumeAggregator {
	return &volumeAggregator{bt: bt, step: bt.Step}
}

// onTrade consumes t.Size against the current bar's remaining room, one
// bar-sized bite at a time. A trade that alone exceeds the threshold, or
// that tips an already-partial bar past it with size to spare, closes
// one bar per full threshold crossed; the unconsumed remainder (if any)
// opens or continues the next bar at the same price, per spec.md §4.F's
// "closing tick may be partially consumed" rule.
func (a *volumeAggregator) onTrade(t types.TradeTick) []types.Bar {
	if t.Size.IsZero() {
		// Zero-size ticks don't advance volume aggregation at all (spec
		// §4.F): unlike tick-count bars, there's nothing here for a
		// zero-size print to contribute.
		return nil
	}
	// Step counts whole units of size, so scale it to the tick's precision.
	units := int64(a.step)
	for i := uint8(0); i < t.Size.Precision(); i++ {
		units *= 10
	}
	threshold, err := types.QuantityFromIntegerUnits(units, t.Size.Precision())
	if err != nil {
		a.p.fold(t)
		return nil
	}
	zero := types.ZeroQuantity(t.Size.Precision())
	remaining := t.Size
	var closed []types.Bar
	for {
		a.p.ensureOpen(t.Price, zero.Precision(), t.TsEventNanos)
		room, err := threshold.Sub(a.p.volume)
		if err != nil || room.LessThan(zero) || room.IsZero() {
			room = zero
		}
		portion := remaining
		if remaining.GreaterThan(room) {
			portion = room
		}
		if portion.IsZero() && !remaining.IsZero() {
			// threshold already met with nothing consumed yet this
			// trade (e.g. a zero-size trade arriving on a full bar);
			// avoid spinning.
			break
		}
		a.p.foldPrice(t.Price, portion, t.TsEventNanos)
		remaining, _ = remaining.Sub(portion)
		if a.p.volume.GreaterThanOrEqual(threshold) {
			closed = append(closed, a.p.bar(a.bt, t.TsEventNanos))
			a.p.reset()
		}
		if remaining.IsZero() {
			break
		}
	}
	return closed
}

// timeAggregator closes a bar at UTC-aligned boundaries of stepNanos
// (e.g. every 60s for 1-minute bars), following alphaforge's bar-timer
// aggregators rather than resetting on first trade seen.
type timeAggregator struct {
	bt        types.BarType
	stepNanos uint64
	p         partial
	bucketEnd uint64
}

func newTimeAggregator(bt types.BarType, stepNanos uint64) *timeAggregator {
	return &timeAggregator{bt: bt, stepNanos: stepNanos}
}

func (a *timeAggregator) bucketEndFor(ts uint64) uint64 {
	return ((ts / a.stepNanos) + 1) * a.stepNanos
}

func (a *timeAggregator) onTrade(t types.TradeTick) []types.Bar {
	if !a.p.started {
		a.bucketEnd = a.bucketEndFor(t.TsEventNanos)
		a.p.fold(t)
		return nil
	}
	if t.TsEventNanos >= a.bucketEnd {
		bar := a.p.bar(a.bt, a.bucketEnd)
		a.p.reset()
		a.bucketEnd = a.bucketEndFor(t.TsEventNanos)
		a.p.fold(t)
		return []types.Bar{bar}
	}
	a.p.fold(t)
	return nil
}

func newAggregator(bt types.BarType) aggregator {
	switch bt.Aggregation {
	case types.AggregationVolume:
		return newVolumeAggregator(bt)
	case types.AggregationTimeSecond:
		return newTimeAggregator(bt, bt.Step*1e9)
	case types.AggregationTimeMinute:
		return newTimeAggregator(bt, bt.Step*60*1e9)
	case types.AggregationTimeHour:
		return newTimeAggregator(bt, bt.Step*3600*1e9)
	default:
		return newTickCountAggregator(bt)
	}
}
