package data

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"tradecore/pkg/tcerr"
	"tradecore/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustInstrument(t *testing.T, s string) types.InstrumentId {
	t.Helper()
	id, err := types.NewInstrumentId(s)
	if err != nil {
		t.Fatalf("NewInstrumentId(%q): %v", s, err)
	}
	return id
}

func mustPrice(t *testing.T, s string) types.Price {
	t.Helper()
	p, err := types.PriceFromText(s, 2)
	if err != nil {
		t.Fatalf("PriceFromText(%q): %v", s, err)
	}
	return p
}

func mustQty(t *testing.T, s string) types.Quantity {
	t.Helper()
	q, err := types.QuantityFromText(s, 2)
	if err != nil {
		t.Fatalf("QuantityFromText(%q): %v", s, err)
	}
	return q
}

func TestTickCountAggregatorClosesAtStep(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "BTC.SIM")
	bt := types.BarType{Instrument: inst, Aggregation: types.AggregationTickCount, Step: 3}
	e := New(Config{}, nil, nil, discardLogger())
	e.RegisterBarType(bt)

	prices := []string{"100.00", "101.00", "99.00"}
	var lastBars []types.Bar
	for i, p := range prices {
		tick := types.TradeTick{
			Instrument: inst, Price: mustPrice(t, p), Size: mustQty(t, "1.00"),
			TsEventNanos: uint64(i + 1),
		}
		if err := e.OnTrade(tick); err != nil {
			t.Fatalf("OnTrade: %v", err)
		}
	}
	lastBars = e.RecentBars(bt)
	if len(lastBars) != 1 {
		t.Fatalf("RecentBars len = %d, want 1", len(lastBars))
	}
	bar := lastBars[0]
	if bar.Open.String() != "100.00" || bar.Close.String() != "99.00" {
		t.Fatalf("bar open/close = %s/%s, want 100.00/99.00", bar.Open, bar.Close)
	}
	if bar.High.String() != "101.00" || bar.Low.String() != "99.00" {
		t.Fatalf("bar high/low = %s/%s, want 101.00/99.00", bar.High, bar.Low)
	}
	if bar.TickCount != 3 {
		t.Fatalf("bar.TickCount = %d, want 3", bar.TickCount)
	}
}

func TestVolumeAggregatorClosesExactlyAtThreshold(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "ETH.SIM")
	bt := types.BarType{Instrument: inst, Aggregation: types.AggregationVolume, Step: 5}
	e := New(Config{}, nil, nil, discardLogger())
	e.RegisterBarType(bt)

	for i, sz := range []string{"2.00", "3.00"} {
		tick := types.TradeTick{
			Instrument: inst, Price: mustPrice(t, "10.00"), Size: mustQty(t, sz),
			TsEventNanos: uint64(i + 1),
		}
		if err := e.OnTrade(tick); err != nil {
			t.Fatalf("OnTrade: %v", err)
		}
	}
	bars := e.RecentBars(bt)
	if len(bars) != 1 {
		t.Fatalf("RecentBars len = %d, want 1 (exact threshold closes one bar, not two)", len(bars))
	}
	if bars[0].Volume.String() != "5.00" {
		t.Fatalf("bar volume = %s, want 5.00", bars[0].Volume)
	}
}

func TestVolumeAggregatorOverflowCarriesRemainderForward(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "ETH.SIM")
	bt := types.BarType{Instrument: inst, Aggregation: types.AggregationVolume, Step: 5}
	e := New(Config{}, nil, nil, discardLogger())
	e.RegisterBarType(bt)

	// First trade brings volume to 3; second trade of size 4 overflows the
	// threshold by 2, closing the first bar at volume 5 and opening the
	// next bar with the 2-unit remainder at the same price.
	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "10.00"), Size: mustQty(t, "3.00"), TsEventNanos: 1}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "20.00"), Size: mustQty(t, "4.00"), TsEventNanos: 2}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	bars := e.RecentBars(bt)
	if len(bars) != 1 {
		t.Fatalf("RecentBars len = %d, want 1 closed bar so far", len(bars))
	}
	if bars[0].Volume.String() != "5.00" {
		t.Fatalf("closed bar volume = %s, want 5.00", bars[0].Volume)
	}
	if bars[0].Close.String() != "20.00" {
		t.Fatalf("closed bar close = %s, want 20.00 (overflow trade's price)", bars[0].Close)
	}

	// Close the second bar and confirm the carried-over 2 units counted.
	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "20.00"), Size: mustQty(t, "3.00"), TsEventNanos: 3}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	bars = e.RecentBars(bt)
	if len(bars) != 2 {
		t.Fatalf("RecentBars len = %d, want 2", len(bars))
	}
	if bars[1].Volume.String() != "5.00" {
		t.Fatalf("second bar volume = %s, want 5.00 (2 carried + 3 new)", bars[1].Volume)
	}
}

func TestOutOfOrderTradeDropped(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "ETH.SIM")
	e := New(Config{}, nil, nil, discardLogger())

	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "10.00"), Size: mustQty(t, "1.00"), TsEventNanos: 100}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "9.00"), Size: mustQty(t, "1.00"), TsEventNanos: 50}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	if got := e.Stats().OutOfOrderDropped; got != 1 {
		t.Fatalf("OutOfOrderDropped = %d, want 1", got)
	}
	if got := e.Stats().TradesProcessed; got != 1 {
		t.Fatalf("TradesProcessed = %d, want 1", got)
	}
}

func TestNegativeSizeTradeRejected(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "BTC.SIM")
	e := New(Config{}, nil, nil, discardLogger())

	negQty, err := types.QuantityFromText("-1.00", 2)
	if err != nil {
		t.Fatalf("QuantityFromText: %v", err)
	}
	err = e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "10.00"), Size: negQty, TsEventNanos: 1})
	if !errors.Is(err, tcerr.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative size, got %v", err)
	}
	if got := e.Stats().TicksRejected; got != 1 {
		t.Fatalf("TicksRejected = %d, want 1", got)
	}
	if got := e.Stats().TradesProcessed; got != 0 {
		t.Fatalf("TradesProcessed = %d, want 0 (rejected trade must not be aggregated)", got)
	}
}

func TestZeroSizeTradeUpdatesExtremaNotVolume(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "BTC.SIM")
	bt := types.BarType{Instrument: inst, Aggregation: types.AggregationTickCount, Step: 2}
	e := New(Config{}, nil, nil, discardLogger())
	e.RegisterBarType(bt)

	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "100.00"), Size: mustQty(t, "1.00"), TsEventNanos: 1}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	if err := e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "105.00"), Size: mustQty(t, "0.00"), TsEventNanos: 2}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}
	bars := e.RecentBars(bt)
	if len(bars) != 1 {
		t.Fatalf("RecentBars len = %d, want 1", len(bars))
	}
	if bars[0].High.String() != "105.00" {
		t.Fatalf("bar high = %s, want 105.00 (zero-size tick must still update extrema)", bars[0].High)
	}
	if bars[0].Volume.String() != "1.00" {
		t.Fatalf("bar volume = %s, want 1.00 (zero-size tick must not advance volume)", bars[0].Volume)
	}
}

func TestRecentTradesRingBufferBounded(t *testing.T) {
	t.Parallel()
	inst := mustInstrument(t, "SOL.SIM")
	e := New(Config{RecentTicksPerInstrument: 2}, nil, nil, discardLogger())
	for i := 0; i < 5; i++ {
		_ = e.OnTrade(types.TradeTick{Instrument: inst, Price: mustPrice(t, "1.00"), Size: mustQty(t, "1.00"), TsEventNanos: uint64(i + 1)})
	}
	trades := e.RecentTrades(inst)
	if len(trades) != 2 {
		t.Fatalf("RecentTrades len = %d, want 2 (bounded)", len(trades))
	}
	if trades[len(trades)-1].TsEventNanos != 5 {
		t.Fatalf("last trade ts = %d, want 5", trades[len(trades)-1].TsEventNanos)
	}
}
