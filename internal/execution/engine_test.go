package execution

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"tradecore/pkg/tcerr"
	"tradecore/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder(t *testing.T, clientID string) types.Order {
	t.Helper()
	cid, err := types.NewClientOrderId(clientID)
	if err != nil {
		t.Fatalf("NewClientOrderId: %v", err)
	}
	strat, err := types.NewStrategyId("strat-1")
	if err != nil {
		t.Fatalf("NewStrategyId: %v", err)
	}
	inst, err := types.NewInstrumentId("BTC.SIM")
	if err != nil {
		t.Fatalf("NewInstrumentId: %v", err)
	}
	qty, err := types.QuantityFromText("10.00", 2)
	if err != nil {
		t.Fatalf("QuantityFromText: %v", err)
	}
	price, err := types.PriceFromText("100.00", 2)
	if err != nil {
		t.Fatalf("PriceFromText: %v", err)
	}
	return types.Order{
		ClientOrderID: cid, StrategyID: strat, Instrument: inst,
		Side: types.OrderSideBuy, Type: types.OrderTypeLimit,
		Quantity: qty, Price: price, Status: types.OrderStatusInitialized,
		FilledQty: types.ZeroQuantity(2),
	}
}

func TestSubmitRoutesAndAccepts(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-1")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())

	if err := e.Submit(order, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := e.Order("CID-1")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Status != types.OrderStatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", got.Status)
	}
}

func TestSubmitNoRouteRejects(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-2")
	e := New(nil, nil, router, discardLogger())

	err := e.Submit(order, 1)
	if !errors.Is(err, tcerr.ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestApplyFillPartialThenFull(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-3")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())
	if err := e.Submit(order, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	fillQty, _ := types.QuantityFromText("4.00", 2)
	fillPx, _ := types.PriceFromText("100.00", 2)
	if err := e.ApplyFill("CID-3", types.OrderFill{Price: fillPx, Size: fillQty, TsEventNanos: 2}); err != nil {
		t.Fatalf("ApplyFill partial: %v", err)
	}
	got, _ := e.Order("CID-3")
	if got.Status != types.OrderStatusPartiallyFilled {
		t.Fatalf("status after partial fill = %s, want PARTIALLY_FILLED", got.Status)
	}

	remainQty, _ := types.QuantityFromText("6.00", 2)
	if err := e.ApplyFill("CID-3", types.OrderFill{Price: fillPx, Size: remainQty, TsEventNanos: 3}); err != nil {
		t.Fatalf("ApplyFill full: %v", err)
	}
	got, _ = e.Order("CID-3")
	if got.Status != types.OrderStatusFilled {
		t.Fatalf("status after full fill = %s, want FILLED", got.Status)
	}
	if got.AvgPx.String() != "100.00" {
		t.Fatalf("AvgPx = %s, want 100.00", got.AvgPx)
	}
}

func TestCancelUnknownOrderNotFound(t *testing.T) {
	t.Parallel()
	e := New(nil, nil, NewRouter(), discardLogger())
	err := e.Cancel("nope", 1)
	if !errors.Is(err, tcerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModifyQuantityMustExceedFilled(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-MOD-1")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())
	if err := e.Submit(order, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	fillQty, _ := types.QuantityFromText("4.00", 2)
	fillPx, _ := types.PriceFromText("100.00", 2)
	if err := e.ApplyFill("CID-MOD-1", types.OrderFill{Price: fillPx, Size: fillQty, TsEventNanos: 2}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	tooSmall, _ := types.QuantityFromText("3.00", 2)
	if err := e.Modify("CID-MOD-1", &tooSmall, nil, 3); !errors.Is(err, tcerr.ErrValidation) {
		t.Fatalf("expected ErrValidation for qty <= filled, got %v", err)
	}

	bigger, _ := types.QuantityFromText("20.00", 2)
	if err := e.Modify("CID-MOD-1", &bigger, nil, 3); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	got, _ := e.Order("CID-MOD-1")
	if got.Quantity.String() != "20.00" {
		t.Fatalf("Quantity = %s, want 20.00", got.Quantity)
	}
	if got.Status != types.OrderStatusPartiallyFilled {
		t.Fatalf("status after modify = %s, want PARTIALLY_FILLED (restored)", got.Status)
	}
}

func TestCancelTerminalOrderRejected(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-CANCEL-TERM")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())
	if err := e.Submit(order, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Cancel("CID-CANCEL-TERM", 2); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if err := e.Cancel("CID-CANCEL-TERM", 3); !errors.Is(err, tcerr.ErrOrderInvalidTransition) {
		t.Fatalf("expected ErrOrderInvalidTransition canceling a terminal order, got %v", err)
	}
}

func TestStatisticsTrackSubmitFillCancel(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	e := New(nil, nil, router, discardLogger())

	filled := testOrder(t, "CID-STAT-FILLED")
	router.SetRoute(filled.Instrument, "SIM")
	if err := e.Submit(filled, 1); err != nil {
		t.Fatalf("Submit filled: %v", err)
	}
	fullQty, _ := types.QuantityFromText("10.00", 2)
	fillPx, _ := types.PriceFromText("100.00", 2)
	if err := e.ApplyFill("CID-STAT-FILLED", types.OrderFill{Price: fillPx, Size: fullQty, TsEventNanos: 2}); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	canceled := testOrder(t, "CID-STAT-CANCELED")
	router.SetRoute(canceled.Instrument, "SIM")
	if err := e.Submit(canceled, 1); err != nil {
		t.Fatalf("Submit canceled: %v", err)
	}
	if err := e.Cancel("CID-STAT-CANCELED", 2); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	unrouted := testOrder(t, "CID-STAT-REJECTED")
	unroutedInstrument, err := types.NewInstrumentId("ETH.SIM")
	if err != nil {
		t.Fatalf("NewInstrumentId: %v", err)
	}
	unrouted.Instrument = unroutedInstrument
	_ = e.Submit(unrouted, 1)

	stats := e.Statistics()
	if stats.OrdersSubmitted != 3 {
		t.Fatalf("OrdersSubmitted = %d, want 3", stats.OrdersSubmitted)
	}
	if stats.OrdersFilled != 1 {
		t.Fatalf("OrdersFilled = %d, want 1", stats.OrdersFilled)
	}
	if stats.OrdersCancelled != 1 {
		t.Fatalf("OrdersCancelled = %d, want 1", stats.OrdersCancelled)
	}
	if stats.OrdersRejected != 1 {
		t.Fatalf("OrdersRejected = %d, want 1", stats.OrdersRejected)
	}
	if got, want := stats.FillRate(), 1.0/3.0; got != want {
		t.Fatalf("FillRate = %v, want %v", got, want)
	}
	if e.ActiveOrdersCount() != 0 {
		t.Fatalf("ActiveOrdersCount = %d, want 0", e.ActiveOrdersCount())
	}
}

func TestDuplicateSubmitDoesNotInflateOrdersSubmitted(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-DUP")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())

	if err := e.Submit(order, 1); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := e.Submit(order, 2); !errors.Is(err, tcerr.ErrValidation) {
		t.Fatalf("expected ErrValidation on duplicate Submit, got %v", err)
	}

	if got := e.Statistics().OrdersSubmitted; got != 1 {
		t.Fatalf("OrdersSubmitted = %d, want 1", got)
	}
}

func TestConcurrentDuplicateSubmitCountsOnlyOnce(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	order := testOrder(t, "CID-RACE")
	router.SetRoute(order.Instrument, "SIM")
	e := New(nil, nil, router, discardLogger())

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = e.Submit(order, 1)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, tcerr.ErrValidation) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if got := e.Statistics().OrdersSubmitted; got != 1 {
		t.Fatalf("OrdersSubmitted = %d, want 1 (reservation and count must be atomic)", got)
	}
}

func TestApplyFillPrecisionMismatchIsDroppedNotFatal(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	e := New(nil, nil, router, discardLogger())

	first := testOrder(t, "CID-PRECISION-1")
	router.SetRoute(first.Instrument, "SIM")
	if err := e.Submit(first, 1); err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	firstFillQty, _ := types.QuantityFromText("10.00", 2)
	firstFillPx, _ := types.PriceFromText("100.00", 2)
	if err := e.ApplyFill("CID-PRECISION-1", types.OrderFill{Price: firstFillPx, Size: firstFillQty, TsEventNanos: 2}); err != nil {
		t.Fatalf("ApplyFill first: %v", err)
	}
	wantVolume := e.Statistics().TotalFillVolume

	second := testOrder(t, "CID-PRECISION-2")
	router.SetRoute(second.Instrument, "SIM")
	second.Quantity, _ = types.QuantityFromText("1.0000", 4)
	second.FilledQty = types.ZeroQuantity(4)
	if err := e.Submit(second, 1); err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	secondFillQty, _ := types.QuantityFromText("1.0000", 4)
	secondFillPx, _ := types.PriceFromText("100.00", 2)
	if err := e.ApplyFill("CID-PRECISION-2", types.OrderFill{Price: secondFillPx, Size: secondFillQty, TsEventNanos: 3}); err != nil {
		t.Fatalf("ApplyFill second (mismatched precision): %v", err)
	}

	if got := e.Statistics().TotalFillVolume; got.String() != wantVolume.String() {
		t.Fatalf("TotalFillVolume = %s, want unchanged %s after a precision-mismatched fill", got, wantVolume)
	}
	got2, err := e.Order("CID-PRECISION-2")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got2.Status != types.OrderStatusFilled {
		t.Fatalf("second order status = %s, want FILLED despite the dropped aggregate", got2.Status)
	}
}

func TestOrdersByStrategy(t *testing.T) {
	t.Parallel()
	router := NewRouter()
	e := New(nil, nil, router, discardLogger())
	for _, id := range []string{"CID-A", "CID-B"} {
		o := testOrder(t, id)
		router.SetRoute(o.Instrument, "SIM")
		if err := e.Submit(o, 1); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	orders := e.OrdersByStrategy("strat-1")
	if len(orders) != 2 {
		t.Fatalf("OrdersByStrategy len = %d, want 2", len(orders))
	}
}
