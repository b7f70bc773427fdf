package eventstore

import (
	"testing"

	"tradecore/pkg/types"
)

func TestAppendAndIndices(t *testing.T) {
	t.Parallel()
	s := New()
	s.Append(types.Event{Kind: types.EventOrderAccepted, Subject: "ORD-1"})
	s.Append(types.Event{Kind: types.EventOrderFilled, Subject: "ORD-1"})
	s.Append(types.Event{Kind: types.EventOrderAccepted, Subject: "ORD-2"})

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if got := s.ByKind(types.EventOrderAccepted); len(got) != 2 {
		t.Fatalf("ByKind(Accepted) len = %d, want 2", len(got))
	}
	if got := s.BySubject("ORD-1"); len(got) != 2 {
		t.Fatalf("BySubject(ORD-1) len = %d, want 2", len(got))
	}
	if got := s.BySubject("missing"); len(got) != 0 {
		t.Fatalf("BySubject(missing) len = %d, want 0", len(got))
	}
}

func TestForOrderAndClearAndCount(t *testing.T) {
	t.Parallel()
	s := New()
	s.Append(types.Event{Kind: types.EventOrderAccepted, Subject: "ORD-1"})
	s.Append(types.Event{Kind: types.EventOrderFilled, Subject: "ORD-1"})
	s.Append(types.Event{Kind: types.EventTradeReceived, Subject: "BTC.SIM"})

	if got := s.ForOrder("ORD-1"); len(got) != 2 {
		t.Fatalf("ForOrder(ORD-1) len = %d, want 2", len(got))
	}
	if got := s.ForInstrument("BTC.SIM"); len(got) != 1 {
		t.Fatalf("ForInstrument(BTC.SIM) len = %d, want 1", len(got))
	}
	if got := s.ForPosition("POS-1"); len(got) != 0 {
		t.Fatalf("ForPosition(POS-1) len = %d, want 0 (no position events emitted)", len(got))
	}
	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
	s.Clear()
	if s.Count() != 0 {
		t.Fatalf("Count() after Clear = %d, want 0", s.Count())
	}
	if got := s.ForOrder("ORD-1"); len(got) != 0 {
		t.Fatalf("ForOrder(ORD-1) after Clear len = %d, want 0", len(got))
	}
}

func TestAtOutOfRange(t *testing.T) {
	t.Parallel()
	s := New()
	if _, ok := s.At(0); ok {
		t.Fatal("At(0) on empty store should report false")
	}
	s.Append(types.Event{Kind: types.EventBarClosed})
	if _, ok := s.At(5); ok {
		t.Fatal("At(5) out of range should report false")
	}
	if ev, ok := s.At(0); !ok || ev.Kind != types.EventBarClosed {
		t.Fatalf("At(0) = %+v, %v", ev, ok)
	}
}
