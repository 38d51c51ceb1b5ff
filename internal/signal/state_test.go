package signal

import "testing"

func TestTransitionFirstSignalFires(t *testing.T) {
	next, fire := Transition(SideNone, BuyLong)
	if !fire {
		t.Fatal("first non-NONE signal must fire")
	}
	if next != SideBuy {
		t.Fatalf("state should move to BUY, got %s", next)
	}
}

func TestTransitionRepeatedSideSuppressed(t *testing.T) {
	next, fire := Transition(SideBuy, BuyShort)
	if fire {
		t.Fatal("a repeated BUY must not re-alert, regardless of window")
	}
	if next != SideBuy {
		t.Fatalf("state must stay BUY, got %s", next)
	}
}

func TestTransitionNoneNeverResets(t *testing.T) {
	prev := SideBuy
	for i := 0; i < 10; i++ {
		next, fire := Transition(prev, None)
		if fire {
			t.Fatal("NONE signals must never fire")
		}
		if next != SideBuy {
			t.Fatalf("NONE must not erase the latched side, got %s", next)
		}
		prev = next
	}

	// After any number of quiet cycles the opposite side still fires.
	next, fire := Transition(prev, SellLong)
	if !fire || next != SideSell {
		t.Fatalf("opposite side after quiet cycles must fire, got fire=%v side=%s", fire, next)
	}
}

func TestTransitionOppositeSideFires(t *testing.T) {
	next, fire := Transition(SideSell, BuyLong)
	if !fire || next != SideBuy {
		t.Fatalf("SELL→BUY must fire and move state, got fire=%v side=%s", fire, next)
	}
}

func TestParseSide(t *testing.T) {
	if ParseSide("BUY") != SideBuy || ParseSide("SELL") != SideSell {
		t.Fatal("persisted sides must round-trip")
	}
	if ParseSide("garbage") != SideNone || ParseSide("") != SideNone {
		t.Fatal("unknown side strings must degrade to NONE")
	}
}
