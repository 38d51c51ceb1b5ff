package signal

// Side is the signal collapsed to its direction. The alert latch and the
// persisted per-symbol state both work at this granularity.
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "NONE"
	}
}

// ParseSide maps a persisted side string back to a Side. Unknown input reads
// as NONE so a corrupt state record degrades to "never alerted".
func ParseSide(v string) Side {
	switch v {
	case "BUY":
		return SideBuy
	case "SELL":
		return SideSell
	default:
		return SideNone
	}
}

// Signal classifies the current price against the short- and long-window
// averages. The window qualifier matters for messaging only; state keeping
// collapses it via Side.
type Signal int

const (
	None Signal = iota
	BuyLong
	BuyShort
	SellLong
	SellShort
)

func (s Signal) String() string {
	switch s {
	case BuyLong:
		return "BUY_LONG"
	case BuyShort:
		return "BUY_SHORT"
	case SellLong:
		return "SELL_LONG"
	case SellShort:
		return "SELL_SHORT"
	default:
		return "NONE"
	}
}

// Side collapses the window qualifier.
func (s Signal) Side() Side {
	switch s {
	case BuyLong, BuyShort:
		return SideBuy
	case SellLong, SellShort:
		return SideSell
	default:
		return SideNone
	}
}

// IsLong reports whether the signal came from the long window.
func (s Signal) IsLong() bool {
	return s == BuyLong || s == SellLong
}
