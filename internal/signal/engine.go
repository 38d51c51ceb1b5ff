package signal

// Avg is an optional gating average. The strict averages stay absent until
// their window has completely filled, and an absent average skips its checks
// entirely.
type Avg struct {
	Value float64
	OK    bool
}

// AvgOf adapts the (value, ok) pair returned by series.MeanLast.
func AvgOf(v float64, ok bool) Avg {
	return Avg{Value: v, OK: ok}
}

// Decide classifies price against the short- and long-window averages.
//
// The band is symmetric around 1.0: with threshold 1.1 a price more than 10%
// under an average is a buy (price < avg × (2 − threshold)) and more than 10%
// over it is a sell (price > avg × threshold). The long window is evaluated
// before the short one and buys before sells, so a price beyond both bands
// always yields the long-window variant.
func Decide(price float64, shortAvg, longAvg Avg, threshold float64) Signal {
	buy := 2 - threshold

	if longAvg.OK && price < longAvg.Value*buy {
		return BuyLong
	}
	if shortAvg.OK && price < shortAvg.Value*buy {
		return BuyShort
	}
	if longAvg.OK && price > longAvg.Value*threshold {
		return SellLong
	}
	if shortAvg.OK && price > shortAvg.Value*threshold {
		return SellShort
	}
	return None
}
