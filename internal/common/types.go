package common

// Side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side an order would trade against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce governs how long an unfilled order remains eligible to rest.
type TimeInForce int

const (
	// Good-till-cancel orders rest until cancelled, bounded by a maximum
	// resting duration.
	GTC TimeInForce = iota
	// Immediate-or-cancel orders are expected to fill right away and are
	// evicted once a short resting threshold passes.
	IOC
	// Day orders rest until the session boundary (end of the UTC day they
	// were submitted in).
	DAY
)

func (tif TimeInForce) String() string {
	switch tif {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case DAY:
		return "DAY"
	}
	return "unknown"
}
