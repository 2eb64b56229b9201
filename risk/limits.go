package risk

// Limits is the pre-trade risk configuration. It is a plain value:
// loaded once, copied into the Gate at construction, and never mutated
// in place. Replacing limits means constructing a new Gate.
type Limits struct {
	// MaxPositionPct caps a single position's fraction of portfolio
	// value.
	MaxPositionPct float64

	// MaxDailyLossPct caps today's realized+unrealized loss as a
	// fraction of portfolio value.
	MaxDailyLossPct float64

	// MaxCorrelation caps the trailing pairwise correlation between a
	// new symbol and any existing holding.
	MaxCorrelation float64

	// VaRConfidence is the confidence level used for VaR reporting.
	VaRConfidence float64

	// CorrelationWindow is the trailing window, in observations, for
	// the correlation check.
	CorrelationWindow int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPositionPct:    0.20,
		MaxDailyLossPct:   0.05,
		MaxCorrelation:    0.85,
		VaRConfidence:     0.95,
		CorrelationWindow: 30,
	}
}
