package market

import (
	"context"
	"errors"
	"time"
)

// ErrNoQuote means no market price is currently known for a symbol.
// It is the "cannot execute now" condition, not a failure: orders that
// hit it simply stay submitted until a quote arrives.
var ErrNoQuote = errors.New("market: no quote for symbol")

// Quote is a bid/ask snapshot for a single symbol.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64

	// Liquidity is the quantity available at this quote. Zero means
	// unbounded; a positive value caps a single fill and produces
	// partial fills.
	Liquidity float64

	Time time.Time
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Source looks up the current market price for a symbol. Absence of a
// price is reported as ErrNoQuote.
type Source interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}
