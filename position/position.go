package position

import (
	"math"

	"github.com/quantfold/tradecore/order"
)

// qtyEpsilon absorbs float64 rounding when comparing quantities.
const qtyEpsilon = 1e-9

// Position is the aggregate exposure for one (symbol, mode) pair.
// Quantity is signed: positive long, negative short. AvgPrice is the
// cost basis per unit of the current exposure and resets whenever the
// quantity crosses zero.
type Position struct {
	Symbol string
	Mode   order.Mode

	Quantity     float64
	AvgPrice     float64
	MarketPrice  float64
	RealizedPL   float64
	UnrealizedPL float64
	TotalPL      float64
	TaxPaid      float64

	ledger *Ledger
}

func newPosition(symbol string, mode order.Mode) *Position {
	return &Position{
		Symbol: symbol,
		Mode:   mode,
		ledger: NewLedger(symbol),
	}
}

func (p *Position) direction() Direction {
	if p.Quantity < 0 {
		return Short
	}
	return Long
}

func (p *Position) flat() bool {
	return math.Abs(p.Quantity) <= qtyEpsilon
}

// mark revalues the open exposure at price.
// (price - avg) * qty covers both signs: a short's quantity is
// negative, which inverts the sign as required.
func (p *Position) mark(price float64) {
	p.MarketPrice = price
	if p.flat() {
		p.UnrealizedPL = 0
	} else {
		p.UnrealizedPL = (price - p.AvgPrice) * p.Quantity
	}
	p.TotalPL = p.RealizedPL + p.UnrealizedPL
}

// lotQuantity is the signed sum of remaining lot quantities.
func (p *Position) lotQuantity() float64 {
	return p.ledger.Remaining(Long) - p.ledger.Remaining(Short)
}

// Snapshot is an immutable copy of a position's aggregate state.
type Snapshot struct {
	Symbol       string
	Mode         order.Mode
	Quantity     float64
	AvgPrice     float64
	MarketPrice  float64
	RealizedPL   float64
	UnrealizedPL float64
	TotalPL      float64
	TaxPaid      float64
	OpenLots     int
}

func (p *Position) snapshot() Snapshot {
	open := 0
	for _, lot := range p.ledger.Lots(p.direction()) {
		if lot.RemainingQuantity > qtyEpsilon {
			open++
		}
	}
	return Snapshot{
		Symbol:       p.Symbol,
		Mode:         p.Mode,
		Quantity:     p.Quantity,
		AvgPrice:     p.AvgPrice,
		MarketPrice:  p.MarketPrice,
		RealizedPL:   p.RealizedPL,
		UnrealizedPL: p.UnrealizedPL,
		TotalPL:      p.TotalPL,
		TaxPaid:      p.TaxPaid,
		OpenLots:     open,
	}
}

// Value is the absolute market value of the exposure.
func (s Snapshot) Value() float64 {
	return math.Abs(s.Quantity) * s.MarketPrice
}
