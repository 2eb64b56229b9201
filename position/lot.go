package position

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfold/tradecore/pkg/id"
)

// Direction identifies which side of the book a lot belongs to. Long
// and short lots are tracked independently and never netted implicitly.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// Lot is a discrete, dated block of acquired quantity at a fixed unit
// cost. Invariant: RemainingQuantity + SoldQuantity == OriginalQuantity
// and RemainingQuantity >= 0.
type Lot struct {
	ID                string
	Symbol            string
	Direction         Direction
	OriginalQuantity  float64
	RemainingQuantity float64
	SoldQuantity      float64
	UnitCost          float64
	AcquiredAt        time.Time

	// Cumulative results of consumptions against this lot.
	RealizedPL float64
	TaxPaid    float64
}

// InsufficientLotsError means a consumption asked for more quantity
// than the ledger holds. The ledger never silently truncates.
type InsufficientLotsError struct {
	Symbol    string
	Direction Direction
	Requested float64
	Available float64
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("lots: %s %s: requested %.4f but only %.4f available",
		e.Symbol, e.Direction, e.Requested, e.Available)
}

// Ledger is a per-position FIFO queue of cost-basis lots, one queue per
// direction.
type Ledger struct {
	symbol string
	long   []*Lot
	short  []*Lot
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{symbol: symbol}
}

// Add appends a new lot. Buys that increase long exposure and sells
// that increase short exposure both land here, on their own queue.
func (l *Ledger) Add(dir Direction, qty, unitCost float64, at time.Time) *Lot {
	lot := &Lot{
		ID:                id.New(),
		Symbol:            l.symbol,
		Direction:         dir,
		OriginalQuantity:  qty,
		RemainingQuantity: qty,
		UnitCost:          unitCost,
		AcquiredAt:        at,
	}
	if dir == Short {
		l.short = append(l.short, lot)
	} else {
		l.long = append(l.long, lot)
	}
	return lot
}

// Consume closes qty against the oldest lots first and returns the
// realized P&L and tax liability of the closure. Lots sharing an
// acquisition date are consumed in insertion order (stable FIFO).
//
// Realized P&L per lot is (fillPrice - unitCost) * consumed for longs
// and the inverse for shorts; tax is fillPrice * consumed * taxRate.
func (l *Ledger) Consume(dir Direction, qty, fillPrice, taxRate float64) (realized, tax float64, err error) {
	avail := l.Remaining(dir)
	if qty > avail+qtyEpsilon {
		return 0, 0, &InsufficientLotsError{
			Symbol:    l.symbol,
			Direction: dir,
			Requested: qty,
			Available: avail,
		}
	}

	queue := l.long
	if dir == Short {
		queue = l.short
	}

	// Oldest acquisition first; SliceStable preserves insertion order
	// for identical dates.
	ordered := make([]*Lot, len(queue))
	copy(ordered, queue)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AcquiredAt.Before(ordered[j].AcquiredAt)
	})

	left := qty
	for _, lot := range ordered {
		if left <= qtyEpsilon {
			break
		}
		if lot.RemainingQuantity <= qtyEpsilon {
			continue
		}

		consumed := lot.RemainingQuantity
		if left < consumed {
			consumed = left
		}

		pl := (fillPrice - lot.UnitCost) * consumed
		if dir == Short {
			pl = -pl
		}
		t := fillPrice * consumed * taxRate

		lot.RemainingQuantity -= consumed
		lot.SoldQuantity += consumed
		lot.RealizedPL += pl
		lot.TaxPaid += t
		if lot.RemainingQuantity < 0 {
			lot.RemainingQuantity = 0
		}

		realized += pl
		tax += t
		left -= consumed
	}

	return realized, tax, nil
}

// Remaining is the total open quantity across lots for one direction.
func (l *Ledger) Remaining(dir Direction) float64 {
	queue := l.long
	if dir == Short {
		queue = l.short
	}
	var sum float64
	for _, lot := range queue {
		sum += lot.RemainingQuantity
	}
	return sum
}

// Lots returns the lots for one direction in insertion order, open and
// depleted alike. Callers must not mutate them.
func (l *Ledger) Lots(dir Direction) []*Lot {
	if dir == Short {
		return l.short
	}
	return l.long
}

func (l *Ledger) clone() *Ledger {
	c := &Ledger{symbol: l.symbol}
	c.long = cloneLots(l.long)
	c.short = cloneLots(l.short)
	return c
}

func cloneLots(lots []*Lot) []*Lot {
	if lots == nil {
		return nil
	}
	out := make([]*Lot, len(lots))
	for i, lot := range lots {
		cp := *lot
		out[i] = &cp
	}
	return out
}
