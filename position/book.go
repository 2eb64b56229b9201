package position

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/tradecore/order"
)

type key struct {
	symbol string
	mode   order.Mode
}

// Book owns every position and its lots. A single lock serializes all
// mutation, which satisfies the one-writer-per-(symbol, mode) rule and
// gives readers a consistent, untorn snapshot of the whole portfolio.
type Book struct {
	mu          sync.RWMutex
	positions   map[key]*Position
	taxRate     float64
	dayRealized float64
	logger      *zap.Logger
}

func NewBook(taxRate float64, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		positions: make(map[key]*Position),
		taxRate:   taxRate,
		logger:    logger,
	}
}

// ApplyResult reports what a trade did to the position.
type ApplyResult struct {
	RealizedPL     float64
	Tax            float64
	ClosedQuantity float64
	OpenedQuantity float64
	Position       Snapshot
}

// Apply folds one trade into the book.
//
// Same-direction trades (or trades against a flat position) add a lot
// and recompute the average price as the quantity-weighted mean of the
// old basis and the new fill. Opposite-direction trades consume lots
// FIFO up to the existing quantity; any excess opens a fresh position
// in the other direction at the fill price. A sign flip is handled as
// those two explicit steps.
func (b *Book) Apply(t order.Trade) (ApplyResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{symbol: t.Symbol, mode: t.Mode}
	p, ok := b.positions[k]
	if !ok {
		p = newPosition(t.Symbol, t.Mode)
		b.positions[k] = p
	}

	var res ApplyResult
	signed := t.SignedQuantity()

	if p.flat() || sameSign(p.Quantity, signed) {
		b.increase(p, signed, t)
		res.OpenedQuantity = math.Abs(signed)
	} else {
		closing := math.Min(math.Abs(p.Quantity), math.Abs(signed))
		realized, tax, err := p.ledger.Consume(p.direction(), closing, t.Price, b.taxRate)
		if err != nil {
			return ApplyResult{}, err
		}

		p.RealizedPL += realized
		p.TaxPaid += tax
		b.dayRealized += realized
		res.RealizedPL = realized
		res.Tax = tax
		res.ClosedQuantity = closing

		p.Quantity += sign(signed) * closing
		if p.flat() {
			p.Quantity = 0
			p.AvgPrice = 0
		}

		// Excess beyond the close opens the opposite direction at the
		// fill price.
		if excess := math.Abs(signed) - closing; excess > qtyEpsilon {
			b.increase(p, sign(signed)*excess, t)
			res.OpenedQuantity = excess
		}
	}

	p.mark(t.Price)

	if err := b.checkInvariant(p); err != nil {
		b.logger.Error("position invariant violated",
			zap.String("symbol", p.Symbol),
			zap.String("mode", string(p.Mode)),
			zap.Error(err),
		)
		return ApplyResult{}, err
	}

	res.Position = p.snapshot()

	b.logger.Debug("trade applied",
		zap.String("symbol", t.Symbol),
		zap.String("side", string(t.Side)),
		zap.Float64("quantity", t.Quantity),
		zap.Float64("price", t.Price),
		zap.Float64("position", p.Quantity),
		zap.Float64("realized_pl", res.RealizedPL),
	)
	return res, nil
}

// increase adds signed exposure and reweights the average price.
func (b *Book) increase(p *Position, signed float64, t order.Trade) {
	dir := Long
	if signed < 0 {
		dir = Short
	}
	p.ledger.Add(dir, math.Abs(signed), t.Price, t.Time)

	oldAbs := math.Abs(p.Quantity)
	addAbs := math.Abs(signed)
	newAbs := oldAbs + addAbs
	p.AvgPrice = (p.AvgPrice*oldAbs + t.Price*addAbs) / newAbs
	p.Quantity += signed
}

// checkInvariant verifies that the signed position quantity equals the
// signed sum of remaining lot quantities.
func (b *Book) checkInvariant(p *Position) error {
	lots := p.lotQuantity()
	if math.Abs(lots-p.Quantity) > 1e-6 {
		return fmt.Errorf("position %s/%s: quantity %.6f != lot sum %.6f",
			p.Symbol, p.Mode, p.Quantity, lots)
	}
	return nil
}

// MarkToMarket revalues one position at the current price. Lots are
// untouched.
func (b *Book) MarkToMarket(symbol string, mode order.Mode, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.positions[key{symbol: symbol, mode: mode}]; ok {
		p.mark(price)
	}
}

// Get returns a snapshot of one position.
func (b *Book) Get(symbol string, mode order.Mode) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[key{symbol: symbol, mode: mode}]
	if !ok {
		return Snapshot{}, false
	}
	return p.snapshot(), true
}

// Snapshots returns a consistent copy of every position, taken under a
// single read lock so risk checks never observe a half-applied trade.
func (b *Book) Snapshots() []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Snapshot, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p.snapshot())
	}
	return out
}

// Lots returns copies of the lots backing one position, insertion order.
func (b *Book) Lots(symbol string, mode order.Mode, dir Direction) []Lot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[key{symbol: symbol, mode: mode}]
	if !ok {
		return nil
	}
	lots := p.ledger.Lots(dir)
	out := make([]Lot, len(lots))
	for i, lot := range lots {
		out[i] = *lot
	}
	return out
}

// DayRealized is the realized P&L accumulated since the last ResetDay.
func (b *Book) DayRealized() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dayRealized
}

// UnrealizedPL is the current total open P&L across positions.
func (b *Book) UnrealizedPL() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var sum float64
	for _, p := range b.positions {
		sum += p.UnrealizedPL
	}
	return sum
}

// ResetDay zeroes the day-realized accumulator. The scheduler owns the
// day boundary.
func (b *Book) ResetDay() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dayRealized = 0
}

// Checkpoint captures one position's full state (lots included) so a
// failed persistence write can be rolled back without any partial lot
// consumption surviving.
type Checkpoint struct {
	key         key
	existed     bool
	position    *Position
	dayRealized float64
}

func (b *Book) Checkpoint(symbol string, mode order.Mode) Checkpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	k := key{symbol: symbol, mode: mode}
	cp := Checkpoint{key: k, dayRealized: b.dayRealized}
	if p, ok := b.positions[k]; ok {
		cp.existed = true
		clone := *p
		clone.ledger = p.ledger.clone()
		cp.position = &clone
	}
	return cp
}

// Restore reinstates a checkpoint, discarding everything applied to the
// position since it was taken.
func (b *Book) Restore(cp Checkpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dayRealized = cp.dayRealized
	if !cp.existed {
		delete(b.positions, cp.key)
		return
	}
	clone := *cp.position
	clone.ledger = cp.position.ledger.clone()
	b.positions[cp.key] = &clone
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
