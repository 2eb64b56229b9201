// Package engine is the order lifecycle manager: it validates orders,
// gates them through pre-trade risk checks, executes them against
// market quotes, folds the resulting trades into the position book and
// journals every step.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/tradecore/internal/metrics"
	"github.com/quantfold/tradecore/journal"
	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/pkg/id"
	"github.com/quantfold/tradecore/position"
	"github.com/quantfold/tradecore/risk"
	"github.com/quantfold/tradecore/sim"
)

// Options configures a Manager.
type Options struct {
	Cash        float64
	Fees        sim.FeeSchedule
	Limits      risk.Limits
	Journal     journal.Journal
	Logger      *zap.Logger
	AutoExecute bool
	OrderTTL    time.Duration

	// MonteCarloDraws and Seed control reproducible Monte-Carlo VaR.
	MonteCarloDraws int
	Seed            int64

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Manager owns orders and trades. All order mutation is serialized by
// one mutex: a cancel and a fill racing on the same order resolve to a
// single winner, and the loser fails with a ConflictError.
type Manager struct {
	mu     sync.Mutex
	orders map[string]*order.Order

	cashMu sync.Mutex
	cash   float64

	book    *position.Book
	gate    *risk.Gate
	store   *market.Store
	history *market.History
	journal journal.Journal
	fees    sim.FeeSchedule

	autoExecute bool
	orderTTL    time.Duration
	mcDraws     int
	seed        int64
	clock       func() time.Time
	logger      *zap.Logger
}

func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	j := opts.Journal
	if j == nil {
		j = journal.NewMemory()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	draws := opts.MonteCarloDraws
	if draws <= 0 {
		draws = 10000
	}

	m := &Manager{
		orders:      make(map[string]*order.Order),
		cash:        opts.Cash,
		book:        position.NewBook(opts.Fees.TaxRate, logger),
		store:       market.NewStore(),
		history:     market.NewHistory(),
		journal:     j,
		fees:        opts.Fees,
		autoExecute: opts.AutoExecute,
		orderTTL:    opts.OrderTTL,
		mcDraws:     draws,
		seed:        opts.Seed,
		clock:       clock,
		logger:      logger,
	}
	m.gate = risk.NewGate(opts.Limits, m, m.history, logger)
	return m
}

// Quotes exposes the quote store so a feed can be wired directly.
func (m *Manager) Quotes() *market.Store { return m.store }

// History exposes the recorded close series.
func (m *Manager) History() *market.History { return m.history }

// Place validates an order, runs the risk gate and submits it. In
// simulated mode (or with auto-execution on) it immediately attempts
// execution; a missing market price leaves the order SUBMITTED for a
// later rescan.
func (m *Manager) Place(ctx context.Context, req order.Request) (order.Order, error) {
	now := m.clock()
	o := order.New(req, now)
	if o.Mode == "" {
		o.Mode = order.Simulated
	}

	if err := o.Validate(); err != nil {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		m.logger.Info("order rejected",
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return order.Order{}, err
	}

	if d := m.gate.Check(o, m.referencePrice(ctx, o)); !d.Allowed {
		o.Status = order.StatusRejected
		m.mu.Lock()
		m.orders[o.ID] = o
		m.mu.Unlock()

		m.recordOrder(o)
		metrics.OrdersRejected.WithLabelValues("risk").Inc()
		metrics.RiskDenials.WithLabelValues(d.Violation.Check).Inc()
		return *o, d.Err()
	}

	o.Status = order.StatusSubmitted
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()

	m.recordOrder(o)
	metrics.OrdersPlaced.Inc()
	m.logger.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("kind", string(o.Kind)),
		zap.String("side", string(o.Side)),
		zap.Float64("quantity", o.Quantity),
	)

	if m.autoExecute || o.Mode == order.Simulated {
		if _, err := m.AttemptExecution(ctx, o.ID); err != nil && !errors.Is(err, market.ErrNoQuote) {
			return m.snapshotOrder(o.ID), err
		}
	}
	return m.snapshotOrder(o.ID), nil
}

// Cancel moves an order to CANCELLED. Only PENDING, SUBMITTED and
// PARTIALLY_FILLED orders can be cancelled; anything terminal yields an
// InvalidStateError and leaves the order untouched.
func (m *Manager) Cancel(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return &order.InvalidStateError{OrderID: orderID, Op: "cancel"}
	}
	if !o.Cancellable() {
		return &order.InvalidStateError{OrderID: orderID, Status: o.Status, Op: "cancel"}
	}

	o.Status = order.StatusCancelled
	o.CancelledAt = m.clock()

	m.recordOrder(o)
	metrics.OrdersCancelled.Inc()
	m.logger.Info("order cancelled", zap.String("order_id", orderID))
	return nil
}

// AttemptExecution tries to fill an order against the current quote.
// It returns (false, market.ErrNoQuote) when no price is known (the
// order stays SUBMITTED) and (false, nil) when the order's condition
// is simply not met yet. A fill that loses the race against a
// concurrent cancel fails with a ConflictError and applies nothing.
func (m *Manager) AttemptExecution(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return false, &order.InvalidStateError{OrderID: orderID, Op: "execute"}
	}
	if !o.Fillable() {
		status := o.Status
		m.mu.Unlock()
		return false, &order.InvalidStateError{OrderID: orderID, Status: status, Op: "execute"}
	}
	symbol := o.Symbol
	m.mu.Unlock()

	// The price lookup is the only blocking step and happens outside
	// the lock; the commit below re-checks the order's state.
	quote, err := m.store.Quote(ctx, symbol)
	if err != nil {
		return false, err
	}

	return m.commitFill(o.ID, quote)
}

// commitFill re-validates the order under the lock, decides the fill
// and applies it atomically: book mutation, trade persistence and
// order update either all happen or none do.
func (m *Manager) commitFill(orderID string, quote market.Quote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return false, &order.InvalidStateError{OrderID: orderID, Op: "execute"}
	}
	if !o.Fillable() {
		// The order changed state between the price lookup and the
		// commit: the other transition won.
		return false, &order.ConflictError{OrderID: orderID, Status: o.Status, Op: "fill"}
	}

	fill, filled, err := sim.Decide(o, quote, m.fees)
	if err != nil {
		return false, err
	}
	if !filled {
		return false, nil
	}

	now := m.clock()
	trade := order.Trade{
		ID:         id.New(),
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Mode:       o.Mode,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Commission: fill.Commission,
		Tax:        fill.Tax,
		Time:       now,
	}

	cp := m.book.Checkpoint(o.Symbol, o.Mode)
	res, err := m.book.Apply(trade)
	if err != nil {
		m.book.Restore(cp)
		return false, err
	}

	// A failed durable write rolls the lot/position mutation back; no
	// partial consumption survives, and the order is left as it was.
	if err := m.journal.RecordTrade(journal.FromTrade(trade)); err != nil {
		m.book.Restore(cp)
		m.logger.Error("trade persistence failed, rolled back",
			zap.String("order_id", o.ID),
			zap.String("trade_id", trade.ID),
			zap.Error(err),
		)
		return false, err
	}

	o.RecordFill(fill.Quantity, fill.Price, now)
	m.applyCash(trade)

	m.recordOrder(o)
	m.recordPosition(res.Position)
	metrics.TradesRecorded.Inc()
	if o.Status == order.StatusFilled {
		metrics.OrdersFilled.Inc()
	}

	m.logger.Info("order executed",
		zap.String("order_id", o.ID),
		zap.String("trade_id", trade.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.String("status", string(o.Status)),
		zap.Float64("realized_pl", res.RealizedPL),
	)
	return true, nil
}

// OnQuote ingests a market update: caches it, extends the return
// history, marks positions to market and retries every waiting order
// for the symbol.
func (m *Manager) OnQuote(ctx context.Context, q market.Quote) {
	m.store.Set(q)
	m.history.Record(q.Symbol, q.Mid())
	m.book.MarkToMarket(q.Symbol, order.Simulated, q.Mid())
	m.book.MarkToMarket(q.Symbol, order.Live, q.Mid())

	for _, oid := range m.fillableOrders(q.Symbol) {
		if _, err := m.AttemptExecution(ctx, oid); err != nil {
			if skippableRescanError(err) {
				continue
			}
			m.logger.Error("rescan execution failed",
				zap.String("order_id", oid),
				zap.Error(err),
			)
		}
	}
}

// skippableRescanError filters the expected rescan outcomes: no quote
// yet, or the order was finished by someone else while we got to it.
func skippableRescanError(err error) bool {
	var conflict *order.ConflictError
	var invalid *order.InvalidStateError
	return errors.Is(err, market.ErrNoQuote) || errors.As(err, &conflict) || errors.As(err, &invalid)
}

// Rescan retries every waiting order against current quotes. Run it
// periodically for conditional orders whose symbol quotes arrive out of
// band.
func (m *Manager) Rescan(ctx context.Context) error {
	for _, oid := range m.fillableOrders("") {
		if _, err := m.AttemptExecution(ctx, oid); err != nil {
			if skippableRescanError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// ExpireStale expires submitted orders older than the configured TTL.
func (m *Manager) ExpireStale(context.Context) error {
	if m.orderTTL <= 0 {
		return nil
	}
	cutoff := m.clock().Add(-m.orderTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if !o.Fillable() || o.CreatedAt.After(cutoff) {
			continue
		}
		o.Status = order.StatusExpired
		m.recordOrder(o)
		metrics.OrdersExpired.Inc()
		m.logger.Info("order expired",
			zap.String("order_id", o.ID),
			zap.Time("created_at", o.CreatedAt),
		)
	}
	return nil
}

// ResetDay zeroes the daily realized P&L accumulator. The scheduler
// owns the day boundary.
func (m *Manager) ResetDay(context.Context) error {
	m.book.ResetDay()
	return nil
}

func (m *Manager) fillableOrders(symbol string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, o := range m.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if o.Fillable() {
			out = append(out, o.ID)
		}
	}
	return out
}

// Order returns a copy of one order's current state.
func (m *Manager) Order(orderID string) (order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.Order{}, false
	}
	return *o, true
}

func (m *Manager) snapshotOrder(orderID string) order.Order {
	o, _ := m.Order(orderID)
	return o
}

// Position returns the book snapshot for one (symbol, mode).
func (m *Manager) Position(symbol string, mode order.Mode) (position.Snapshot, bool) {
	return m.book.Get(symbol, mode)
}

// Lots returns the cost-basis lots backing one position.
func (m *Manager) Lots(symbol string, mode order.Mode, dir position.Direction) []position.Lot {
	return m.book.Lots(symbol, mode, dir)
}

// RiskCheck evaluates an order spec against the gate without placing
// it.
func (m *Manager) RiskCheck(ctx context.Context, req order.Request) risk.Decision {
	o := order.New(req, m.clock())
	if o.Mode == "" {
		o.Mode = order.Simulated
	}
	return m.gate.Check(o, m.referencePrice(ctx, o))
}

// ComputeVaR reports the VaR amount for one symbol's exposure, or for
// the whole portfolio when symbol is empty. A flat exposure has zero
// VaR regardless of method.
func (m *Manager) ComputeVaR(symbol string, method risk.Method, confidence float64) (float64, error) {
	if confidence <= 0 {
		confidence = m.gate.Limits().VaRConfidence
	}

	var returns []float64
	var value float64
	if symbol == "" {
		returns, value = m.portfolioReturns()
	} else {
		returns = m.history.Returns(symbol, 0)
		for _, h := range m.book.Snapshots() {
			if h.Symbol == symbol {
				value += h.Value()
			}
		}
	}

	v, err := risk.VaR(method, returns, confidence, m.mcDraws, m.seed)
	if err != nil {
		return 0, err
	}
	return v * value, nil
}

// ExpectedShortfall is the portfolio-weighted CVaR amount analogue of
// ComputeVaR.
func (m *Manager) ExpectedShortfall(symbol string, confidence float64) float64 {
	if confidence <= 0 {
		confidence = m.gate.Limits().VaRConfidence
	}

	var returns []float64
	var value float64
	if symbol == "" {
		returns, value = m.portfolioReturns()
	} else {
		returns = m.history.Returns(symbol, 0)
		for _, h := range m.book.Snapshots() {
			if h.Symbol == symbol {
				value += h.Value()
			}
		}
	}
	return risk.ExpectedShortfall(returns, confidence) * value
}

// portfolioReturns builds a value-weighted return series across
// current holdings.
func (m *Manager) portfolioReturns() ([]float64, float64) {
	holdings := m.book.Snapshots()

	var total float64
	type entry struct {
		weight  float64
		returns []float64
	}
	var entries []entry

	for _, h := range holdings {
		v := h.Value()
		if v <= 0 {
			continue
		}
		total += v
		entries = append(entries, entry{weight: v, returns: m.history.Returns(h.Symbol, 0)})
	}
	if total <= 0 || len(entries) == 0 {
		return nil, 0
	}

	n := -1
	for _, e := range entries {
		if n < 0 || len(e.returns) < n {
			n = len(e.returns)
		}
	}
	if n < 1 {
		return nil, total
	}

	combined := make([]float64, n)
	for _, e := range entries {
		w := e.weight / total
		tail := e.returns[len(e.returns)-n:]
		for i, r := range tail {
			combined[i] += w * r
		}
	}
	return combined, total
}

// PortfolioView implements risk.PortfolioSource. The order lock is
// held while the book is read, so a commit cannot land between the
// value, holdings and day P&L readings of one evaluation.
func (m *Manager) PortfolioView() risk.View {
	m.mu.Lock()
	defer m.mu.Unlock()

	holdings := m.book.Snapshots()

	m.cashMu.Lock()
	pv := m.cash
	m.cashMu.Unlock()

	day := m.book.DayRealized()
	for _, h := range holdings {
		pv += h.Value()
		day += h.UnrealizedPL
	}
	return risk.View{PortfolioValue: pv, Holdings: holdings, DayPL: day}
}

// PortfolioValue is cash plus the absolute market value of all
// positions.
func (m *Manager) PortfolioValue() float64 { return m.PortfolioView().PortfolioValue }

// Holdings is the current position snapshots.
func (m *Manager) Holdings() []position.Snapshot { return m.PortfolioView().Holdings }

// DayPL is today's realized plus the current unrealized P&L.
func (m *Manager) DayPL() float64 { return m.PortfolioView().DayPL }

// Cash is the uninvested balance.
func (m *Manager) Cash() float64 {
	m.cashMu.Lock()
	defer m.cashMu.Unlock()
	return m.cash
}

func (m *Manager) applyCash(t order.Trade) {
	m.cashMu.Lock()
	defer m.cashMu.Unlock()
	if t.Side == order.Buy {
		m.cash -= t.Cost()
	} else {
		m.cash += t.Value() - t.Commission - t.Tax
	}
}

// referencePrice resolves the price an order would execute around: the
// live quote when present, else the order's own limit or stop price.
func (m *Manager) referencePrice(ctx context.Context, o *order.Order) float64 {
	if q, err := m.store.Quote(ctx, o.Symbol); err == nil {
		if o.Side == order.Buy {
			return q.Ask
		}
		return q.Bid
	}
	if o.LimitPrice != nil {
		return *o.LimitPrice
	}
	if o.StopPrice != nil {
		return *o.StopPrice
	}
	return 0
}

func (m *Manager) recordOrder(o *order.Order) {
	if err := m.journal.RecordOrder(journal.FromOrder(o, m.clock())); err != nil {
		m.logger.Error("order journaling failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (m *Manager) recordPosition(s position.Snapshot) {
	if err := m.journal.RecordPosition(journal.FromPosition(s, m.clock())); err != nil {
		m.logger.Error("position journaling failed",
			zap.String("symbol", s.Symbol),
			zap.Error(err),
		)
	}
}
