package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/quantfold/tradecore/journal"
	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/position"
	"github.com/quantfold/tradecore/risk"
	"github.com/quantfold/tradecore/sim"
)

func newManager(t *testing.T, cash float64) (*Manager, *journal.Memory) {
	t.Helper()
	j := journal.NewMemory()
	m := New(Options{
		Cash:    cash,
		Fees:    sim.FeeSchedule{},
		Limits:  risk.DefaultLimits(),
		Journal: j,
	})
	return m, j
}

func setQuote(t *testing.T, m *Manager, symbol string, bid, ask float64) {
	t.Helper()
	m.OnQuote(context.Background(), market.Quote{
		Symbol: symbol,
		Bid:    bid,
		Ask:    ask,
		Time:   time.Now(),
	})
}

func place(t *testing.T, m *Manager, req order.Request) order.Order {
	t.Helper()
	o, err := m.Place(context.Background(), req)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

func marketBuy(symbol string, qty float64) order.Request {
	return order.Request{
		Symbol:   symbol,
		Kind:     order.Market,
		Side:     order.Buy,
		Mode:     order.Simulated,
		Quantity: qty,
	}
}

func marketSell(symbol string, qty float64) order.Request {
	return order.Request{
		Symbol:   symbol,
		Kind:     order.Market,
		Side:     order.Sell,
		Mode:     order.Simulated,
		Quantity: qty,
	}
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPlaceMarketBuyAutoExecutes(t *testing.T) {
	m, j := newManager(t, 1_000_000)
	setQuote(t, m, "ACME", 99.90, 100.10)

	o := place(t, m, marketBuy("ACME", 100))

	if o.Status != order.StatusFilled {
		t.Fatalf("status = %s, want FILLED", o.Status)
	}
	if !approxEqual(o.AvgFillPrice, 100.10, 1e-9) {
		t.Fatalf("avg fill price = %.4f, want 100.10 (ask)", o.AvgFillPrice)
	}

	p, ok := m.Position("ACME", order.Simulated)
	if !ok || !approxEqual(p.Quantity, 100, 1e-9) {
		t.Fatalf("position = %+v, want qty 100", p)
	}
	if !approxEqual(m.Cash(), 1_000_000-100*100.10, 1e-6) {
		t.Fatalf("cash = %.2f", m.Cash())
	}
	if j.TradeCount() != 1 {
		t.Fatalf("trade count = %d, want 1", j.TradeCount())
	}
}

func TestPlaceWithoutQuoteStaysSubmitted(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	o := place(t, m, marketBuy("ACME", 100))
	if o.Status != order.StatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", o.Status)
	}

	// The first quote for the symbol fills the waiting order.
	setQuote(t, m, "ACME", 99.90, 100.10)

	got, _ := m.Order(o.ID)
	if got.Status != order.StatusFilled {
		t.Fatalf("status after quote = %s, want FILLED", got.Status)
	}
}

func TestLimitOrderWaitsForPrice(t *testing.T) {
	m, _ := newManager(t, 1_000_000)
	setQuote(t, m, "ACME", 100.90, 101.10)

	limit := 100.0
	o := place(t, m, order.Request{
		Symbol:     "ACME",
		Kind:       order.Limit,
		Side:       order.Buy,
		Mode:       order.Simulated,
		Quantity:   50,
		LimitPrice: &limit,
	})
	if o.Status != order.StatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED while above limit", o.Status)
	}

	// The market drops through the limit; the fill price never
	// crosses it.
	setQuote(t, m, "ACME", 99.30, 99.50)

	got, _ := m.Order(o.ID)
	if got.Status != order.StatusFilled {
		t.Fatalf("status = %s, want FILLED", got.Status)
	}
	if !approxEqual(got.AvgFillPrice, 99.50, 1e-9) {
		t.Fatalf("avg fill price = %.4f, want 99.50", got.AvgFillPrice)
	}
}

func TestCancelPreventsLaterFill(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	o := place(t, m, marketBuy("ACME", 100))
	if err := m.Cancel(context.Background(), o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	setQuote(t, m, "ACME", 99.90, 100.10)

	got, _ := m.Order(o.ID)
	if got.Status != order.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}
	if _, ok := m.Position("ACME", order.Simulated); ok {
		t.Fatal("cancelled order must not open a position")
	}
}

func TestFillLosesRaceToCancel(t *testing.T) {
	m, j := newManager(t, 1_000_000)

	// No quote yet, so the order waits.
	o := place(t, m, marketBuy("ACME", 100))

	// The cancel commits in the window between an executor's price
	// lookup and its commit; the late commit must lose cleanly.
	if err := m.Cancel(context.Background(), o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	filled, err := m.commitFill(o.ID, market.Quote{
		Symbol: "ACME", Bid: 99.90, Ask: 100.10, Time: time.Now(),
	})

	var conflict *order.ConflictError
	if filled || !errors.As(err, &conflict) {
		t.Fatalf("late commit: filled=%v err=%v, want ConflictError", filled, err)
	}
	if conflict.Status != order.StatusCancelled {
		t.Fatalf("conflict status = %s, want CANCELLED", conflict.Status)
	}

	// The loser applied nothing.
	got, _ := m.Order(o.ID)
	if got.Status != order.StatusCancelled || got.FilledQuantity != 0 {
		t.Fatalf("order after lost commit: %+v", got)
	}
	if _, ok := m.Position("ACME", order.Simulated); ok {
		t.Fatal("lost commit must not open a position")
	}
	if j.TradeCount() != 0 {
		t.Fatalf("trade count = %d, want 0", j.TradeCount())
	}
}

func TestConcurrentCancelAndFill(t *testing.T) {
	m, j := newManager(t, 100_000_000)
	ctx := context.Background()

	const n = 50
	ids := make([]string, n)
	for i := range ids {
		ids[i] = place(t, m, marketBuy("ACME", 1)).ID
	}

	q := market.Quote{Symbol: "ACME", Bid: 99.90, Ask: 100.10, Time: time.Now()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			m.OnQuote(ctx, q)
		}
	}()
	for _, oid := range ids {
		// Losing to a concurrent fill is expected here.
		m.Cancel(ctx, oid)
	}
	<-done
	m.OnQuote(ctx, q)

	// Every order filled or cancelled, never both, and each fill was
	// applied exactly once.
	var filled int
	var filledQty float64
	for _, oid := range ids {
		o, _ := m.Order(oid)
		switch o.Status {
		case order.StatusFilled:
			filled++
			filledQty += o.FilledQuantity
		case order.StatusCancelled:
			if o.FilledQuantity != 0 {
				t.Fatalf("cancelled order %s has fills: %+v", oid, o)
			}
		default:
			t.Fatalf("order %s ended %s, want FILLED or CANCELLED", oid, o.Status)
		}
	}
	if j.TradeCount() != filled {
		t.Fatalf("trade count = %d, filled orders = %d", j.TradeCount(), filled)
	}
	if p, ok := m.Position("ACME", order.Simulated); ok && !approxEqual(p.Quantity, filledQty, 1e-9) {
		t.Fatalf("book quantity = %.2f, total filled = %.2f", p.Quantity, filledQty)
	}
}

func TestCancelTerminalOrderFails(t *testing.T) {
	m, _ := newManager(t, 1_000_000)
	setQuote(t, m, "ACME", 99.90, 100.10)

	o := place(t, m, marketBuy("ACME", 100))

	err := m.Cancel(context.Background(), o.ID)
	var invalid *order.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("cancel filled order: got %v, want InvalidStateError", err)
	}
	if invalid.Status != order.StatusFilled {
		t.Fatalf("error status = %s, want FILLED", invalid.Status)
	}

	// The order is untouched by the failed cancel.
	got, _ := m.Order(o.ID)
	if got.Status != order.StatusFilled {
		t.Fatalf("status = %s, want FILLED", got.Status)
	}
}

func TestCancelUnknownOrderFails(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	err := m.Cancel(context.Background(), "no-such-order")
	var invalid *order.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidStateError", err)
	}
}

func TestValidationRejectsBadRequests(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	_, err := m.Place(context.Background(), marketBuy("ACME", 0))
	var verr *order.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}

	_, err = m.Place(context.Background(), order.Request{
		Symbol:   "ACME",
		Kind:     order.Limit,
		Side:     order.Buy,
		Mode:     order.Simulated,
		Quantity: 10,
	})
	if !errors.As(err, &verr) || verr.Field != "limit_price" {
		t.Fatalf("got %v, want limit_price validation error", err)
	}
}

func TestRiskGateRejectsOversizedOrder(t *testing.T) {
	m, _ := newManager(t, 10_000)
	setQuote(t, m, "ACME", 99.90, 100.10)

	// The full account on one symbol is far past the 20% cap.
	o, err := m.Place(context.Background(), marketBuy("ACME", 99))

	var lerr *risk.LimitError
	if !errors.As(err, &lerr) {
		t.Fatalf("got %v, want LimitError", err)
	}
	if lerr.Check != risk.CheckPositionSize {
		t.Fatalf("check = %s, want %s", lerr.Check, risk.CheckPositionSize)
	}
	if o.Status != order.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", o.Status)
	}
	if _, ok := m.Position("ACME", order.Simulated); ok {
		t.Fatal("rejected order must not open a position")
	}
}

func TestTradeRollbackOnJournalFailure(t *testing.T) {
	j := journal.NewMemory()
	m := New(Options{
		Cash:    1_000_000,
		Limits:  risk.DefaultLimits(),
		Journal: j,
	})
	setQuote(t, m, "ACME", 99.90, 100.10)
	place(t, m, marketBuy("ACME", 100))

	j.FailTrades = errors.New("disk full")

	// The sell auto-executes and hits the failing write.
	o, err := m.Place(context.Background(), marketSell("ACME", 40))

	var perr *journal.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want PersistenceError", err)
	}

	// Nothing of the failed fill survives: the order is still open and
	// the lots are exactly as before.
	got, _ := m.Order(o.ID)
	if got.Status != order.StatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", got.Status)
	}
	p, _ := m.Position("ACME", order.Simulated)
	if !approxEqual(p.Quantity, 100, 1e-9) || !approxEqual(p.RealizedPL, 0, 1e-9) {
		t.Fatalf("position mutated by failed fill: %+v", p)
	}
	lots := m.Lots("ACME", order.Simulated, position.Long)
	if len(lots) != 1 || !approxEqual(lots[0].RemainingQuantity, 100, 1e-9) {
		t.Fatalf("lots mutated by failed fill: %+v", lots)
	}

	// Clearing the failure lets a rescan complete the same order.
	j.FailTrades = nil
	if err := m.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	got, _ = m.Order(o.ID)
	if got.Status != order.StatusFilled {
		t.Fatalf("status after rescan = %s, want FILLED", got.Status)
	}
}

func TestPartialFillOnThinLiquidity(t *testing.T) {
	m, _ := newManager(t, 1_000_000)
	m.OnQuote(context.Background(), market.Quote{
		Symbol: "ACME", Bid: 99.90, Ask: 100.10, Liquidity: 30, Time: time.Now(),
	})

	o := place(t, m, marketBuy("ACME", 100))
	if o.Status != order.StatusPartiallyFilled {
		t.Fatalf("status = %s, want PARTIALLY_FILLED", o.Status)
	}
	if !approxEqual(o.FilledQuantity, 30, 1e-9) || !approxEqual(o.RemainingQuantity, 70, 1e-9) {
		t.Fatalf("filled %.2f remaining %.2f", o.FilledQuantity, o.RemainingQuantity)
	}

	// A deeper quote completes the order.
	m.OnQuote(context.Background(), market.Quote{
		Symbol: "ACME", Bid: 99.95, Ask: 100.20, Time: time.Now(),
	})

	got, _ := m.Order(o.ID)
	if got.Status != order.StatusFilled {
		t.Fatalf("status = %s, want FILLED", got.Status)
	}
	want := (30*100.10 + 70*100.20) / 100
	if !approxEqual(got.AvgFillPrice, want, 1e-9) {
		t.Fatalf("avg fill price = %.4f, want %.4f", got.AvgFillPrice, want)
	}

	p, _ := m.Position("ACME", order.Simulated)
	if !approxEqual(p.Quantity, 100, 1e-9) {
		t.Fatalf("position = %.2f, want 100", p.Quantity)
	}
}

func TestSellRealizesFIFO(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	setQuote(t, m, "ACME", 899.90, 900.00)
	place(t, m, marketBuy("ACME", 100))

	setQuote(t, m, "ACME", 999.90, 1000.00)
	place(t, m, marketBuy("ACME", 50))

	setQuote(t, m, "ACME", 1100.00, 1100.20)
	place(t, m, marketSell("ACME", 120))

	p, _ := m.Position("ACME", order.Simulated)
	if !approxEqual(p.Quantity, 30, 1e-9) {
		t.Fatalf("position = %.2f, want 30", p.Quantity)
	}
	// 100 at 900 and 20 at 1000, all sold at the 1100 bid.
	wantRealized := 100*(1100-900) + 20*(1100-1000)
	if !approxEqual(p.RealizedPL, float64(wantRealized), 1e-6) {
		t.Fatalf("realized = %.2f, want %d", p.RealizedPL, wantRealized)
	}

	lots := m.Lots("ACME", order.Simulated, position.Long)
	if len(lots) != 2 || !approxEqual(lots[1].RemainingQuantity, 30, 1e-9) {
		t.Fatalf("lots = %+v", lots)
	}
}

func TestSellProceedsIncreaseCash(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	setQuote(t, m, "ACME", 99.90, 100.00)
	place(t, m, marketBuy("ACME", 100))
	cashAfterBuy := m.Cash()

	setQuote(t, m, "ACME", 110.00, 110.20)
	place(t, m, marketSell("ACME", 100))

	if !approxEqual(m.Cash(), cashAfterBuy+100*110.00, 1e-6) {
		t.Fatalf("cash = %.2f, want %.2f", m.Cash(), cashAfterBuy+100*110.00)
	}
}

func TestExpireStale(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := New(Options{
		Cash:     1_000_000,
		Limits:   risk.DefaultLimits(),
		Journal:  journal.NewMemory(),
		OrderTTL: time.Hour,
		Clock:    func() time.Time { return now },
	})

	o := place(t, m, marketBuy("ACME", 100))

	// Within the TTL nothing happens.
	if err := m.ExpireStale(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	got, _ := m.Order(o.ID)
	if got.Status != order.StatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", got.Status)
	}

	now = now.Add(2 * time.Hour)
	if err := m.ExpireStale(context.Background()); err != nil {
		t.Fatalf("expire: %v", err)
	}
	got, _ = m.Order(o.ID)
	if got.Status != order.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", got.Status)
	}

	// An expired order ignores later quotes.
	setQuote(t, m, "ACME", 99.90, 100.10)
	got, _ = m.Order(o.ID)
	if got.Status != order.StatusExpired {
		t.Fatalf("status after quote = %s, want EXPIRED", got.Status)
	}
}

func TestComputeVaRScalesWithExposure(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	closes := []float64{100, 101, 99, 100.5, 98.5, 99.5, 101.5, 100, 99, 100}
	for _, c := range closes {
		setQuote(t, m, "ACME", c-0.05, c+0.05)
	}

	// Flat book: zero VaR whatever the method.
	v, err := m.ComputeVaR("ACME", risk.Historical, 0.95)
	if err != nil {
		t.Fatalf("var: %v", err)
	}
	if v != 0 {
		t.Fatalf("flat VaR = %.4f, want 0", v)
	}

	place(t, m, marketBuy("ACME", 100))

	v, err = m.ComputeVaR("ACME", risk.Historical, 0.95)
	if err != nil {
		t.Fatalf("var: %v", err)
	}
	if v <= 0 {
		t.Fatalf("VaR = %.4f, want > 0", v)
	}

	p, _ := m.Position("ACME", order.Simulated)
	returns := m.History().Returns("ACME", 0)
	want := risk.HistoricalVaR(returns, 0.95) * math.Abs(p.Quantity) * p.MarketPrice
	if !approxEqual(v, want, 1e-9) {
		t.Fatalf("VaR = %.6f, want %.6f", v, want)
	}

	if _, err := m.ComputeVaR("ACME", risk.Method("bogus"), 0.95); err == nil {
		t.Fatal("unknown method must error")
	}
}

func TestDayPLAndReset(t *testing.T) {
	m, _ := newManager(t, 1_000_000)

	setQuote(t, m, "ACME", 99.90, 100.00)
	place(t, m, marketBuy("ACME", 100))
	setQuote(t, m, "ACME", 110.00, 110.10)
	place(t, m, marketSell("ACME", 100))

	if !approxEqual(m.DayPL(), 100*(110.00-100.00), 1e-6) {
		t.Fatalf("day P/L = %.2f", m.DayPL())
	}

	if err := m.ResetDay(context.Background()); err != nil {
		t.Fatalf("reset day: %v", err)
	}
	if !approxEqual(m.DayPL(), 0, 1e-9) {
		t.Fatalf("day P/L after reset = %.2f, want 0", m.DayPL())
	}
}
