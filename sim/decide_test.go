package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/order"
)

func ptr(f float64) *float64 { return &f }

func testOrder(kind order.Kind, side order.Side, qty float64, limit, stop *float64) *order.Order {
	return &order.Order{
		ID:                "o-1",
		Symbol:            "ACME",
		Kind:              kind,
		Side:              side,
		Mode:              order.Simulated,
		Quantity:          qty,
		RemainingQuantity: qty,
		LimitPrice:        limit,
		StopPrice:         stop,
		Status:            order.StatusSubmitted,
	}
}

func quote(bid, ask float64) market.Quote {
	return market.Quote{Symbol: "ACME", Bid: bid, Ask: ask}
}

func TestDecideMarket(t *testing.T) {
	t.Parallel()

	q := quote(99.90, 100.10)

	fill, ok, err := Decide(testOrder(order.Market, order.Buy, 100, nil, nil), q, FeeSchedule{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100.10, fill.Price, 1e-9)
	assert.InDelta(t, 100, fill.Quantity, 1e-9)

	fill, ok, err = Decide(testOrder(order.Market, order.Sell, 100, nil, nil), q, FeeSchedule{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 99.90, fill.Price, 1e-9)
}

func TestDecideLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		side      order.Side
		limit     float64
		bid, ask  float64
		wantFill  bool
		wantPrice float64
	}{
		{"buy above limit waits", order.Buy, 100, 100.90, 101.10, false, 0},
		{"buy at limit fills", order.Buy, 100, 99.90, 100.00, true, 100.00},
		{"buy below limit fills at market", order.Buy, 100, 98.90, 99.10, true, 99.10},
		{"sell below limit waits", order.Sell, 100, 98.90, 99.10, false, 0},
		{"sell at limit fills", order.Sell, 100, 100.00, 100.20, true, 100.00},
		{"sell above limit fills at market", order.Sell, 100, 101.90, 102.10, true, 101.90},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := testOrder(order.Limit, tt.side, 10, ptr(tt.limit), nil)
			fill, ok, err := Decide(o, quote(tt.bid, tt.ask), FeeSchedule{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantFill, ok)
			if tt.wantFill {
				assert.InDelta(t, tt.wantPrice, fill.Price, 1e-9)
			}
		})
	}
}

func TestDecideStopLoss(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		side     order.Side
		stop     float64
		bid, ask float64
		wantFill bool
	}{
		{"buy stop below market triggers", order.Buy, 100, 100.90, 101.10, true},
		{"buy stop at market triggers", order.Buy, 101.10, 100.90, 101.10, true},
		{"buy stop above market waits", order.Buy, 102, 100.90, 101.10, false},
		{"sell stop above market triggers", order.Sell, 100, 99.50, 99.70, true},
		{"sell stop at market triggers", order.Sell, 99.50, 99.50, 99.70, true},
		{"sell stop below market waits", order.Sell, 99, 99.50, 99.70, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := testOrder(order.StopLoss, tt.side, 10, nil, ptr(tt.stop))
			fill, ok, err := Decide(o, quote(tt.bid, tt.ask), FeeSchedule{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantFill, ok)
			if tt.wantFill {
				// Triggered stops fill at market.
				want := tt.ask
				if tt.side == order.Sell {
					want = tt.bid
				}
				assert.InDelta(t, want, fill.Price, 1e-9)
			}
		})
	}
}

func TestDecideStopLimit(t *testing.T) {
	t.Parallel()

	// Triggered and within the limit: fills, clamped to the limit.
	o := testOrder(order.StopLimit, order.Buy, 10, ptr(101.50), ptr(101.00))
	fill, ok, err := Decide(o, quote(100.90, 101.10), FeeSchedule{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 101.10, fill.Price, 1e-9)

	// Triggered but the market is past the limit: keeps waiting.
	o = testOrder(order.StopLimit, order.Buy, 10, ptr(101.00), ptr(100.50))
	_, ok, err = Decide(o, quote(101.40, 101.60), FeeSchedule{})
	require.NoError(t, err)
	assert.False(t, ok)

	// Not triggered.
	o = testOrder(order.StopLimit, order.Buy, 10, ptr(103.00), ptr(102.00))
	_, ok, err = Decide(o, quote(100.90, 101.10), FeeSchedule{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecideUnknownKind(t *testing.T) {
	t.Parallel()

	o := testOrder(order.Kind("ICEBERG"), order.Buy, 10, nil, nil)
	_, _, err := Decide(o, quote(99.90, 100.10), FeeSchedule{})
	assert.Error(t, err)
}

func TestDecideUnknownSide(t *testing.T) {
	t.Parallel()

	o := testOrder(order.Market, order.Side("HOLD"), 10, nil, nil)
	_, _, err := Decide(o, quote(99.90, 100.10), FeeSchedule{})
	assert.Error(t, err)
}

func TestDecideMissingPrices(t *testing.T) {
	t.Parallel()

	// Conditional orders without their prices error instead of
	// panicking; Decide is callable on unvalidated input.
	tests := []struct {
		name string
		o    *order.Order
	}{
		{"limit without limit price", testOrder(order.Limit, order.Buy, 10, nil, nil)},
		{"stop without stop price", testOrder(order.StopLoss, order.Sell, 10, nil, nil)},
		{"stop-limit without stop price", testOrder(order.StopLimit, order.Buy, 10, ptr(100), nil)},
		{"stop-limit without limit price", testOrder(order.StopLimit, order.Buy, 10, nil, ptr(100))},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok, err := Decide(tt.o, quote(99.90, 100.10), FeeSchedule{})
			require.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDecideLiquidityCapsQuantity(t *testing.T) {
	t.Parallel()

	o := testOrder(order.Market, order.Buy, 100, nil, nil)
	q := quote(99.90, 100.10)
	q.Liquidity = 30

	fill, ok, err := Decide(o, q, FeeSchedule{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30, fill.Quantity, 1e-9)
}

func TestDecideFees(t *testing.T) {
	t.Parallel()

	o := testOrder(order.Market, order.Buy, 100, nil, nil)
	fill, ok, err := Decide(o, quote(999.90, 1000.00), DefaultFees())
	require.NoError(t, err)
	require.True(t, ok)

	// 100 units at 1000: commission 0.15%, tax 0.1%.
	assert.InDelta(t, 150.0, fill.Commission, 1e-9)
	assert.InDelta(t, 100.0, fill.Tax, 1e-9)
	total := fill.Price*fill.Quantity + fill.Commission + fill.Tax
	assert.InDelta(t, 100250.0, total, 1e-9)
}
