// Package sim decides whether and at what price an order fills against
// a market quote. It is pure: no state, no side effects, so the
// lifecycle manager can call it speculatively and commit later.
package sim

import (
	"fmt"
	"math"

	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/order"
)

// Fill is a proposed execution: price, quantity and the fees that
// apply to it.
type Fill struct {
	Price      float64
	Quantity   float64
	Commission float64
	Tax        float64
}

// Decide returns the fill for o against quote q, or ok=false when the
// order's condition is not met (the order keeps waiting; this is not an
// error). An unrecognized kind or side, or a conditional order missing
// its limit or stop price, is an error rather than a silent no-fill.
//
// Buys execute against the ask, sells against the bid.
func Decide(o *order.Order, q market.Quote, fees FeeSchedule) (Fill, bool, error) {
	mkt, err := marketPrice(o.Side, q)
	if err != nil {
		return Fill{}, false, err
	}

	var price float64
	switch o.Kind {
	case order.Market:
		price = mkt

	case order.Limit:
		if o.LimitPrice == nil {
			return Fill{}, false, fmt.Errorf("sim: limit order %s has no limit price", o.ID)
		}
		p, ok := limitFill(o.Side, *o.LimitPrice, mkt)
		if !ok {
			return Fill{}, false, nil
		}
		price = p

	case order.StopLoss:
		if o.StopPrice == nil {
			return Fill{}, false, fmt.Errorf("sim: stop order %s has no stop price", o.ID)
		}
		if !stopTriggered(o.Side, *o.StopPrice, mkt) {
			return Fill{}, false, nil
		}
		price = mkt

	case order.StopLimit:
		if o.StopPrice == nil || o.LimitPrice == nil {
			return Fill{}, false, fmt.Errorf("sim: stop-limit order %s needs stop and limit prices", o.ID)
		}
		if !stopTriggered(o.Side, *o.StopPrice, mkt) {
			return Fill{}, false, nil
		}
		p, ok := limitFill(o.Side, *o.LimitPrice, mkt)
		if !ok {
			return Fill{}, false, nil
		}
		price = p

	default:
		return Fill{}, false, fmt.Errorf("sim: unknown order kind %q", o.Kind)
	}

	qty := o.RemainingQuantity
	if q.Liquidity > 0 && q.Liquidity < qty {
		qty = q.Liquidity
	}
	if qty <= 0 {
		return Fill{}, false, nil
	}

	return Fill{
		Price:      price,
		Quantity:   qty,
		Commission: fees.Commission(price, qty),
		Tax:        fees.Tax(price, qty),
	}, true, nil
}

func marketPrice(side order.Side, q market.Quote) (float64, error) {
	switch side {
	case order.Buy:
		return q.Ask, nil
	case order.Sell:
		return q.Bid, nil
	}
	return 0, fmt.Errorf("sim: unknown order side %q", side)
}

// limitFill applies the limit rule: a buy fills only at or below the
// limit, a sell only at or above it, and the fill price never crosses
// the limit.
func limitFill(side order.Side, limit, mkt float64) (float64, bool) {
	if side == order.Buy {
		if mkt > limit {
			return 0, false
		}
		return math.Min(limit, mkt), true
	}
	if mkt < limit {
		return 0, false
	}
	return math.Max(limit, mkt), true
}

// stopTriggered applies the stop rule: a buy stop arms at or above the
// stop price (breakout), a sell stop at or below it (protective stop).
func stopTriggered(side order.Side, stop, mkt float64) bool {
	if side == order.Buy {
		return mkt >= stop
	}
	return mkt <= stop
}
