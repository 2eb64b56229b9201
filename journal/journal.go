// Package journal persists orders, trades and position snapshots. The
// engine treats it as its durable-storage collaborator: one write per
// fill, transactional per (symbol, mode) unit of work.
package journal

import (
	"fmt"
	"time"

	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/position"
)

type OrderRecord struct {
	OrderID    string
	Symbol     string
	Kind       string
	Side       string
	Mode       string
	Status     string
	Quantity   float64
	Filled     float64
	Remaining  float64
	AvgPrice   float64
	LimitPrice *float64
	StopPrice  *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type TradeRecord struct {
	TradeID    string
	OrderID    string
	Symbol     string
	Side       string
	Mode       string
	Quantity   float64
	Price      float64
	Commission float64
	Tax        float64
	Time       time.Time
}

type PositionRecord struct {
	Symbol       string
	Mode         string
	Quantity     float64
	AvgPrice     float64
	MarketPrice  float64
	RealizedPL   float64
	UnrealizedPL float64
	TotalPL      float64
	Time         time.Time
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordTrade(TradeRecord) error
	RecordPosition(PositionRecord) error
	Close() error
}

// PersistenceError wraps a failed durable write. The engine rolls the
// in-progress mutation back and surfaces this as fatal for the single
// order attempt.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("journal: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func FromOrder(o *order.Order, now time.Time) OrderRecord {
	return OrderRecord{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Kind:       string(o.Kind),
		Side:       string(o.Side),
		Mode:       string(o.Mode),
		Status:     string(o.Status),
		Quantity:   o.Quantity,
		Filled:     o.FilledQuantity,
		Remaining:  o.RemainingQuantity,
		AvgPrice:   o.AvgFillPrice,
		LimitPrice: o.LimitPrice,
		StopPrice:  o.StopPrice,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  now,
	}
}

func FromTrade(t order.Trade) TradeRecord {
	return TradeRecord{
		TradeID:    t.ID,
		OrderID:    t.OrderID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Mode:       string(t.Mode),
		Quantity:   t.Quantity,
		Price:      t.Price,
		Commission: t.Commission,
		Tax:        t.Tax,
		Time:       t.Time,
	}
}

func FromPosition(s position.Snapshot, now time.Time) PositionRecord {
	return PositionRecord{
		Symbol:       s.Symbol,
		Mode:         string(s.Mode),
		Quantity:     s.Quantity,
		AvgPrice:     s.AvgPrice,
		MarketPrice:  s.MarketPrice,
		RealizedPL:   s.RealizedPL,
		UnrealizedPL: s.UnrealizedPL,
		TotalPL:      s.TotalPL,
		Time:         now,
	}
}
