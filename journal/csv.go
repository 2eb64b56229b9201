package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV journals to flat files: one row per order update, trade and
// position snapshot.
type CSV struct {
	orders, trades, positions *csv.Writer
	of, tf, pf                *os.File
}

func NewCSV(ordersPath, tradesPath, positionsPath string) (*CSV, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	pf, err := os.Create(positionsPath)
	if err != nil {
		return nil, err
	}

	ow := csv.NewWriter(of)
	tw := csv.NewWriter(tf)
	pw := csv.NewWriter(pf)

	if err := ow.Write([]string{"order_id", "symbol", "kind", "side", "mode", "status", "quantity", "filled", "remaining", "avg_price", "updated_at"}); err != nil {
		return nil, err
	}
	if err := tw.Write([]string{"trade_id", "order_id", "symbol", "side", "mode", "quantity", "price", "commission", "tax", "time"}); err != nil {
		return nil, err
	}
	if err := pw.Write([]string{"symbol", "mode", "quantity", "avg_price", "market_price", "realized_pl", "unrealized_pl", "total_pl", "time"}); err != nil {
		return nil, err
	}

	for _, w := range []*csv.Writer{ow, tw, pw} {
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}

	return &CSV{orders: ow, trades: tw, positions: pw, of: of, tf: tf, pf: pf}, nil
}

func (j *CSV) RecordOrder(o OrderRecord) error {
	err := j.orders.Write([]string{
		o.OrderID, o.Symbol, o.Kind, o.Side, o.Mode, o.Status,
		f(o.Quantity), f(o.Filled), f(o.Remaining), f(o.AvgPrice),
		o.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return &PersistenceError{Op: "record order", Err: err}
	}
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return &PersistenceError{Op: "record order", Err: err}
	}
	return nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID, t.OrderID, t.Symbol, t.Side, t.Mode,
		f(t.Quantity), f(t.Price), f(t.Commission), f(t.Tax),
		t.Time.Format(time.RFC3339),
	})
	if err != nil {
		return &PersistenceError{Op: "record trade", Err: err}
	}
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return &PersistenceError{Op: "record trade", Err: err}
	}
	return nil
}

func (j *CSV) RecordPosition(p PositionRecord) error {
	err := j.positions.Write([]string{
		p.Symbol, p.Mode,
		f(p.Quantity), f(p.AvgPrice), f(p.MarketPrice),
		f(p.RealizedPL), f(p.UnrealizedPL), f(p.TotalPL),
		p.Time.Format(time.RFC3339),
	})
	if err != nil {
		return &PersistenceError{Op: "record position", Err: err}
	}
	j.positions.Flush()
	if err := j.positions.Error(); err != nil {
		return &PersistenceError{Op: "record position", Err: err}
	}
	return nil
}

func (j *CSV) Close() error {
	for _, w := range []*csv.Writer{j.orders, j.trades, j.positions} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, file := range []*os.File{j.of, j.tf, j.pf} {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
