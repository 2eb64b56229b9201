package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// RecordOrder upserts: an order row is rewritten on every lifecycle
// transition.
func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO orders
		(order_id, symbol, kind, side, mode, status, quantity, filled, remaining, avg_price, limit_price, stop_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, o.Kind, o.Side, o.Mode, o.Status,
		o.Quantity, o.Filled, o.Remaining, o.AvgPrice,
		o.LimitPrice, o.StopPrice, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "record order", Err: err}
	}
	return nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, order_id, symbol, side, mode, quantity, price, commission, tax, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.OrderID, t.Symbol, t.Side, t.Mode,
		t.Quantity, t.Price, t.Commission, t.Tax, t.Time,
	)
	if err != nil {
		return &PersistenceError{Op: "record trade", Err: err}
	}
	return nil
}

func (j *SQLite) RecordPosition(p PositionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO positions
		(symbol, mode, quantity, avg_price, market_price, realized_pl, unrealized_pl, total_pl, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Mode, p.Quantity, p.AvgPrice, p.MarketPrice,
		p.RealizedPL, p.UnrealizedPL, p.TotalPL, p.Time,
	)
	if err != nil {
		return &PersistenceError{Op: "record position", Err: err}
	}
	return nil
}

// GetOrder returns the journaled state of one order.
func (j *SQLite) GetOrder(orderID string) (OrderRecord, error) {
	var rec OrderRecord

	row := j.db.QueryRow(`
		SELECT order_id, symbol, kind, side, mode, status, quantity, filled, remaining, avg_price, limit_price, stop_price, created_at, updated_at
		FROM orders
		WHERE order_id = ?`, orderID)

	err := row.Scan(
		&rec.OrderID, &rec.Symbol, &rec.Kind, &rec.Side, &rec.Mode, &rec.Status,
		&rec.Quantity, &rec.Filled, &rec.Remaining, &rec.AvgPrice,
		&rec.LimitPrice, &rec.StopPrice, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return OrderRecord{}, fmt.Errorf("order %q not found", orderID)
		}
		return OrderRecord{}, err
	}
	return rec, nil
}

// ListTradesByOrder returns an order's fills oldest first.
func (j *SQLite) ListTradesByOrder(orderID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, order_id, symbol, side, mode, quantity, price, commission, tax, time
		FROM trades
		WHERE order_id = ?
		ORDER BY time ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.TradeID, &rec.OrderID, &rec.Symbol, &rec.Side, &rec.Mode,
			&rec.Quantity, &rec.Price, &rec.Commission, &rec.Tax, &rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTradesBetween returns trades executed within [start, end).
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, order_id, symbol, side, mode, quantity, price, commission, tax, time
		FROM trades
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.TradeID, &rec.OrderID, &rec.Symbol, &rec.Side, &rec.Mode,
			&rec.Quantity, &rec.Price, &rec.Commission, &rec.Tax, &rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
