package journal

import "sync"

// Memory is an in-memory journal for tests and throwaway sessions.
// FailTrades/FailOrders force write failures to exercise rollback
// paths.
type Memory struct {
	mu        sync.Mutex
	Orders    []OrderRecord
	Trades    []TradeRecord
	Positions []PositionRecord

	FailOrders error
	FailTrades error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (j *Memory) RecordOrder(o OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailOrders != nil {
		return &PersistenceError{Op: "record order", Err: j.FailOrders}
	}
	j.Orders = append(j.Orders, o)
	return nil
}

func (j *Memory) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailTrades != nil {
		return &PersistenceError{Op: "record trade", Err: j.FailTrades}
	}
	j.Trades = append(j.Trades, t)
	return nil
}

func (j *Memory) RecordPosition(p PositionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Positions = append(j.Positions, p)
	return nil
}

func (j *Memory) Close() error { return nil }

// TradeCount is safe for concurrent use.
func (j *Memory) TradeCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.Trades)
}
