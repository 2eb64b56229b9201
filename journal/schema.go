package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	side TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	quantity REAL NOT NULL,
	filled REAL NOT NULL,
	remaining REAL NOT NULL,
	avg_price REAL NOT NULL,
	limit_price REAL,
	stop_price REAL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	mode TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	tax REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT NOT NULL,
	mode TEXT NOT NULL,
	quantity REAL NOT NULL,
	avg_price REAL NOT NULL,
	market_price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	total_pl REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_order ON trades(order_id);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
CREATE INDEX IF NOT EXISTS idx_positions_time ON positions(time);
`
