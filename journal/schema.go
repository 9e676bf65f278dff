package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbols TEXT NOT NULL,
	dataset TEXT NOT NULL,
	config BLOB,
	start_time DATETIME,
	end_time DATETIME,
	initial_capital REAL NOT NULL,
	final_equity REAL NOT NULL,
	fills INTEGER NOT NULL,
	error TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metrics (
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL,
	fill_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	requested REAL NOT NULL,
	price REAL NOT NULL,
	ref_price REAL NOT NULL,
	commission REAL NOT NULL,
	PRIMARY KEY (run_id, fill_id)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(run_id, time);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(run_id, close_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(run_id, time);
`
