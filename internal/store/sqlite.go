package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketpulse/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ TradeLog = (*SQLiteStore)(nil)
var _ SignalLog = (*SQLiteStore)(nil)

// SQLiteStore implements TradeLog and SignalLog backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT    NOT NULL,
	direction   TEXT    NOT NULL,
	entry_time  INTEGER NOT NULL,
	exit_time   INTEGER NOT NULL,
	entry_price REAL    NOT NULL,
	exit_price  REAL    NOT NULL,
	quantity    REAL    NOT NULL,
	pnl         REAL    NOT NULL,
	pnl_pct     REAL    NOT NULL,
	exit_reason TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, exit_time);

CREATE TABLE IF NOT EXISTS signals (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT    NOT NULL,
	direction  TEXT    NOT NULL,
	as_of      INTEGER NOT NULL,
	confidence REAL    NOT NULL,
	risk_score REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, as_of);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendTrades inserts a batch of closed trades in one transaction.
func (s *SQLiteStore) AppendTrades(ctx context.Context, trades []domain.ClosedTrade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (symbol, direction, entry_time, exit_time, entry_price, exit_price, quantity, pnl, pnl_pct, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.Symbol, string(t.Direction), t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.PnL, t.PnLPct, string(t.ExitReason),
		); err != nil {
			return fmt.Errorf("inserting trade for %s: %w", t.Symbol, err)
		}
	}
	return tx.Commit()
}

// ListTrades returns closed trades ordered by exit time. An empty symbol
// returns every trade.
func (s *SQLiteStore) ListTrades(ctx context.Context, symbol string) ([]domain.ClosedTrade, error) {
	query := `SELECT symbol, direction, entry_time, exit_time, entry_price, exit_price, quantity, pnl, pnl_pct, exit_reason
		FROM trades`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY exit_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var dir, reason string
		var entryMs, exitMs int64
		if err := rows.Scan(&t.Symbol, &dir, &entryMs, &exitMs, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PnL, &t.PnLPct, &reason); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(dir)
		t.ExitReason = domain.ExitReason(reason)
		t.EntryTime = time.UnixMilli(entryMs).UTC()
		t.ExitTime = time.UnixMilli(exitMs).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// AppendSignal records one emitted signal.
func (s *SQLiteStore) AppendSignal(ctx context.Context, sig domain.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (symbol, direction, as_of, confidence, risk_score)
		VALUES (?, ?, ?, ?, ?)`,
		sig.Symbol, string(sig.Direction), sig.AsOf.UnixMilli(), sig.Confidence, sig.RiskScore)
	return err
}

// ListSignals returns the most recent signals for a symbol, newest first.
func (s *SQLiteStore) ListSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, direction, as_of, confidence, risk_score
		FROM signals WHERE symbol = ? ORDER BY as_of DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var dir string
		var asOfMs int64
		if err := rows.Scan(&sig.Symbol, &dir, &asOfMs, &sig.Confidence, &sig.RiskScore); err != nil {
			return nil, err
		}
		sig.Direction = domain.Direction(dir)
		sig.AsOf = time.UnixMilli(asOfMs).UTC()
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
