package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pokerarena/holdem"
)

const defaultSQLiteDBName = "arena_local.db"

type sqliteService struct {
	db *sql.DB
}

func NewSQLiteServiceFromEnv() (Service, string, error) {
	dbPath, err := sqlitePathFromEnv()
	if err != nil {
		return nil, "", err
	}
	svc, err := NewSQLiteService(dbPath)
	if err != nil {
		return nil, "", err
	}
	return svc, "sqlite", nil
}

func NewSQLiteService(dbPath string) (Service, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteService{db: db}, nil
}

func (s *sqliteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteService) GetMaxHandNumbers(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT table_id, MAX(hand_number)
FROM hands
GROUP BY table_id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var tableID string
		var n int64
		if err := rows.Scan(&tableID, &n); err != nil {
			return nil, err
		}
		out[tableID] = n
	}
	return out, rows.Err()
}

func (s *sqliteService) PersistCompletedHand(ctx context.Context, rec *HandRecord) error {
	if err := validateHandRecord(rec); err != nil {
		return err
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	boardRaw, err := json.Marshal(rec.Board)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO hands (id, table_id, hand_number, board, pot, started_at_ms, completed_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, rec.HandID, rec.TableID, rec.HandNumber, string(boardRaw), rec.Pot,
		rec.StartedAt.UTC().UnixMilli(), rec.CompletedAt.UTC().UnixMilli())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already persisted; keep the first write.
		return tx.Commit()
	}

	for _, p := range rec.Players {
		holeRaw, err := json.Marshal(p.HoleCards)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO hand_players (
    hand_id, seat_number, agent_id, agent_name, agent_type,
    hole_cards, starting_stack, final_stack, won, win_amount, hand_name
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hand_id, seat_number) DO NOTHING
`, rec.HandID, p.SeatNumber, p.AgentID, p.AgentName, p.AgentType,
			string(holeRaw), p.StartingStack, p.FinalStack, boolToInt(p.Won), p.WinAmount, p.HandName); err != nil {
			return err
		}
	}

	for _, a := range rec.Actions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO hand_actions (hand_id, seq, seat_number, agent_id, action, amount, round, at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hand_id, seq) DO NOTHING
`, rec.HandID, a.Seq, a.SeatNumber, a.AgentID, a.Action, a.Amount, a.Round,
			a.At.UTC().UnixMilli()); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()
	for _, p := range rec.Players {
		won := int64(0)
		if p.Won {
			won = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO agents (id, name, agent_type, hands_played, hands_won, profit, updated_at_ms)
VALUES (?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    agent_type = excluded.agent_type,
    hands_played = agents.hands_played + 1,
    hands_won = agents.hands_won + excluded.hands_won,
    profit = agents.profit + excluded.profit,
    updated_at_ms = excluded.updated_at_ms
`, p.AgentID, p.AgentName, p.AgentType, won, p.FinalStack-p.StartingStack, nowMs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *sqliteService) PersistChipTx(ctx context.Context, chipTx *ChipTx) error {
	if err := validateChipTx(chipTx); err != nil {
		return err
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO chip_transactions (agent_id, table_id, hand_id, kind, amount, at_ms)
VALUES (?, ?, ?, ?, ?, ?)
`, chipTx.AgentID, chipTx.TableID, chipTx.HandID, chipTx.Kind, chipTx.Amount,
		chipTx.At.UTC().UnixMilli())
	return err
}

func (s *sqliteService) TopAgentProfits(ctx context.Context, limit int) ([]AgentProfit, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, agent_type, hands_played, hands_won, profit
FROM agents
ORDER BY profit DESC, id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AgentProfit, 0, limit)
	for rows.Next() {
		var a AgentProfit
		if err := rows.Scan(&a.AgentID, &a.AgentName, &a.AgentType, &a.HandsPlayed, &a.HandsWon, &a.Profit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteService) UpsertTableConfigs(ctx context.Context, configs []holdem.TableConfig) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	for _, cfg := range configs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO table_configs (id, name, small_blind, big_blind, min_buy_in, max_buy_in, max_seats, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    small_blind = excluded.small_blind,
    big_blind = excluded.big_blind,
    min_buy_in = excluded.min_buy_in,
    max_buy_in = excluded.max_buy_in,
    max_seats = excluded.max_seats,
    updated_at_ms = excluded.updated_at_ms
`, cfg.ID, cfg.Name, cfg.SmallBlind, cfg.BigBlind, cfg.MinBuyIn, cfg.MaxBuyIn, cfg.MaxSeats, nowMs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    agent_type TEXT NOT NULL,
    hands_played INTEGER NOT NULL DEFAULT 0,
    hands_won INTEGER NOT NULL DEFAULT 0,
    profit INTEGER NOT NULL DEFAULT 0,
    updated_at_ms INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS table_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    small_blind INTEGER NOT NULL,
    big_blind INTEGER NOT NULL,
    min_buy_in INTEGER NOT NULL,
    max_buy_in INTEGER NOT NULL,
    max_seats INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS hands (
    id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    hand_number INTEGER NOT NULL,
    board TEXT NOT NULL DEFAULT '[]',
    pot INTEGER NOT NULL DEFAULT 0,
    started_at_ms INTEGER NOT NULL,
    completed_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_hands_table_number ON hands (table_id, hand_number)`,
		`CREATE TABLE IF NOT EXISTS hand_players (
    hand_id TEXT NOT NULL REFERENCES hands(id),
    seat_number INTEGER NOT NULL,
    agent_id TEXT NOT NULL,
    agent_name TEXT NOT NULL,
    agent_type TEXT NOT NULL,
    hole_cards TEXT NOT NULL DEFAULT '[]',
    starting_stack INTEGER NOT NULL,
    final_stack INTEGER NOT NULL,
    won INTEGER NOT NULL DEFAULT 0,
    win_amount INTEGER NOT NULL DEFAULT 0,
    hand_name TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (hand_id, seat_number)
)`,
		`CREATE TABLE IF NOT EXISTS hand_actions (
    hand_id TEXT NOT NULL REFERENCES hands(id),
    seq INTEGER NOT NULL,
    seat_number INTEGER NOT NULL,
    agent_id TEXT NOT NULL,
    action TEXT NOT NULL,
    amount INTEGER NOT NULL,
    round TEXT NOT NULL,
    at_ms INTEGER NOT NULL,
    PRIMARY KEY (hand_id, seq)
)`,
		`CREATE TABLE IF NOT EXISTS chip_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id TEXT NOT NULL,
    table_id TEXT NOT NULL,
    hand_id TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    amount INTEGER NOT NULL,
    at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_chip_tx_agent ON chip_transactions (agent_id, at_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func sqlitePathFromEnv() (string, error) {
	if v := strings.TrimSpace(os.Getenv("STORE_SQLITE_PATH")); v != "" {
		return filepath.Clean(v), nil
	}
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "PokerArena", defaultSQLiteDBName), nil
}

// opContext bounds one store operation; callers may already carry deadlines.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 3*time.Second)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
