package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
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
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS api_keys (
    id TEXT PRIMARY KEY,
    key_hash TEXT NOT NULL UNIQUE,
    agent_id TEXT NOT NULL,
    agent_name TEXT NOT NULL DEFAULT '',
    wallet_address TEXT NOT NULL DEFAULT '',
    label TEXT NOT NULL DEFAULT '',
    prefix TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    revoked_at_ms INTEGER
)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_api_keys_agent ON api_keys (agent_id)`); err != nil {
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

func (s *sqliteService) IssueKey(ctx context.Context, ident Identity, label string) (*KeyInfo, string, error) {
	if err := validateIdentity(ident); err != nil {
		return nil, "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		raw := newRawKey()
		info := KeyInfo{
			ID:        uuid.NewString(),
			AgentID:   ident.AgentID,
			Label:     label,
			Prefix:    displayPrefix(raw),
			CreatedAt: time.Now().UTC(),
		}
		_, err := s.db.ExecContext(ctx, `
INSERT INTO api_keys (id, key_hash, agent_id, agent_name, wallet_address, label, prefix, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, info.ID, hashKey(raw), ident.AgentID, ident.Name, ident.WalletAddress, label,
			info.Prefix, info.CreatedAt.UnixMilli())
		if err != nil {
			if isSQLiteUniqueViolation(err) {
				continue
			}
			return nil, "", err
		}
		return &info, raw, nil
	}
	return nil, "", fmt.Errorf("failed to generate unique api key")
}

func (s *sqliteService) VerifyKey(ctx context.Context, rawKey string) (*Identity, error) {
	raw, err := validateRawKey(rawKey)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var ident Identity
	err = s.db.QueryRowContext(ctx, `
SELECT agent_id, agent_name, wallet_address
FROM api_keys
WHERE key_hash = ?
  AND revoked_at_ms IS NULL
`, hashKey(raw)).Scan(&ident.AgentID, &ident.Name, &ident.WalletAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &ident, nil
}

func (s *sqliteService) RevokeKey(ctx context.Context, keyID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
UPDATE api_keys
SET revoked_at_ms = ?
WHERE id = ?
  AND revoked_at_ms IS NULL
`, time.Now().UTC().UnixMilli(), keyID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
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
