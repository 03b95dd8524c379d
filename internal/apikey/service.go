// Package apikey issues and verifies the bearer keys that remote agents
// authenticate with. Raw keys are shown once at issue time; only a SHA-256
// hash is stored, plus a short display prefix so operators can tell keys
// apart in listings.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	keyScheme        = "pa_sk_"
	keyRandomBytes   = 32
	displayPrefixLen = 12
)

var (
	ErrKeyNotFound  = errors.New("apikey: unknown or revoked key")
	ErrMalformedKey = errors.New("apikey: malformed key")
)

// Identity is who a key authenticates as. It is stored with the key so a
// restarted server can resolve agents without replaying registrations.
type Identity struct {
	AgentID       string `json:"agentId"`
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
}

// KeyInfo is the metadata half of an issued key. The raw secret is returned
// separately, exactly once.
type KeyInfo struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	Label     string    `json:"label"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service interface {
	Close() error
	IssueKey(ctx context.Context, ident Identity, label string) (*KeyInfo, string, error)
	VerifyKey(ctx context.Context, rawKey string) (*Identity, error)
	RevokeKey(ctx context.Context, keyID string) error
}

// NewServiceFromEnv follows the store mode so keys live next to game data:
// memory keys with a memory store, sqlite keys in the same local file,
// postgres keys beside the postgres schema.
func NewServiceFromEnv(storeMode string) (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(storeMode))
	switch mode {
	case "", "memory", "mem":
		return NewMemoryService(), "memory", nil
	case "sqlite", "local":
		return NewSQLiteServiceFromEnv()
	case "postgres", "postgresql", "db":
		svc, err := NewPostgresServiceFromEnv()
		if err != nil {
			return nil, "", err
		}
		return svc, "postgres", nil
	}
	return nil, "", fmt.Errorf("unsupported api key mode %q", mode)
}

func newRawKey() string {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return keyScheme + base64.RawURLEncoding.EncodeToString(buf)
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func displayPrefix(raw string) string {
	if len(raw) <= displayPrefixLen {
		return raw
	}
	return raw[:displayPrefixLen]
}

func validateRawKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, keyScheme) || len(raw) <= len(keyScheme) {
		return "", ErrMalformedKey
	}
	return raw, nil
}

func validateIdentity(ident Identity) error {
	if strings.TrimSpace(ident.AgentID) == "" {
		return fmt.Errorf("apikey: identity needs an agent id")
	}
	return nil
}
