package apikey

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryService struct {
	mu     sync.RWMutex
	byHash map[string]*keyRecord
	byID   map[string]string // key id -> hash
}

type keyRecord struct {
	info    KeyInfo
	ident   Identity
	revoked bool
}

func NewMemoryService() Service {
	return &memoryService{
		byHash: make(map[string]*keyRecord),
		byID:   make(map[string]string),
	}
}

func (s *memoryService) Close() error { return nil }

func (s *memoryService) IssueKey(ctx context.Context, ident Identity, label string) (*KeyInfo, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if err := validateIdentity(ident); err != nil {
		return nil, "", err
	}

	raw := newRawKey()
	info := KeyInfo{
		ID:        uuid.NewString(),
		AgentID:   ident.AgentID,
		Label:     label,
		Prefix:    displayPrefix(raw),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hash := hashKey(raw)
	s.byHash[hash] = &keyRecord{info: info, ident: ident}
	s.byID[info.ID] = hash
	return &info, raw, nil
}

func (s *memoryService) VerifyKey(ctx context.Context, rawKey string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := validateRawKey(rawKey)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byHash[hashKey(raw)]
	if !ok || rec.revoked {
		return nil, ErrKeyNotFound
	}
	ident := rec.ident
	return &ident, nil
}

func (s *memoryService) RevokeKey(ctx context.Context, keyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.byID[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	rec := s.byHash[hash]
	if rec == nil || rec.revoked {
		return ErrKeyNotFound
	}
	rec.revoked = true
	return nil
}
