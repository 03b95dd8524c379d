package store

import (
	"context"
	"sort"
	"sync"

	"pokerarena/holdem"
)

// MemoryService is the default backend for development and tests. Reads
// hand copies back out so callers cannot mutate stored records.
type MemoryService struct {
	mu      sync.RWMutex
	hands   map[string]*HandRecord
	maxHand map[string]int64
	agents  map[string]*AgentProfit
	chipTxs []ChipTx
	configs map[string]holdem.TableConfig
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		hands:   make(map[string]*HandRecord),
		maxHand: make(map[string]int64),
		agents:  make(map[string]*AgentProfit),
		configs: make(map[string]holdem.TableConfig),
	}
}

func (s *MemoryService) Close() error { return nil }

func (s *MemoryService) GetMaxHandNumbers(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.maxHand))
	for id, n := range s.maxHand {
		out[id] = n
	}
	return out, nil
}

func (s *MemoryService) PersistCompletedHand(ctx context.Context, rec *HandRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateHandRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hands[rec.HandID]; exists {
		return nil
	}
	cp := *rec
	cp.Players = append([]HandPlayer(nil), rec.Players...)
	cp.Actions = append([]HandAction(nil), rec.Actions...)
	s.hands[rec.HandID] = &cp
	if rec.HandNumber > s.maxHand[rec.TableID] {
		s.maxHand[rec.TableID] = rec.HandNumber
	}
	for _, p := range rec.Players {
		a := s.agents[p.AgentID]
		if a == nil {
			a = &AgentProfit{AgentID: p.AgentID}
			s.agents[p.AgentID] = a
		}
		a.AgentName = p.AgentName
		a.AgentType = p.AgentType
		a.HandsPlayed++
		if p.Won {
			a.HandsWon++
		}
		a.Profit += p.FinalStack - p.StartingStack
	}
	return nil
}

func (s *MemoryService) PersistChipTx(ctx context.Context, tx *ChipTx) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateChipTx(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chipTxs = append(s.chipTxs, *tx)
	return nil
}

func (s *MemoryService) TopAgentProfits(ctx context.Context, limit int) ([]AgentProfit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentProfit, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].AgentID < out[j].AgentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryService) UpsertTableConfigs(ctx context.Context, configs []holdem.TableConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range configs {
		s.configs[cfg.ID] = cfg
	}
	return nil
}

// CompletedHands returns a copy of every stored hand, newest last by hand
// number within a table. Test and debug helper.
func (s *MemoryService) CompletedHands() []*HandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*HandRecord, 0, len(s.hands))
	for _, rec := range s.hands {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TableID != out[j].TableID {
			return out[i].TableID < out[j].TableID
		}
		return out[i].HandNumber < out[j].HandNumber
	})
	return out
}

// ChipTxs returns a copy of every recorded chip movement in insert order.
func (s *MemoryService) ChipTxs() []ChipTx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChipTx(nil), s.chipTxs...)
}
