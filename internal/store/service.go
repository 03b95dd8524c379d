// Package store persists completed hands, chip movement, and agent totals.
// The tick loop never calls a Service directly; it hands records to a
// Recorder, which applies them from a background worker. The in-memory
// tables stay authoritative either way: a failed write is logged and the
// game plays on.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pokerarena/card"
	"pokerarena/holdem"
)

// Chip transaction kinds, one row per chip movement across the table edge.
const (
	TxBuyIn   = "buy_in"
	TxCashOut = "cash_out"
	TxRebuy   = "rebuy"
	TxPotWin  = "pot_win"
)

var ErrInvalidRecord = errors.New("store: invalid record")

// HandRecord is the durable form of one completed hand.
type HandRecord struct {
	HandID      string
	TableID     string
	HandNumber  int64
	Board       []string
	Pot         int64
	StartedAt   time.Time
	CompletedAt time.Time
	Players     []HandPlayer
	Actions     []HandAction
}

// HandPlayer is one seat's outcome inside a HandRecord.
type HandPlayer struct {
	SeatNumber    int
	AgentID       string
	AgentName     string
	AgentType     string
	HoleCards     []string
	StartingStack int64
	FinalStack    int64
	Won           bool
	WinAmount     int64
	HandName      string
}

// HandAction is one audit-log entry inside a HandRecord. Seq preserves the
// order the engine recorded them in.
type HandAction struct {
	Seq        int
	SeatNumber int
	AgentID    string
	Action     string
	Amount     int64
	Round      string
	At         time.Time
}

// ChipTx is one chip movement across the table boundary. HandID is empty
// for buy-ins and cash-outs, which happen between hands.
type ChipTx struct {
	AgentID string
	TableID string
	HandID  string
	Kind    string
	Amount  int64
	At      time.Time
}

// AgentProfit is one leaderboard row of persisted lifetime totals.
type AgentProfit struct {
	AgentID     string `json:"agentId"`
	AgentName   string `json:"agentName"`
	AgentType   string `json:"agentType"`
	HandsPlayed int64  `json:"handsPlayed"`
	HandsWon    int64  `json:"handsWon"`
	Profit      int64  `json:"profit"`
}

type Service interface {
	Close() error
	// GetMaxHandNumbers reports the highest persisted hand number per table,
	// so a restarted server keeps numbering where it left off.
	GetMaxHandNumbers(ctx context.Context) (map[string]int64, error)
	// PersistCompletedHand writes the hand, its players, its actions, and the
	// per-agent counters in one transaction. Persisting the same hand twice
	// is a no-op.
	PersistCompletedHand(ctx context.Context, rec *HandRecord) error
	PersistChipTx(ctx context.Context, tx *ChipTx) error
	TopAgentProfits(ctx context.Context, limit int) ([]AgentProfit, error)
	UpsertTableConfigs(ctx context.Context, configs []holdem.TableConfig) error
}

// NewServiceFromEnv picks the backend from STORE_MODE: "memory" (the
// default), "sqlite" (or "local"), or "postgres".
func NewServiceFromEnv() (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_MODE")))
	if mode == "" {
		mode = "memory"
	}
	switch mode {
	case "memory", "mem":
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
	return nil, "", fmt.Errorf("unsupported STORE_MODE %q", mode)
}

// RecordFromResult flattens an engine hand result into its durable form.
func RecordFromResult(res *holdem.HandResult) *HandRecord {
	if res == nil || res.Hand == nil {
		return nil
	}
	h := res.Hand

	var paidOut int64
	for _, w := range h.Winners {
		paidOut += w.Amount
	}

	rec := &HandRecord{
		HandID:      h.ID,
		TableID:     res.TableID,
		HandNumber:  h.HandNumber,
		Board:       card.Strings(h.CommunityCards),
		Pot:         paidOut,
		StartedAt:   h.StartedAt,
		CompletedAt: h.CompletedAt,
		Players:     make([]HandPlayer, 0, len(res.Seats)),
		Actions:     make([]HandAction, 0, len(h.Actions)),
	}
	for _, sr := range res.Seats {
		rec.Players = append(rec.Players, HandPlayer{
			SeatNumber:    sr.SeatNumber,
			AgentID:       sr.AgentID,
			AgentName:     sr.AgentName,
			AgentType:     string(sr.AgentType),
			HoleCards:     card.Strings(sr.HoleCards),
			StartingStack: sr.StartingStack,
			FinalStack:    sr.FinalStack,
			Won:           sr.Won,
			WinAmount:     sr.WinAmount,
			HandName:      sr.HandName,
		})
	}
	for i, a := range h.Actions {
		rec.Actions = append(rec.Actions, HandAction{
			Seq:        i,
			SeatNumber: a.SeatNumber,
			AgentID:    a.AgentID,
			Action:     a.Type.String(),
			Amount:     a.Amount,
			Round:      a.Round.String(),
			At:         a.At,
		})
	}
	return rec
}

func validateHandRecord(rec *HandRecord) error {
	if rec == nil || strings.TrimSpace(rec.HandID) == "" || strings.TrimSpace(rec.TableID) == "" {
		return ErrInvalidRecord
	}
	return nil
}

func validateChipTx(tx *ChipTx) error {
	if tx == nil || strings.TrimSpace(tx.AgentID) == "" || strings.TrimSpace(tx.TableID) == "" {
		return ErrInvalidRecord
	}
	switch tx.Kind {
	case TxBuyIn, TxCashOut, TxRebuy, TxPotWin:
		return nil
	}
	return fmt.Errorf("%w: unknown chip tx kind %q", ErrInvalidRecord, tx.Kind)
}
