package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokerarena/card"
	"pokerarena/holdem"
)

var recT0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleHandRecord(tableID string, n int64) *HandRecord {
	return &HandRecord{
		HandID:      fmt.Sprintf("%s-h%d", tableID, n),
		TableID:     tableID,
		HandNumber:  n,
		Board:       []string{"Ah", "Kd", "2c", "9s", "9d"},
		Pot:         40,
		StartedAt:   recT0,
		CompletedAt: recT0.Add(30 * time.Second),
		Players: []HandPlayer{
			{
				SeatNumber: 0, AgentID: "a-alice", AgentName: "alice", AgentType: "human",
				HoleCards: []string{"9c", "9h"}, StartingStack: 200, FinalStack: 220,
				Won: true, WinAmount: 40, HandName: "Three of a Kind",
			},
			{
				SeatNumber: 1, AgentID: "a-fish", AgentName: "nibbles", AgentType: "fish",
				HoleCards: []string{"7c", "2d"}, StartingStack: 200, FinalStack: 180,
			},
		},
		Actions: []HandAction{
			{Seq: 0, SeatNumber: 0, AgentID: "a-alice", Action: "small-blind", Amount: 5, Round: "preflop", At: recT0},
			{Seq: 1, SeatNumber: 1, AgentID: "a-fish", Action: "big-blind", Amount: 10, Round: "preflop", At: recT0},
			{Seq: 2, SeatNumber: 0, AgentID: "a-alice", Action: "call", Amount: 10, Round: "preflop", At: recT0},
		},
	}
}

func sampleChipTx(amount int64) *ChipTx {
	return &ChipTx{
		AgentID: "a-alice", TableID: "t-micro", Kind: TxBuyIn, Amount: amount, At: recT0,
	}
}

func TestMemoryPersistCompletedHand(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-low", 1)))
	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-low", 2)))
	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-mid", 9)))

	maxes, err := svc.GetMaxHandNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"t-low": 2, "t-mid": 9}, maxes)

	profits, err := svc.TopAgentProfits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, profits, 2)
	assert.Equal(t, "a-alice", profits[0].AgentID)
	assert.Equal(t, int64(60), profits[0].Profit)
	assert.Equal(t, int64(3), profits[0].HandsPlayed)
	assert.Equal(t, int64(3), profits[0].HandsWon)
	assert.Equal(t, int64(-60), profits[1].Profit)
	assert.Equal(t, int64(0), profits[1].HandsWon)
}

func TestMemoryPersistIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	rec := sampleHandRecord("t-low", 1)
	require.NoError(t, svc.PersistCompletedHand(ctx, rec))
	require.NoError(t, svc.PersistCompletedHand(ctx, rec))

	profits, err := svc.TopAgentProfits(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profits[0].HandsPlayed, "replayed record must not double-count")
	assert.Len(t, svc.CompletedHands(), 1)
}

func TestMemoryRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	assert.ErrorIs(t, svc.PersistCompletedHand(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, svc.PersistCompletedHand(ctx, &HandRecord{TableID: "t"}), ErrInvalidRecord)
	assert.ErrorIs(t, svc.PersistChipTx(ctx, &ChipTx{AgentID: "a"}), ErrInvalidRecord)
	assert.ErrorIs(t, svc.PersistChipTx(ctx, &ChipTx{
		AgentID: "a", TableID: "t", Kind: "tip",
	}), ErrInvalidRecord)
}

func TestMemoryTopAgentProfitsLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	for i := 0; i < 5; i++ {
		rec := sampleHandRecord("t-low", int64(i+1))
		rec.Players = []HandPlayer{{
			SeatNumber: 0,
			AgentID:    fmt.Sprintf("a-%d", i),
			AgentName:  fmt.Sprintf("p%d", i),
			AgentType:  "fish",
			// Higher index, higher profit.
			StartingStack: 100, FinalStack: 100 + int64(i*10),
		}}
		require.NoError(t, svc.PersistCompletedHand(ctx, rec))
	}

	profits, err := svc.TopAgentProfits(ctx, 2)
	require.NoError(t, err)
	require.Len(t, profits, 2)
	assert.Equal(t, "a-4", profits[0].AgentID)
	assert.Equal(t, "a-3", profits[1].AgentID)
}

func TestRecordFromResult(t *testing.T) {
	res := &holdem.HandResult{
		TableID: "t-low",
		Hand: &holdem.Hand{
			ID:             "t-low-h7",
			HandNumber:     7,
			Phase:          holdem.PhaseComplete,
			CommunityCards: card.MustParseAll("Ah Kd 2c 9s 9d"),
			Winners: []holdem.Winner{
				{SeatNumber: 0, AgentID: "a-1", AgentName: "alice", Amount: 40, HandName: "Two Pair"},
			},
			Actions: []holdem.Action{
				{SeatNumber: 0, AgentID: "a-1", Type: holdem.ActionSmallBlind, Amount: 5, Round: holdem.PhasePreflop, At: recT0},
				{SeatNumber: 1, AgentID: "a-2", Type: holdem.ActionBigBlind, Amount: 10, Round: holdem.PhasePreflop, At: recT0},
				{SeatNumber: 0, AgentID: "a-1", Type: holdem.ActionCall, Amount: 10, Round: holdem.PhasePreflop, At: recT0},
			},
			StartedAt:   recT0,
			CompletedAt: recT0.Add(time.Minute),
		},
		Seats: []holdem.SeatResult{
			{
				SeatNumber: 0, AgentID: "a-1", AgentName: "alice", AgentType: holdem.AgentHuman,
				HoleCards: card.MustParseAll("9c 9h"), StartingStack: 200, FinalStack: 220,
				Won: true, WinAmount: 40, HandName: "Two Pair",
			},
			{
				SeatNumber: 1, AgentID: "a-2", AgentName: "bob", AgentType: holdem.AgentTAG,
				HoleCards: card.MustParseAll("Qc Qd"), StartingStack: 200, FinalStack: 180,
			},
		},
	}

	rec := RecordFromResult(res)
	require.NotNil(t, rec)
	assert.Equal(t, "t-low-h7", rec.HandID)
	assert.Equal(t, int64(7), rec.HandNumber)
	assert.Equal(t, []string{"Ah", "Kd", "2c", "9s", "9d"}, rec.Board)
	assert.Equal(t, int64(40), rec.Pot, "pot is the total paid out")

	require.Len(t, rec.Players, 2)
	assert.Equal(t, []string{"9c", "9h"}, rec.Players[0].HoleCards)
	assert.Equal(t, "tag", rec.Players[1].AgentType)

	require.Len(t, rec.Actions, 3)
	assert.Equal(t, 2, rec.Actions[2].Seq)
	assert.Equal(t, "call", rec.Actions[2].Action)
	assert.Equal(t, "preflop", rec.Actions[2].Round)

	assert.Nil(t, RecordFromResult(nil))
	assert.Nil(t, RecordFromResult(&holdem.HandResult{TableID: "t"}))
}

func TestSQLiteRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "arena_test.db")
	svc, err := NewSQLiteService(dbPath)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.UpsertTableConfigs(ctx, []holdem.TableConfig{
		{ID: "t-low", Name: "Low Stakes", SmallBlind: 5, BigBlind: 10, MinBuyIn: 200, MaxBuyIn: 1000, MaxSeats: 6},
	}))

	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-low", 1)))
	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-low", 2)))
	// Replay of an already persisted hand is a no-op.
	require.NoError(t, svc.PersistCompletedHand(ctx, sampleHandRecord("t-low", 2)))
	require.NoError(t, svc.PersistChipTx(ctx, sampleChipTx(200)))

	maxes, err := svc.GetMaxHandNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"t-low": 2}, maxes)

	profits, err := svc.TopAgentProfits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, profits, 2)
	assert.Equal(t, "a-alice", profits[0].AgentID)
	assert.Equal(t, int64(40), profits[0].Profit)
	assert.Equal(t, int64(2), profits[0].HandsPlayed)
}

func TestNewServiceFromEnv(t *testing.T) {
	t.Setenv("STORE_MODE", "")
	svc, mode, err := NewServiceFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "memory", mode)
	assert.IsType(t, &MemoryService{}, svc)

	t.Setenv("STORE_MODE", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "env_test.db"))
	svc, mode, err = NewServiceFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", mode)
	require.NoError(t, svc.Close())

	t.Setenv("STORE_MODE", "cloud")
	_, _, err = NewServiceFromEnv()
	assert.Error(t, err)
}

// gatedService blocks writes until released so tests can hold the recorder
// worker mid-job.
type gatedService struct {
	Service
	entered chan struct{}
	gate    chan struct{}
}

func newGatedService(inner Service) *gatedService {
	return &gatedService{
		Service: inner,
		entered: make(chan struct{}, 16),
		gate:    make(chan struct{}),
	}
}

func (g *gatedService) PersistChipTx(ctx context.Context, tx *ChipTx) error {
	g.entered <- struct{}{}
	<-g.gate
	return g.Service.PersistChipTx(ctx, tx)
}

func TestRecorderDrainsOnClose(t *testing.T) {
	svc := NewMemoryService()
	r := NewRecorder(svc, 32)

	for i := 0; i < 10; i++ {
		r.RecordChipTx(sampleChipTx(int64(i + 1)))
	}
	r.RecordHand(sampleHandRecord("t-low", 1))
	require.NoError(t, r.Close())

	assert.Len(t, svc.ChipTxs(), 10)
	assert.Len(t, svc.CompletedHands(), 1)
	assert.Zero(t, r.Dropped())
}

func TestRecorderDropsOldestWhenFull(t *testing.T) {
	svc := NewMemoryService()
	gated := newGatedService(svc)
	r := NewRecorder(gated, 2)

	r.RecordChipTx(sampleChipTx(1))
	<-gated.entered // worker is stuck inside tx 1

	r.RecordChipTx(sampleChipTx(2))
	r.RecordChipTx(sampleChipTx(3))
	r.RecordChipTx(sampleChipTx(4)) // full: tx 2 is discarded
	assert.Equal(t, int64(1), r.Dropped())

	close(gated.gate)
	require.NoError(t, r.Close())

	amounts := []int64{}
	for _, tx := range svc.ChipTxs() {
		amounts = append(amounts, tx.Amount)
	}
	assert.Equal(t, []int64{1, 3, 4}, amounts)
}

func TestRecorderCloseTimesOutOnStuckBackend(t *testing.T) {
	gated := newGatedService(NewMemoryService())
	r := NewRecorder(gated, 4)
	r.drainTimeout = 50 * time.Millisecond

	r.RecordChipTx(sampleChipTx(1))
	<-gated.entered

	assert.ErrorIs(t, r.Close(), ErrRecorderDrainTimeout)
	close(gated.gate)
}

func TestRecorderAfterCloseCountsDrops(t *testing.T) {
	r := NewRecorder(NewMemoryService(), 4)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second close is a no-op")

	r.RecordChipTx(sampleChipTx(1))
	assert.Equal(t, int64(1), r.Dropped())
}
