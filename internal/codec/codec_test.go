package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokerarena/card"
	"pokerarena/holdem"
)

var viewT0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newViewTable(t *testing.T, script string) *holdem.Table {
	t.Helper()
	tbl, err := holdem.NewTable(holdem.TableConfig{
		ID: "t-micro", Name: "Micro Stakes",
		SmallBlind: 1, BigBlind: 2, MinBuyIn: 40, MaxBuyIn: 200, MaxSeats: 6,
	})
	require.NoError(t, err)
	names := []string{"alice", "bob", "carol"}
	for i, name := range names {
		agent := &holdem.Agent{ID: "a-" + name, Name: name, Type: holdem.AgentHuman}
		require.NoError(t, tbl.SeatAgent(i, agent, 100, false))
	}
	if script != "" {
		cards := card.MustParseAll(script)
		tbl.SetDeckFactory(func() (*card.Deck, error) {
			return card.NewDeckFromCards(cards), nil
		})
	}
	return tbl
}

func seatByNumber(t *testing.T, view TableView, n int) SeatView {
	t.Helper()
	for _, sv := range view.Seats {
		if sv.SeatNumber == n {
			return sv
		}
	}
	t.Fatalf("seat %d not in view", n)
	return SeatView{}
}

func TestSummaryReflectsTable(t *testing.T) {
	tbl := newViewTable(t, "")
	s := Summary(tbl)
	assert.Equal(t, "t-micro", s.ID)
	assert.Equal(t, 3, s.SeatedCount)
	assert.Equal(t, "waiting", s.Status)
	assert.Zero(t, s.HandNumber)

	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)
	s = Summary(tbl)
	assert.Equal(t, "playing", s.Status)
	assert.Equal(t, int64(1), s.HandNumber)
}

func TestViewMasksHoleCardsMidHand(t *testing.T) {
	// Deal order from the small blind: seat 1, 2, 0, then second card each.
	tbl := newViewTable(t, "As Ks Qs Ad Kd Qd 2c 3c 4c 5c 6c 7c 8c")
	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)

	own := View(tbl, "a-alice", nil)
	assert.Equal(t, 0, own.YourSeat)
	me := seatByNumber(t, own, 0)
	assert.True(t, me.HasCards)
	assert.Equal(t, card.MustParseAll("Qs Qd"), me.HoleCards)
	for _, n := range []int{1, 2} {
		other := seatByNumber(t, own, n)
		assert.True(t, other.HasCards, "seat %d is dealt in", n)
		assert.Nil(t, other.HoleCards, "seat %d cards hidden", n)
	}

	spectator := View(tbl, "", nil)
	assert.Equal(t, holdem.NoSeat, spectator.YourSeat)
	for _, sv := range spectator.Seats {
		assert.Nil(t, sv.HoleCards)
	}
	require.NotNil(t, spectator.Hand)
	assert.Equal(t, holdem.PhasePreflop, spectator.Hand.Phase)
}

func TestViewTurnInfo(t *testing.T) {
	tbl := newViewTable(t, "As Ks Qs Ad Kd Qd 2c 3c 4c 5c 6c 7c 8c")
	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)

	deadline := viewT0.Add(30 * time.Second)
	view := View(tbl, "", &deadline)
	require.NotNil(t, view.Hand)
	// Dealer 0, blinds 1/2: seat 0 opens preflop facing the big blind.
	assert.Equal(t, 0, view.Hand.TurnSeat)
	require.NotNil(t, view.Hand.TurnDeadline)
	assert.Equal(t, deadline, *view.Hand.TurnDeadline)
	assert.Equal(t, int64(2), view.Hand.ToCall)
	assert.Equal(t, int64(4), view.Hand.MinRaiseTo)
}

func TestViewRevealsCardsAtContestedShowdown(t *testing.T) {
	tbl := newViewTable(t, "As Ks Qs Ad Kd Qd 2c 3c 4c 5c 6c 7c 8c")
	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)

	// Everyone calls and checks to showdown.
	require.NoError(t, tbl.ProcessAction(0, holdem.ActionCall, 0, viewT0))
	require.NoError(t, tbl.ProcessAction(1, holdem.ActionCall, 0, viewT0))
	require.NoError(t, tbl.ProcessAction(2, holdem.ActionCheck, 0, viewT0))
	for round := 0; round < 3; round++ {
		require.NoError(t, tbl.ProcessAction(1, holdem.ActionCheck, 0, viewT0))
		require.NoError(t, tbl.ProcessAction(2, holdem.ActionCheck, 0, viewT0))
		require.NoError(t, tbl.ProcessAction(0, holdem.ActionCheck, 0, viewT0))
	}
	require.Equal(t, holdem.PhaseShowdown, tbl.CurrentHand.Phase)

	spectator := View(tbl, "", nil)
	for _, n := range []int{0, 1, 2} {
		sv := seatByNumber(t, spectator, n)
		assert.NotNil(t, sv.HoleCards, "seat %d revealed at showdown", n)
	}
	require.NotNil(t, spectator.Hand)
	assert.NotEmpty(t, spectator.Hand.ShowdownHands)
	assert.Equal(t, holdem.NoSeat, spectator.Hand.TurnSeat)
	assert.Nil(t, spectator.Hand.TurnDeadline)
}

func TestViewFoldOutWinRevealsNothing(t *testing.T) {
	tbl := newViewTable(t, "As Ks Qs Ad Kd Qd 2c 3c 4c 5c 6c 7c 8c")
	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)

	require.NoError(t, tbl.ProcessAction(0, holdem.ActionFold, 0, viewT0))
	require.NoError(t, tbl.ProcessAction(1, holdem.ActionFold, 0, viewT0))
	require.Equal(t, holdem.PhaseShowdown, tbl.CurrentHand.Phase)

	spectator := View(tbl, "", nil)
	for _, sv := range spectator.Seats {
		assert.Nil(t, sv.HoleCards, "fold-out win keeps every hand hidden")
	}
	winner := seatByNumber(t, spectator, 2)
	assert.True(t, winner.HasCards)
	require.NotNil(t, spectator.Hand)
	require.Len(t, spectator.Hand.Winners, 1)
	assert.Equal(t, holdem.LastPlayerStanding, spectator.Hand.Winners[0].HandName)
	assert.Empty(t, spectator.Hand.ShowdownHands)
}

func TestViewCopiesDoNotAliasEngineState(t *testing.T) {
	tbl := newViewTable(t, "As Ks Qs Ad Kd Qd 2c 3c 4c 5c 6c 7c 8c")
	_, err := tbl.StartHand(viewT0)
	require.NoError(t, err)

	view := View(tbl, "a-alice", nil)
	me := seatByNumber(t, view, 0)
	require.Len(t, me.HoleCards, 2)
	me.HoleCards[0] = card.MustParse("2d")
	assert.Equal(t, card.MustParse("Qs"), tbl.Seats[0].HoleCards[0], "view mutation stays in the view")

	view.Hand.Actions[0].Amount = 999
	assert.NotEqual(t, int64(999), tbl.CurrentHand.Actions[0].Amount)
}
