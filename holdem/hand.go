package holdem

import (
	"fmt"
	"time"

	"pokerarena/card"
)

// handPrivate is per-hand state that must never reach a client view: the
// live deck and the stack snapshot taken before blinds. It is dropped when
// the hand is archived. deadContributions remembers pot money whose seat was
// vacated mid-hand so settlement still counts it.
type handPrivate struct {
	deck              *card.Deck
	startingStacks    map[int]int64
	deadContributions []int64
}

// Hand is one deal of the game from blinds to settlement. All exported
// fields are safe to project into views; hole cards live on the seats and
// are masked there.
type Hand struct {
	ID         string `json:"id"`
	HandNumber int64  `json:"handNumber"`

	Phase          Phase       `json:"phase"`
	CurrentRound   Phase       `json:"currentRound"`
	CommunityCards []card.Card `json:"communityCards"`

	Pot      int64     `json:"pot"`
	SidePots []SidePot `json:"sidePots,omitempty"`

	DealerSeat     int `json:"dealerSeat"`
	SmallBlindSeat int `json:"smallBlindSeat"`
	BigBlindSeat   int `json:"bigBlindSeat"`

	// ActivePlayerOrder is fixed when a betting round opens; seats that
	// fold or go all-in mid-round stay listed and are skipped.
	ActivePlayerOrder  []int `json:"activePlayerOrder"`
	CurrentPlayerIndex int   `json:"currentPlayerIndex"`

	CurrentBet      int64 `json:"currentBet"`
	MinRaise        int64 `json:"minRaise"`
	RaisesThisRound int   `json:"raisesThisRound"`

	Actions       []Action     `json:"actions"`
	Winners       []Winner     `json:"winners,omitempty"`
	ShowdownHands []ShownHand  `json:"showdownHands,omitempty"`
	Uncalled      *UncalledBet `json:"uncalled,omitempty"`

	StartedAt    time.Time `json:"startedAt"`
	LastActionAt time.Time `json:"lastActionAt"`
	CompletedAt  time.Time `json:"completedAt,omitempty"`

	priv handPrivate
}

// CurrentTurnSeat returns the seat whose action is awaited, or NoSeat when
// the hand is not in a betting round.
func (h *Hand) CurrentTurnSeat() int {
	if h == nil || !h.Phase.Betting() {
		return NoSeat
	}
	if h.CurrentPlayerIndex < 0 || h.CurrentPlayerIndex >= len(h.ActivePlayerOrder) {
		return NoSeat
	}
	return h.ActivePlayerOrder[h.CurrentPlayerIndex]
}

// StartingStack returns the stack a seat held before blinds were posted.
func (h *Hand) StartingStack(seatNumber int) (int64, bool) {
	v, ok := h.priv.startingStacks[seatNumber]
	return v, ok
}

// Clone makes a deep copy for the archive, shedding the private state.
func (h *Hand) Clone() *Hand {
	c := *h
	c.CommunityCards = append([]card.Card(nil), h.CommunityCards...)
	c.ActivePlayerOrder = append([]int(nil), h.ActivePlayerOrder...)
	c.Actions = append([]Action(nil), h.Actions...)
	c.Winners = append([]Winner(nil), h.Winners...)
	c.ShowdownHands = append([]ShownHand(nil), h.ShowdownHands...)
	c.SidePots = make([]SidePot, len(h.SidePots))
	for i, sp := range h.SidePots {
		c.SidePots[i] = SidePot{
			Amount:        sp.Amount,
			EligibleSeats: append([]int(nil), sp.EligibleSeats...),
		}
	}
	if h.Uncalled != nil {
		u := *h.Uncalled
		c.Uncalled = &u
	}
	c.priv = handPrivate{}
	return &c
}

func (h *Hand) recordAction(s *Seat, typ ActionType, now time.Time) {
	h.Actions = append(h.Actions, Action{
		SeatNumber: s.Number,
		AgentID:    s.Agent.ID,
		AgentName:  s.Agent.Name,
		Type:       typ,
		Amount:     s.CurrentBet,
		Round:      h.CurrentRound,
		At:         now,
	})
	h.LastActionAt = now
}

// StartHand deals the next hand: rotates the button, posts blinds, deals two
// hole cards to every active seat and opens preflop betting. When the blinds
// already leave at most one player able to act, the board is run out and the
// hand settles immediately.
func (t *Table) StartHand(now time.Time) (*Hand, error) {
	if t.CurrentHand != nil {
		return nil, ErrHandInProgress
	}
	if t.ActiveCount() < 2 {
		return nil, ErrNotEnoughPlayers
	}
	deck, err := t.deckFactory()
	if err != nil {
		return nil, fmt.Errorf("new deck: %w", err)
	}

	for _, s := range t.Seats {
		s.resetForHand()
	}

	dealer := t.firstActiveSeat()
	if t.dealerSeat != NoSeat {
		dealer = t.NextActiveSeat(t.dealerSeat)
	}
	var sb, bb int
	if t.ActiveCount() == 2 {
		// Heads-up the dealer posts the small blind and acts first preflop.
		sb = dealer
		bb = t.NextActiveSeat(dealer)
	} else {
		sb = t.NextActiveSeat(dealer)
		bb = t.NextActiveSeat(sb)
	}

	h := &Hand{
		ID:             fmt.Sprintf("%s-h%d", t.Config.ID, t.HandCount+1),
		HandNumber:     t.HandCount + 1,
		Phase:          PhasePreflop,
		CurrentRound:   PhasePreflop,
		DealerSeat:     dealer,
		SmallBlindSeat: sb,
		BigBlindSeat:   bb,
		StartedAt:      now,
		LastActionAt:   now,
		priv: handPrivate{
			deck:           deck,
			startingStacks: make(map[int]int64),
		},
	}

	dealOrder := t.clockwiseActiveFrom(sb)
	for _, sn := range dealOrder {
		h.priv.startingStacks[sn] = t.Seats[sn].Stack
	}
	// One card at a time, two passes, small blind first.
	for pass := 0; pass < 2; pass++ {
		for _, sn := range dealOrder {
			c, err := deck.Draw()
			if err != nil {
				for _, s := range t.Seats {
					s.resetForHand()
				}
				return nil, fmt.Errorf("deal hole cards: %w", err)
			}
			t.Seats[sn].HoleCards = append(t.Seats[sn].HoleCards, c)
		}
	}

	t.HandCount++
	t.dealerSeat = dealer
	t.CurrentHand = h

	t.postBlind(h, t.Seats[sb], t.Config.SmallBlind, ActionSmallBlind, now)
	t.postBlind(h, t.Seats[bb], t.Config.BigBlind, ActionBigBlind, now)
	h.CurrentBet = t.Config.BigBlind
	h.MinRaise = t.Config.BigBlind

	h.ActivePlayerOrder = t.buildRoundOrder(bb)
	h.CurrentPlayerIndex = 0

	t.maybeRunOut(h, now)
	return h, nil
}

// postBlind commits a forced bet, short stacks going all-in for less.
func (t *Table) postBlind(h *Hand, s *Seat, amount int64, typ ActionType, now time.Time) {
	paid := s.commit(amount)
	h.Pot += paid
	h.recordAction(s, typ, now)
}

func (t *Table) firstActiveSeat() int {
	for _, s := range t.Seats {
		if s.Active() {
			return s.Number
		}
	}
	return NoSeat
}

// clockwiseActiveFrom lists the active seats clockwise starting at the given
// seat itself.
func (t *Table) clockwiseActiveFrom(start int) []int {
	out := make([]int, 0, len(t.Seats))
	n := len(t.Seats)
	for i := 0; i < n; i++ {
		s := t.Seats[(start+i)%n]
		if s.Active() {
			out = append(out, s.Number)
		}
	}
	return out
}

// buildRoundOrder fixes the acting order for a betting round: seats still
// able to act, clockwise from the seat after the given one.
func (t *Table) buildRoundOrder(after int) []int {
	out := make([]int, 0, len(t.Seats))
	n := len(t.Seats)
	for i := 1; i <= n; i++ {
		s := t.Seats[(after+i)%n]
		if s.CanAct() {
			out = append(out, s.Number)
		}
	}
	return out
}
