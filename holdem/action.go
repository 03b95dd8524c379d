package holdem

import (
	"fmt"
	"time"
)

// ProcessAction validates and applies one move by the seat whose turn it is,
// then advances the hand: next turn, next street, or settlement. Validation
// happens before any chips move, so a rejected action leaves the hand
// untouched.
//
// Bet and raise amounts are round totals ("raise to"), not increments. An
// amount the stack cannot cover becomes an all-in for whatever is behind.
func (t *Table) ProcessAction(seatNumber int, typ ActionType, amount int64, now time.Time) error {
	h := t.CurrentHand
	if h == nil {
		return ErrNoActiveHand
	}
	if !h.Phase.Betting() {
		return ErrHandNotBetting
	}
	if h.CurrentTurnSeat() != seatNumber {
		return ErrOutOfTurn
	}
	s := t.Seats[seatNumber]
	if !s.CanAct() {
		return ErrOutOfTurn
	}

	// Preflop the blinds already opened the betting, so a plain bet is a
	// raise over the big blind.
	if typ == ActionBet && h.CurrentRound == PhasePreflop {
		typ = ActionRaise
	}

	switch typ {
	case ActionFold:
		s.HasFolded = true

	case ActionCheck:
		if s.CurrentBet != h.CurrentBet {
			return ErrCheckFacingBet
		}

	case ActionCall:
		toCall := h.CurrentBet - s.CurrentBet
		if toCall <= 0 {
			return ErrNothingToCall
		}
		h.Pot += s.commit(toCall)

	case ActionBet:
		if h.CurrentBet != 0 {
			return ErrBetFacingBet
		}
		if s.HasActed {
			return ErrActionNotReopen
		}
		if amount <= 0 {
			return ErrBetTooSmall
		}
		if amount < t.Config.BigBlind && amount < s.Stack {
			return ErrBetTooSmall
		}
		h.Pot += s.commit(amount)
		t.applyWagerTotal(h, s)

	case ActionRaise:
		if h.CurrentBet == 0 {
			return ErrNothingToRaise
		}
		if s.HasActed {
			return ErrActionNotReopen
		}
		if amount <= h.CurrentBet {
			return ErrRaiseTooSmall
		}
		allIn := amount-s.CurrentBet >= s.Stack
		if amount < h.CurrentBet+h.MinRaise && !allIn {
			return ErrRaiseTooSmall
		}
		h.Pot += s.commit(amount - s.CurrentBet)
		t.applyWagerTotal(h, s)

	case ActionAllIn:
		if s.Stack <= 0 {
			return ErrNoChips
		}
		h.Pot += s.commit(s.Stack)
		t.applyWagerTotal(h, s)

	default:
		return fmt.Errorf("unsupported action %s", typ)
	}

	s.HasActed = true
	h.recordAction(s, typ, now)
	t.postActionAdvance(h, now)
	return nil
}

// applyWagerTotal folds a seat's new round total into the hand-level betting
// state. A raise of at least the minimum re-opens the action for everyone
// else; a short all-in moves the price without re-opening.
func (t *Table) applyWagerTotal(h *Hand, s *Seat) {
	if s.CurrentBet <= h.CurrentBet {
		return
	}
	raiseSize := s.CurrentBet - h.CurrentBet
	h.CurrentBet = s.CurrentBet
	h.RaisesThisRound++
	if raiseSize >= h.MinRaise {
		h.MinRaise = raiseSize
		t.reopenAction(h, s.Number)
	}
}

// reopenAction clears hasActed for every other seat in the round order.
func (t *Table) reopenAction(h *Hand, actor int) {
	for _, sn := range h.ActivePlayerOrder {
		if sn != actor {
			t.Seats[sn].HasActed = false
		}
	}
}

func (t *Table) postActionAdvance(h *Hand, now time.Time) {
	if t.nonFoldedCount() == 1 {
		t.winByFold(h, now)
		return
	}
	if t.roundComplete(h) {
		t.advanceRound(h, now)
		return
	}
	t.advanceTurn(h)
}

// roundComplete reports whether everyone in the round order is done: folded,
// all-in, or acted with a bet matching the round price.
func (t *Table) roundComplete(h *Hand) bool {
	for _, sn := range h.ActivePlayerOrder {
		s := t.Seats[sn]
		if !s.CanAct() {
			continue
		}
		if !s.HasActed || s.CurrentBet != h.CurrentBet {
			return false
		}
	}
	return true
}

// advanceTurn moves the cursor to the next seat that still owes a decision.
func (t *Table) advanceTurn(h *Hand) {
	n := len(h.ActivePlayerOrder)
	for i := 1; i <= n; i++ {
		idx := (h.CurrentPlayerIndex + i) % n
		s := t.Seats[h.ActivePlayerOrder[idx]]
		if !s.CanAct() {
			continue
		}
		if s.HasActed && s.CurrentBet == h.CurrentBet {
			continue
		}
		h.CurrentPlayerIndex = idx
		return
	}
}

// advanceRound closes the current betting round and opens the next street,
// dealing community cards as it goes. When no betting is possible on the
// next street the loop runs on, so all-in hands race to the river. After the
// river it settles the showdown.
func (t *Table) advanceRound(h *Hand, now time.Time) {
	for {
		for _, s := range t.Seats {
			if s.InHand() {
				s.resetForRound()
			}
		}
		h.CurrentBet = 0
		h.MinRaise = t.Config.BigBlind
		h.RaisesThisRound = 0
		h.ActivePlayerOrder = nil
		h.CurrentPlayerIndex = 0

		switch h.CurrentRound {
		case PhasePreflop:
			t.dealCommunity(h, 3)
			h.CurrentRound = PhaseFlop
		case PhaseFlop:
			t.dealCommunity(h, 1)
			h.CurrentRound = PhaseTurn
		case PhaseTurn:
			t.dealCommunity(h, 1)
			h.CurrentRound = PhaseRiver
		case PhaseRiver:
			t.settleShowdown(h, now)
			return
		}
		h.Phase = h.CurrentRound

		h.ActivePlayerOrder = t.buildRoundOrder(h.DealerSeat)
		if len(h.ActivePlayerOrder) >= 2 {
			return
		}
	}
}

// maybeRunOut handles hands dead on arrival: when the blinds already leave
// at most one seat able to act and nothing left to call, betting is pointless
// and the board runs out immediately.
func (t *Table) maybeRunOut(h *Hand, now time.Time) {
	if !h.Phase.Betting() {
		return
	}
	actionable := 0
	unsettled := false
	for _, s := range t.Seats {
		if !s.CanAct() {
			continue
		}
		actionable++
		if s.CurrentBet != h.CurrentBet {
			unsettled = true
		}
	}
	if actionable == 0 || (actionable == 1 && !unsettled) {
		t.advanceRound(h, now)
	}
}

// dealCommunity draws onto the board. Exhausting the deck here is impossible
// with a full deck and a bounded seat count, so it panics into the tick
// loop's recovery guard rather than limping on with a short board.
func (t *Table) dealCommunity(h *Hand, n int) {
	cards, err := h.priv.deck.DrawN(n)
	if err != nil {
		panic(fmt.Sprintf("table %s hand %s: community deal: %v", t.Config.ID, h.ID, err))
	}
	h.CommunityCards = append(h.CommunityCards, cards...)
}

// forceFold folds a seat regardless of turn, used when a player leaves mid
// hand. It keeps the hand moving exactly as a voluntary fold would.
func (t *Table) forceFold(s *Seat, h *Hand, now time.Time) {
	if !h.Phase.Betting() || !s.CanAct() {
		return
	}
	wasTurn := h.CurrentTurnSeat() == s.Number
	s.HasFolded = true
	s.HasActed = true
	h.recordAction(s, ActionFold, now)

	if t.nonFoldedCount() == 1 {
		t.winByFold(h, now)
		return
	}
	if t.roundComplete(h) {
		t.advanceRound(h, now)
		return
	}
	if wasTurn {
		t.advanceTurn(h)
	}
}

// winByFold hands the whole pot to the last seat standing. No cards are
// shown and no side pots are formed.
func (t *Table) winByFold(h *Hand, now time.Time) {
	for _, s := range t.Seats {
		if !s.InHand() || s.HasFolded {
			continue
		}
		s.Stack += h.Pot
		h.Winners = []Winner{{
			SeatNumber: s.Number,
			AgentID:    s.Agent.ID,
			AgentName:  s.Agent.Name,
			Amount:     h.Pot,
			HandName:   LastPlayerStanding,
		}}
		break
	}
	h.Pot = 0
	h.Phase = PhaseShowdown
	h.LastActionAt = now
}
