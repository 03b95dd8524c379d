package holdem

import "pokerarena/card"

// Seat is one chair at a table. A seat with a nil Agent is empty.
type Seat struct {
	Number int
	Agent  *Agent

	Stack int64
	BuyIn int64

	// Per-hand state, cleared when a hand starts or the seat empties.
	HoleCards        []card.Card
	CurrentBet       int64 // chips committed in the current betting round
	TotalContributed int64 // chips committed across the whole hand
	HasActed         bool
	HasFolded        bool
	IsAllIn          bool

	IsSittingOut bool
	// AutoResume marks a sit-out that the tick loop clears between hands,
	// set when a player sits down watching first. An explicit stand leaves
	// it false.
	AutoResume bool
}

// Occupied reports whether an agent holds the seat.
func (s *Seat) Occupied() bool {
	return s != nil && s.Agent != nil
}

// Active reports whether the seat can be dealt into the next hand.
func (s *Seat) Active() bool {
	return s.Occupied() && !s.IsSittingOut && s.Stack > 0
}

// InHand reports whether the seat was dealt into the current hand.
func (s *Seat) InHand() bool {
	return s.Occupied() && len(s.HoleCards) == 2
}

// CanAct reports whether the seat can still make a move this hand.
func (s *Seat) CanAct() bool {
	return s.InHand() && !s.HasFolded && !s.IsAllIn
}

// commit moves up to amount chips from the stack into the current bet and
// returns what was actually moved. Commits the whole stack and flags all-in
// when amount covers it.
func (s *Seat) commit(amount int64) int64 {
	if amount >= s.Stack {
		amount = s.Stack
		s.IsAllIn = true
	}
	s.Stack -= amount
	s.CurrentBet += amount
	s.TotalContributed += amount
	return amount
}

// resetForRound clears the per-round betting state.
func (s *Seat) resetForRound() {
	s.CurrentBet = 0
	s.HasActed = false
}

// resetForHand clears all per-hand state.
func (s *Seat) resetForHand() {
	s.HoleCards = nil
	s.CurrentBet = 0
	s.TotalContributed = 0
	s.HasActed = false
	s.HasFolded = false
	s.IsAllIn = false
}
