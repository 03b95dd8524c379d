// Package bot houses the rule-based deciders that drive machine seats. A
// decider is a pure policy over a read-only view of the table: it never
// touches engine state and the manager applies whatever it returns, falling
// back to check-or-fold if the engine refuses the move.
package bot

import (
	"fmt"
	"math/rand"

	"pokerarena/card"
	"pokerarena/holdem"
)

// GameView is the projection a decider sees: its own cards and price to
// play, never another seat's holding.
type GameView struct {
	Round     holdem.Phase
	HoleCards []card.Card
	Community []card.Card

	Pot        int64
	CurrentBet int64
	MyBet      int64
	MyStack    int64
	MinRaise   int64
	BigBlind   int64

	ActivePlayers   int
	RaisesThisRound int
	// CanRaise is false when betting was not re-opened for this seat.
	CanRaise bool
}

// ToCall is the price of continuing this round.
func (v GameView) ToCall() int64 {
	if d := v.CurrentBet - v.MyBet; d > 0 {
		return d
	}
	return 0
}

// Decision is one move. Amount is the round total for bets and raises, as
// the engine expects.
type Decision struct {
	Action holdem.ActionType
	Amount int64
}

// Decider turns a view into a move.
type Decider interface {
	Decide(view GameView) Decision
	Name() string
}

// New builds the decider for a bot agent type. The seed fixes the brain's
// randomness so games can be replayed.
func New(kind holdem.AgentType, seed int64) (Decider, error) {
	rng := rand.New(rand.NewSource(seed))
	switch kind {
	case holdem.AgentFish:
		return &fishBrain{rng: rng}, nil
	case holdem.AgentTAG:
		return &tagBrain{rng: rng}, nil
	case holdem.AgentLAG:
		return &lagBrain{rng: rng}, nil
	}
	return nil, fmt.Errorf("no decider for agent type %q", kind)
}

func check() Decision {
	return Decision{Action: holdem.ActionCheck}
}

func fold() Decision {
	return Decision{Action: holdem.ActionFold}
}

func call() Decision {
	return Decision{Action: holdem.ActionCall}
}

func allIn() Decision {
	return Decision{Action: holdem.ActionAllIn}
}

// raiseTo clamps a target to something the engine will take: at least a
// minimum raise, at most the stack (which the engine turns into an all-in).
func raiseTo(v GameView, target int64) Decision {
	min := v.CurrentBet + v.MinRaise
	if target < min {
		target = min
	}
	if target-v.MyBet >= v.MyStack {
		return allIn()
	}
	if v.CurrentBet == 0 && v.Round != holdem.PhasePreflop {
		return Decision{Action: holdem.ActionBet, Amount: target}
	}
	return Decision{Action: holdem.ActionRaise, Amount: target}
}
