package bot

import "math/rand"

// fishBrain is the loose-passive caller. It pays to see cards with almost
// anything, lets go only when a big bet meets a bad hand, and raises about
// never.
type fishBrain struct {
	rng *rand.Rand
}

func (b *fishBrain) Name() string { return "fish" }

func (b *fishBrain) Decide(v GameView) Decision {
	strength := HandStrength(v.HoleCards, v.Community)
	toCall := v.ToCall()

	if toCall == 0 {
		if v.CanRaise && strength > 0.6 && b.rng.Float64() < 0.08 {
			return raiseTo(v, v.CurrentBet+2*v.BigBlind)
		}
		return check()
	}

	// Large bet, bad hand: even a fish finds the fold button sometimes.
	if strength < 0.25 && toCall > 4*v.BigBlind && b.rng.Float64() < 0.75 {
		return fold()
	}
	if toCall >= v.MyStack {
		if strength < 0.3 {
			return fold()
		}
		return allIn()
	}
	if v.CanRaise && strength > 0.8 && b.rng.Float64() < 0.1 {
		return raiseTo(v, v.CurrentBet+v.MinRaise)
	}
	return call()
}
