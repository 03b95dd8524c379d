package bot

import (
	"math/rand"

	"pokerarena/holdem"
)

// tagBrain plays tight-aggressive: most starting hands go in the muck, the
// ones that stay get bet hard, around two thirds of the pot.
type tagBrain struct {
	rng *rand.Rand
}

func (b *tagBrain) Name() string { return "tag" }

func (b *tagBrain) Decide(v GameView) Decision {
	strength := HandStrength(v.HoleCards, v.Community)
	toCall := v.ToCall()

	if strength > 0.72 && v.CanRaise {
		target := v.CurrentBet + (v.Pot*2)/3
		if target < v.CurrentBet+v.MinRaise {
			target = v.CurrentBet + v.MinRaise
		}
		return raiseTo(v, target)
	}

	if toCall == 0 {
		if strength > 0.55 && v.CanRaise && v.Round != holdem.PhasePreflop {
			return raiseTo(v, (v.Pot*2)/3)
		}
		return check()
	}

	// Weak hands do not pay: the preflop bar filters out roughly half of
	// all starting hands.
	if v.Round == holdem.PhasePreflop && strength < 0.42 {
		return fold()
	}
	if strength < 0.35 {
		return fold()
	}

	// Medium strength continues only at a fair price.
	cheap := toCall <= 3*v.BigBlind || toCall*3 <= v.Pot
	if strength < 0.6 && !cheap {
		return fold()
	}
	if toCall >= v.MyStack && strength < 0.65 {
		return fold()
	}
	return call()
}
