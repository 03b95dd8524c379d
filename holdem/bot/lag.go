package bot

import "math/rand"

// lagMaxRaisesPerRound stops a table of aggressive brains from raising each
// other forever in one round.
const lagMaxRaisesPerRound = 2

// lagBrain is loose-aggressive: it plays most hands, attacks limped pots and
// bluffs at a real clip, but respects the per-round raise cap.
type lagBrain struct {
	rng *rand.Rand
}

func (b *lagBrain) Name() string { return "lag" }

func (b *lagBrain) Decide(v GameView) Decision {
	strength := HandStrength(v.HoleCards, v.Community)
	toCall := v.ToCall()

	mayRaise := v.CanRaise && v.RaisesThisRound < lagMaxRaisesPerRound
	if mayRaise {
		bluff := b.rng.Float64() < 0.22
		if strength > 0.55 || bluff {
			target := v.CurrentBet + v.Pot/2
			if target < v.CurrentBet+v.MinRaise {
				target = v.CurrentBet + v.MinRaise
			}
			return raiseTo(v, target)
		}
	}

	if toCall == 0 {
		return check()
	}
	// Loose, not suicidal: pure trash folds to big pressure.
	if strength < 0.18 && toCall > 6*v.BigBlind {
		return fold()
	}
	if toCall >= v.MyStack && strength < 0.4 {
		return fold()
	}
	return call()
}
