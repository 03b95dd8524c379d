package bot

import (
	"pokerarena/card"
	"pokerarena/holdem"
)

// PreflopStrength scores two hole cards on a rough 0..1 scale: high cards
// carry weight, pairs jump ahead, suited and connected hands get a nudge.
func PreflopStrength(hole []card.Card) float64 {
	if len(hole) != 2 {
		return 0
	}
	hi, lo := int(hole[0].Rank), int(hole[1].Rank)
	if lo > hi {
		hi, lo = lo, hi
	}
	s := float64(hi+lo) / 28.0 * 0.5
	if hi == lo {
		s += 0.3 + float64(hi)/14.0*0.1
	} else {
		if hole[0].Suit == hole[1].Suit {
			s += 0.05
		}
		if hi-lo <= 2 {
			s += 0.04
		}
	}
	if s > 1 {
		s = 1
	}
	return s
}

var madeHandBase = map[holdem.HandRank]float64{
	holdem.HighCard:      0.08,
	holdem.OnePair:       0.35,
	holdem.TwoPair:       0.62,
	holdem.ThreeOfAKind:  0.74,
	holdem.Straight:      0.82,
	holdem.Flush:         0.86,
	holdem.FullHouse:     0.92,
	holdem.FourOfAKind:   0.97,
	holdem.StraightFlush: 1,
	holdem.RoyalFlush:    1,
}

// HandStrength scores the current holding. Before the flop it falls back to
// the hole-card heuristic; after, it reads the made hand off the board.
func HandStrength(hole, community []card.Card) float64 {
	if len(community) < 3 {
		return PreflopStrength(hole)
	}
	cards := make([]card.Card, 0, 7)
	cards = append(cards, hole...)
	cards = append(cards, community...)
	ev, err := holdem.Evaluate(cards)
	if err != nil {
		return PreflopStrength(hole)
	}
	s := madeHandBase[ev.Rank]
	if len(ev.Values) > 0 {
		s += float64(ev.Values[0]) / 14.0 * 0.12
	}
	if s > 1 {
		s = 1
	}
	return s
}
