package holdem

import (
	"sort"

	"pokerarena/card"
)

// HandRank orders the made-hand categories from weakest to strongest.
type HandRank int

const (
	HighCard HandRank = iota + 1
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var handRankNames = map[HandRank]string{
	HighCard:      "High Card",
	OnePair:       "One Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	RoyalFlush:    "Royal Flush",
}

func (r HandRank) String() string {
	return handRankNames[r]
}

// EvaluatedHand is a scored five-card hand. Values holds the rank then the
// kickers in comparison order, so two hands of the same category compare
// lexicographically. A wheel straight carries Values [5].
type EvaluatedHand struct {
	Rank     HandRank    `json:"rank"`
	Values   []int       `json:"values"`
	BestFive []card.Card `json:"bestFive"`
	Name     string      `json:"name"`
}

// Compare returns 1, -1 or 0 as a beats, loses to, or ties b.
func Compare(a, b *EvaluatedHand) int {
	if a.Rank != b.Rank {
		if a.Rank > b.Rank {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Values) && i < len(b.Values); i++ {
		if a.Values[i] != b.Values[i] {
			if a.Values[i] > b.Values[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Evaluate scores the best five-card hand out of the given cards. It accepts
// five to seven cards and tries every five-card subset.
func Evaluate(cards []card.Card) (*EvaluatedHand, error) {
	n := len(cards)
	if n < 5 {
		return nil, ErrTooFewCards
	}
	var best *EvaluatedHand
	five := make([]card.Card, 5)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						five[0], five[1], five[2], five[3], five[4] = cards[a], cards[b], cards[c], cards[d], cards[e]
						rank, values := evaluateFive(five)
						if best == nil || beats(rank, values, best) {
							best = &EvaluatedHand{
								Rank:     rank,
								Values:   values,
								BestFive: append([]card.Card(nil), five...),
								Name:     handRankNames[rank],
							}
						}
					}
				}
			}
		}
	}
	return best, nil
}

func beats(rank HandRank, values []int, cur *EvaluatedHand) bool {
	if rank != cur.Rank {
		return rank > cur.Rank
	}
	for i := 0; i < len(values) && i < len(cur.Values); i++ {
		if values[i] != cur.Values[i] {
			return values[i] > cur.Values[i]
		}
	}
	return false
}

type rankGroup struct {
	rank  int
	count int
}

// evaluateFive classifies exactly five cards by grouping equal ranks and
// ordering the groups by count then rank, the count pattern fixing the
// category and the group order fixing the kickers.
func evaluateFive(five []card.Card) (HandRank, []int) {
	counts := make(map[int]int, 5)
	flush := true
	for i, c := range five {
		counts[int(c.Rank)]++
		if i > 0 && c.Suit != five[0].Suit {
			flush = false
		}
	}
	groups := make([]rankGroup, 0, 5)
	for r, n := range counts {
		groups = append(groups, rankGroup{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	high, straight := straightHigh(groups)

	switch {
	case straight && flush:
		if high == int(card.Ace) {
			return RoyalFlush, []int{high}
		}
		return StraightFlush, []int{high}
	case groups[0].count == 4:
		return FourOfAKind, groupRanks(groups)
	case groups[0].count == 3 && groups[1].count == 2:
		return FullHouse, groupRanks(groups)
	case flush:
		return Flush, groupRanks(groups)
	case straight:
		return Straight, []int{high}
	case groups[0].count == 3:
		return ThreeOfAKind, groupRanks(groups)
	case groups[0].count == 2 && groups[1].count == 2:
		return TwoPair, groupRanks(groups)
	case groups[0].count == 2:
		return OnePair, groupRanks(groups)
	default:
		return HighCard, groupRanks(groups)
	}
}

func groupRanks(groups []rankGroup) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = g.rank
	}
	return out
}

// straightHigh reports whether five distinct ranks form a straight and the
// rank of its high card. The ace plays low in the wheel, which scores as a
// five-high straight.
func straightHigh(groups []rankGroup) (int, bool) {
	if len(groups) != 5 {
		return 0, false
	}
	ranks := make([]int, 5)
	for i, g := range groups {
		ranks[i] = g.rank
	}
	sort.Ints(ranks)
	if ranks[4]-ranks[0] == 4 {
		return ranks[4], true
	}
	if ranks[0] == int(card.Two) && ranks[3] == int(card.Five) && ranks[4] == int(card.Ace) {
		return int(card.Five), true
	}
	return 0, false
}
