package holdem

import (
	"fmt"
	"sort"
	"time"

	"pokerarena/card"
)

// settleShowdown resolves a contested hand: refunds the uncalled excess,
// cuts the side pots, scores every live holding against the board and pays
// each pot to its best eligible hand. Ties split evenly with the odd chip
// going to the winner closest clockwise to the dealer's left.
func (t *Table) settleShowdown(h *Hand, now time.Time) {
	h.Phase = PhaseShowdown
	h.ActivePlayerOrder = nil
	h.CurrentPlayerIndex = 0

	t.refundUncalled(h)
	t.computeSidePots(h)

	scores := make(map[int]*EvaluatedHand)
	for _, s := range t.Seats {
		if !s.InHand() || s.HasFolded {
			continue
		}
		cards := make([]card.Card, 0, 7)
		cards = append(cards, s.HoleCards...)
		cards = append(cards, h.CommunityCards...)
		ev, err := Evaluate(cards)
		if err != nil {
			panic(fmt.Sprintf("table %s hand %s: evaluate seat %d: %v", t.Config.ID, h.ID, s.Number, err))
		}
		scores[s.Number] = ev
		h.ShowdownHands = append(h.ShowdownHands, ShownHand{
			SeatNumber: s.Number,
			AgentID:    s.Agent.ID,
			HandName:   ev.Name,
			BestFive:   ev.BestFive,
		})
	}

	n := len(t.Seats)
	fromDealerLeft := func(sn int) int {
		return (sn - (h.DealerSeat + 1) + n) % n
	}

	wins := make(map[int]*Winner)
	for _, pot := range h.SidePots {
		var best *EvaluatedHand
		var winners []int
		for _, sn := range pot.EligibleSeats {
			ev := scores[sn]
			if ev == nil {
				continue
			}
			cmp := 1
			if best != nil {
				cmp = Compare(ev, best)
			}
			if cmp > 0 {
				best = ev
				winners = winners[:0]
				winners = append(winners, sn)
			} else if cmp == 0 {
				winners = append(winners, sn)
			}
		}
		if len(winners) == 0 {
			continue
		}
		sort.Slice(winners, func(i, j int) bool {
			return fromDealerLeft(winners[i]) < fromDealerLeft(winners[j])
		})
		share := pot.Amount / int64(len(winners))
		odd := pot.Amount % int64(len(winners))
		for i, sn := range winners {
			amt := share
			if i == 0 {
				amt += odd
			}
			t.Seats[sn].Stack += amt
			if w, ok := wins[sn]; ok {
				w.Amount += amt
			} else {
				s := t.Seats[sn]
				wins[sn] = &Winner{
					SeatNumber: sn,
					AgentID:    s.Agent.ID,
					AgentName:  s.Agent.Name,
					Amount:     amt,
					HandName:   scores[sn].Name,
				}
			}
		}
	}

	seatNums := make([]int, 0, len(wins))
	for sn := range wins {
		seatNums = append(seatNums, sn)
	}
	sort.Ints(seatNums)
	h.Winners = h.Winners[:0]
	for _, sn := range seatNums {
		h.Winners = append(h.Winners, *wins[sn])
	}

	h.Pot = 0
	h.LastActionAt = now
}

// CompleteShowdown finalizes a hand after its showdown display hold: lifetime
// counters and profits accrue, the hand is archived, busted bots rebuy to the
// table maximum and busted humans are sat out. The table is then ready for
// the next deal.
func (t *Table) CompleteShowdown(now time.Time) (*HandResult, error) {
	h := t.CurrentHand
	if h == nil {
		return nil, ErrNoActiveHand
	}
	if h.Phase != PhaseShowdown {
		return nil, ErrNotAtShowdown
	}
	h.Phase = PhaseComplete
	h.CompletedAt = now

	wonAmount := make(map[int]int64)
	wonName := make(map[int]string)
	for _, w := range h.Winners {
		wonAmount[w.SeatNumber] += w.Amount
		wonName[w.SeatNumber] = w.HandName
	}
	shownName := make(map[int]string)
	for _, sh := range h.ShowdownHands {
		shownName[sh.SeatNumber] = sh.HandName
	}

	res := &HandResult{TableID: t.Config.ID}
	for _, s := range t.Seats {
		if !s.InHand() {
			continue
		}
		start, _ := h.StartingStack(s.Number)
		delta := s.Stack - start
		s.Agent.HandsPlayed++
		s.Agent.Profit += delta

		name := shownName[s.Number]
		if name == "" {
			name = wonName[s.Number]
		}
		sr := SeatResult{
			SeatNumber:    s.Number,
			AgentID:       s.Agent.ID,
			AgentName:     s.Agent.Name,
			AgentType:     s.Agent.Type,
			HoleCards:     append([]card.Card(nil), s.HoleCards...),
			StartingStack: start,
			FinalStack:    s.Stack,
			HandName:      name,
		}
		if amt, ok := wonAmount[s.Number]; ok {
			s.Agent.HandsWon++
			sr.Won = true
			sr.WinAmount = amt
		}
		res.Seats = append(res.Seats, sr)
	}

	res.Hand = h.Clone()
	t.archiveHand(res.Hand)

	for _, s := range t.Seats {
		if !s.Occupied() {
			continue
		}
		if s.Stack <= 0 {
			if s.Agent.IsBot() {
				amt := t.Config.MaxBuyIn
				s.Stack = amt
				s.BuyIn += amt
				res.BotRebuys = append(res.BotRebuys, RebuyEvent{
					SeatNumber: s.Number,
					AgentID:    s.Agent.ID,
					Amount:     amt,
				})
			} else {
				s.IsSittingOut = true
				s.AutoResume = false
			}
		}
		s.resetForHand()
	}

	t.CurrentHand = nil
	return res, nil
}

// AbortHand tears down a hand that hit an unrecoverable fault. Bets from the
// current round go back to their stacks and the hand is dropped without a
// record.
func (t *Table) AbortHand() {
	h := t.CurrentHand
	if h == nil {
		return
	}
	for _, s := range t.Seats {
		if !s.Occupied() {
			continue
		}
		s.Stack += s.CurrentBet
		s.resetForHand()
	}
	t.CurrentHand = nil
}
