package holdem

import "sort"

// refundUncalled returns the part of the top live contribution that nobody
// else matched. Runs before side pots are cut so no pot ever contains chips
// only one player could win.
func (t *Table) refundUncalled(h *Hand) {
	var top *Seat
	for _, s := range t.Seats {
		if !s.InHand() || s.HasFolded {
			continue
		}
		if top == nil || s.TotalContributed > top.TotalContributed {
			top = s
		}
	}
	if top == nil {
		return
	}
	var otherMax int64
	for _, s := range t.Seats {
		if s == top || !s.Occupied() {
			continue
		}
		if s.TotalContributed > otherMax {
			otherMax = s.TotalContributed
		}
	}
	for _, dead := range h.priv.deadContributions {
		if dead > otherMax {
			otherMax = dead
		}
	}
	excess := top.TotalContributed - otherMax
	if excess <= 0 {
		return
	}
	top.Stack += excess
	top.TotalContributed -= excess
	h.Pot -= excess
	h.Uncalled = &UncalledBet{
		SeatNumber: top.Number,
		AgentID:    top.Agent.ID,
		Amount:     excess,
	}
}

// computeSidePots layers the pot by the distinct totals the non-folded
// players put in. Each layer is sized by every contribution that reaches it,
// folded money included, while only non-folded seats are eligible to win it.
// Any dead chips above the top layer land in the last pot.
func (t *Table) computeSidePots(h *Hand) {
	levelSet := make(map[int64]bool)
	for _, s := range t.Seats {
		if s.InHand() && !s.HasFolded && s.TotalContributed > 0 {
			levelSet[s.TotalContributed] = true
		}
	}
	levels := make([]int64, 0, len(levelSet))
	for lv := range levelSet {
		levels = append(levels, lv)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	if len(levels) == 0 {
		return
	}

	contributions := make([]int64, 0, len(t.Seats))
	for _, s := range t.Seats {
		if s.Occupied() && s.TotalContributed > 0 {
			contributions = append(contributions, s.TotalContributed)
		}
	}
	contributions = append(contributions, h.priv.deadContributions...)

	pots := make([]SidePot, 0, len(levels))
	var prev, total int64
	for _, lv := range levels {
		reached := 0
		for _, c := range contributions {
			if c >= lv {
				reached++
			}
		}
		amount := (lv - prev) * int64(reached)
		eligible := make([]int, 0, len(t.Seats))
		for _, s := range t.Seats {
			if s.InHand() && !s.HasFolded && s.TotalContributed >= lv {
				eligible = append(eligible, s.Number)
			}
		}
		pots = append(pots, SidePot{Amount: amount, EligibleSeats: eligible})
		total += amount
		prev = lv
	}
	if rem := h.Pot - total; rem > 0 {
		pots[len(pots)-1].Amount += rem
	}
	h.SidePots = pots
}
