// Package codec projects engine state into wire-safe views. Everything here
// returns fresh copies: a view handed to a client never aliases live table
// state, and hole cards are filtered per viewer before anything leaves the
// manager's lock.
package codec

import (
	"time"

	"pokerarena/card"
	"pokerarena/holdem"
)

// TableSummary is one lobby row.
type TableSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SmallBlind  int64  `json:"smallBlind"`
	BigBlind    int64  `json:"bigBlind"`
	MinBuyIn    int64  `json:"minBuyIn"`
	MaxBuyIn    int64  `json:"maxBuyIn"`
	MaxSeats    int    `json:"maxSeats"`
	SeatedCount int    `json:"seatedCount"`
	Status      string `json:"status"`
	HandNumber  int64  `json:"handNumber,omitempty"`
}

// SeatView is one seat as a given viewer may see it. HoleCards is set only
// for the viewer's own seat, or for every non-folded seat once a real
// showdown revealed them; HasCards still tells spectators who is dealt in.
type SeatView struct {
	SeatNumber   int         `json:"seatNumber"`
	Occupied     bool        `json:"occupied"`
	AgentID      string      `json:"agentId,omitempty"`
	AgentName    string      `json:"agentName,omitempty"`
	AgentType    string      `json:"agentType,omitempty"`
	Stack        int64       `json:"stack,omitempty"`
	CurrentBet   int64       `json:"currentBet,omitempty"`
	HasFolded    bool        `json:"hasFolded,omitempty"`
	IsAllIn      bool        `json:"isAllIn,omitempty"`
	IsSittingOut bool        `json:"isSittingOut,omitempty"`
	HasCards     bool        `json:"hasCards,omitempty"`
	HoleCards    []card.Card `json:"holeCards,omitempty"`
}

// HandView is the in-progress hand without its private parts. ToCall and
// MinRaiseTo are computed for the turn seat; they are public arithmetic, not
// secrets, and save every client from rederiving them.
type HandView struct {
	ID             string           `json:"id"`
	HandNumber     int64            `json:"handNumber"`
	Phase          holdem.Phase     `json:"phase"`
	CommunityCards []card.Card      `json:"communityCards"`
	Pot            int64            `json:"pot"`
	SidePots       []holdem.SidePot `json:"sidePots,omitempty"`

	DealerSeat     int `json:"dealerSeat"`
	SmallBlindSeat int `json:"smallBlindSeat"`
	BigBlindSeat   int `json:"bigBlindSeat"`

	CurrentBet int64 `json:"currentBet"`
	MinRaise   int64 `json:"minRaise"`

	TurnSeat     int        `json:"turnSeat"`
	TurnDeadline *time.Time `json:"turnDeadline,omitempty"`
	ToCall       int64      `json:"toCall,omitempty"`
	MinRaiseTo   int64      `json:"minRaiseTo,omitempty"`

	Actions       []holdem.Action     `json:"actions"`
	Winners       []holdem.Winner     `json:"winners,omitempty"`
	ShowdownHands []holdem.ShownHand  `json:"showdownHands,omitempty"`
	Uncalled      *holdem.UncalledBet `json:"uncalled,omitempty"`

	StartedAt time.Time `json:"startedAt"`
}

// TableView is the full per-viewer snapshot used by the table endpoint and
// the websocket feed.
type TableView struct {
	TableSummary
	Seats    []SeatView `json:"seats"`
	Hand     *HandView  `json:"hand,omitempty"`
	YourSeat int        `json:"yourSeat"`
}

// Summary projects the lobby row. Callers hold the table's lock.
func Summary(t *holdem.Table) TableSummary {
	s := TableSummary{
		ID:          t.Config.ID,
		Name:        t.Config.Name,
		SmallBlind:  t.Config.SmallBlind,
		BigBlind:    t.Config.BigBlind,
		MinBuyIn:    t.Config.MinBuyIn,
		MaxBuyIn:    t.Config.MaxBuyIn,
		MaxSeats:    t.Config.MaxSeats,
		SeatedCount: t.SeatedCount(),
		Status:      t.Status(),
	}
	if h := t.CurrentHand; h != nil {
		s.HandNumber = h.HandNumber
	}
	return s
}

// View projects the table for one viewer. viewerAgentID may be empty for a
// spectator; turnDeadline is the manager's timeout for the current turn, nil
// when no seat is on the clock. Callers hold the table's lock.
func View(t *holdem.Table, viewerAgentID string, turnDeadline *time.Time) TableView {
	view := TableView{
		TableSummary: Summary(t),
		Seats:        make([]SeatView, 0, len(t.Seats)),
		YourSeat:     holdem.NoSeat,
	}

	reveal := revealedSeats(t.CurrentHand)
	for _, seat := range t.Seats {
		sv := SeatView{SeatNumber: seat.Number}
		if seat.Occupied() {
			sv.Occupied = true
			sv.AgentID = seat.Agent.ID
			sv.AgentName = seat.Agent.Name
			sv.AgentType = string(seat.Agent.Type)
			sv.Stack = seat.Stack
			sv.CurrentBet = seat.CurrentBet
			sv.HasFolded = seat.HasFolded
			sv.IsAllIn = seat.IsAllIn
			sv.IsSittingOut = seat.IsSittingOut
			sv.HasCards = seat.InHand()
			if viewerAgentID != "" && seat.Agent.ID == viewerAgentID {
				view.YourSeat = seat.Number
			}
			if sv.HasCards && (reveal[seat.Number] || (viewerAgentID != "" && seat.Agent.ID == viewerAgentID)) {
				sv.HoleCards = append([]card.Card(nil), seat.HoleCards...)
			}
		}
		view.Seats = append(view.Seats, sv)
	}

	if h := t.CurrentHand; h != nil {
		view.Hand = handView(t, h, turnDeadline)
	}
	return view
}

func handView(t *holdem.Table, h *holdem.Hand, turnDeadline *time.Time) *HandView {
	snap := h.Clone()
	hv := &HandView{
		ID:             snap.ID,
		HandNumber:     snap.HandNumber,
		Phase:          snap.Phase,
		CommunityCards: snap.CommunityCards,
		Pot:            snap.Pot,
		SidePots:       snap.SidePots,
		DealerSeat:     snap.DealerSeat,
		SmallBlindSeat: snap.SmallBlindSeat,
		BigBlindSeat:   snap.BigBlindSeat,
		CurrentBet:     snap.CurrentBet,
		MinRaise:       snap.MinRaise,
		TurnSeat:       h.CurrentTurnSeat(),
		Actions:        snap.Actions,
		Winners:        snap.Winners,
		ShowdownHands:  snap.ShowdownHands,
		Uncalled:       snap.Uncalled,
		StartedAt:      snap.StartedAt,
	}
	if hv.CommunityCards == nil {
		hv.CommunityCards = []card.Card{}
	}
	if hv.Actions == nil {
		hv.Actions = []holdem.Action{}
	}
	if hv.TurnSeat >= 0 && hv.TurnSeat < len(t.Seats) {
		hv.TurnDeadline = turnDeadline
		s := t.Seats[hv.TurnSeat]
		if toCall := h.CurrentBet - s.CurrentBet; toCall > 0 {
			hv.ToCall = toCall
		}
		hv.MinRaiseTo = h.CurrentBet + h.MinRaise
	}
	return hv
}

// revealedSeats lists seats whose hole cards are public. That happens only
// at a contested showdown: a fold-out win reveals nothing.
func revealedSeats(h *holdem.Hand) map[int]bool {
	out := map[int]bool{}
	if h == nil || len(h.ShowdownHands) == 0 {
		return out
	}
	for _, sh := range h.ShowdownHands {
		out[sh.SeatNumber] = true
	}
	return out
}
