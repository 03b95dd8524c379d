package holdem

import (
	"encoding/json"
	"fmt"
	"time"

	"pokerarena/card"
)

// NoSeat marks "no seat" in turn and position fields.
const NoSeat = -1

// Phase is the hand lifecycle stage. The four betting rounds are followed by
// a showdown display hold and a terminal complete state.
type Phase byte

const (
	PhasePreflop Phase = iota + 1
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
	PhaseComplete
)

var phaseNames = map[Phase]string{
	PhasePreflop:  "preflop",
	PhaseFlop:     "flop",
	PhaseTurn:     "turn",
	PhaseRiver:    "river",
	PhaseShowdown: "showdown",
	PhaseComplete: "complete",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", byte(p))
}

// Betting reports whether a turn seat can exist in this phase.
func (p Phase) Betting() bool {
	return p >= PhasePreflop && p <= PhaseRiver
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for ph, name := range phaseNames {
		if name == s {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("invalid phase: %q", s)
}

// ActionType is the closed set of moves a seat can make, plus the two forced
// blind posts that appear only in the audit log.
type ActionType byte

const (
	ActionFold ActionType = iota + 1
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
	ActionAllIn

	// Blind posts are recorded, never submitted.
	ActionSmallBlind
	ActionBigBlind
)

var actionNames = map[ActionType]string{
	ActionFold:       "fold",
	ActionCheck:      "check",
	ActionCall:       "call",
	ActionBet:        "bet",
	ActionRaise:      "raise",
	ActionAllIn:      "all-in",
	ActionSmallBlind: "small-blind",
	ActionBigBlind:   "big-blind",
}

func (a ActionType) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", byte(a))
}

func (a ActionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON reads the recorded wire form. Unlike ParseAction it accepts
// the blind posts, which appear in audit logs but are never submitted.
func (a *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for at, name := range actionNames {
		if name == s {
			*a = at
			return nil
		}
	}
	return fmt.Errorf("invalid action: %q", s)
}

// ParseAction reads the wire form of a submittable action. Blind posts are
// rejected: only the engine writes those.
func ParseAction(s string) (ActionType, error) {
	switch s {
	case "fold":
		return ActionFold, nil
	case "check":
		return ActionCheck, nil
	case "call":
		return ActionCall, nil
	case "bet":
		return ActionBet, nil
	case "raise":
		return ActionRaise, nil
	case "all-in", "allin":
		return ActionAllIn, nil
	}
	return 0, fmt.Errorf("invalid action: %q", s)
}

// Action is one entry of the per-hand audit log. Amount is the seat's
// running per-round commitment after the action was applied.
type Action struct {
	SeatNumber int        `json:"seatNumber"`
	AgentID    string     `json:"agentId"`
	AgentName  string     `json:"agentName"`
	Type       ActionType `json:"action"`
	Amount     int64      `json:"amount"`
	Round      Phase      `json:"round"`
	At         time.Time  `json:"at"`
}

// SidePot is one layer of the showdown pot split. EligibleSeats lists the
// non-folded seats that can win it, in ascending seat order.
type SidePot struct {
	Amount        int64 `json:"amount"`
	EligibleSeats []int `json:"eligibleSeats"`
}

// Winner is one payout recorded at settlement.
type Winner struct {
	SeatNumber int    `json:"seatNumber"`
	AgentID    string `json:"agentId"`
	AgentName  string `json:"agentName"`
	Amount     int64  `json:"amount"`
	HandName   string `json:"handName"`
}

// UncalledBet records the refund of the top live contribution nobody matched.
type UncalledBet struct {
	SeatNumber int    `json:"seatNumber"`
	AgentID    string `json:"agentId"`
	Amount     int64  `json:"amount"`
}

// ShownHand is one revealed holding at showdown.
type ShownHand struct {
	SeatNumber int         `json:"seatNumber"`
	AgentID    string      `json:"agentId"`
	HandName   string      `json:"handName"`
	BestFive   []card.Card `json:"bestFive"`
}

// LastPlayerStanding is the winner hand name when everyone else folded.
// The winner does not have to show.
const LastPlayerStanding = "Last player standing"

// RebuyEvent records an automatic bot rebuy applied at hand completion.
type RebuyEvent struct {
	SeatNumber int
	AgentID    string
	Amount     int64
}

// SeatResult is the per-seat outcome snapshot handed to persistence.
type SeatResult struct {
	SeatNumber    int
	AgentID       string
	AgentName     string
	AgentType     AgentType
	HoleCards     []card.Card
	StartingStack int64
	FinalStack    int64
	Won           bool
	WinAmount     int64
	HandName      string
}

// HandResult is everything a completed hand leaves behind: the archived hand,
// per-seat outcomes, and any automatic bot rebuys.
type HandResult struct {
	TableID   string
	Hand      *Hand
	Seats     []SeatResult
	BotRebuys []RebuyEvent
}
