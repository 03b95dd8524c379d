package holdem

import (
	"fmt"
	"time"

	"pokerarena/card"
)

// maxArchivedHands bounds the in-memory per-table hand history ring.
const maxArchivedHands = 50

// TableConfig is the immutable shape of a table.
type TableConfig struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	MinBuyIn   int64  `json:"minBuyIn"`
	MaxBuyIn   int64  `json:"maxBuyIn"`
	MaxSeats   int    `json:"maxSeats"`
}

func (c TableConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("table config: missing id")
	}
	if c.SmallBlind <= 0 || c.BigBlind < c.SmallBlind {
		return fmt.Errorf("table config %s: bad blinds %d/%d", c.ID, c.SmallBlind, c.BigBlind)
	}
	if c.MinBuyIn <= 0 || c.MaxBuyIn < c.MinBuyIn {
		return fmt.Errorf("table config %s: bad buy-in range %d..%d", c.ID, c.MinBuyIn, c.MaxBuyIn)
	}
	if c.MaxSeats < 2 {
		return fmt.Errorf("table config %s: need at least two seats", c.ID)
	}
	return nil
}

// Table holds the seats and the live hand of one game. A Table is not safe
// for concurrent use: callers serialize access with their own per-table lock.
type Table struct {
	Config TableConfig
	Seats  []*Seat

	CurrentHand *Hand
	HandHistory []*Hand
	HandCount   int64

	dealerSeat  int
	deckFactory func() (*card.Deck, error)
}

func NewTable(cfg TableConfig) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seats := make([]*Seat, cfg.MaxSeats)
	for i := range seats {
		seats[i] = &Seat{Number: i}
	}
	return &Table{
		Config:      cfg,
		Seats:       seats,
		dealerSeat:  NoSeat,
		deckFactory: card.NewShuffledDeck,
	}, nil
}

// SetDeckFactory replaces the deck source, used to script hands in tests.
func (t *Table) SetDeckFactory(f func() (*card.Deck, error)) {
	t.deckFactory = f
}

// SetHandCount seeds the hand counter so numbering continues across restarts.
func (t *Table) SetHandCount(n int64) {
	if n > t.HandCount {
		t.HandCount = n
	}
}

// Status reports "playing" while a hand is live, "waiting" otherwise.
func (t *Table) Status() string {
	if t.CurrentHand != nil {
		return "playing"
	}
	return "waiting"
}

func (t *Table) seat(n int) (*Seat, error) {
	if n < 0 || n >= len(t.Seats) {
		return nil, ErrInvalidSeat
	}
	return t.Seats[n], nil
}

// SeatAgent places an agent on an empty seat with a buy-in inside the table
// limits. startSittingOut seats the agent as a watcher first; the flag is
// cleared between hands.
func (t *Table) SeatAgent(seatNumber int, agent *Agent, buyIn int64, startSittingOut bool) error {
	s, err := t.seat(seatNumber)
	if err != nil {
		return err
	}
	if s.Occupied() {
		return ErrSeatOccupied
	}
	if buyIn < t.Config.MinBuyIn || buyIn > t.Config.MaxBuyIn {
		return ErrBuyInOutOfRange
	}
	s.Agent = agent
	s.Stack = buyIn
	s.BuyIn = buyIn
	s.IsSittingOut = startSittingOut
	s.AutoResume = startSittingOut
	s.resetForHand()
	return nil
}

// RemoveAgent clears the seat and returns the departing agent with its cash
// out. A seat still live in the current hand is folded first and its
// unrealized hand delta is folded into the agent's lifetime profit.
func (t *Table) RemoveAgent(seatNumber int, now time.Time) (*Agent, int64, error) {
	s, err := t.seat(seatNumber)
	if err != nil {
		return nil, 0, err
	}
	if !s.Occupied() {
		return nil, 0, ErrSeatEmpty
	}
	if h := t.CurrentHand; h != nil && s.InHand() {
		if s.CanAct() && h.Phase.Betting() {
			t.forceFold(s, h, now)
		}
		if start, ok := h.StartingStack(seatNumber); ok && h.Phase != PhaseComplete {
			s.Agent.Profit += s.Stack - start
		}
		if s.TotalContributed > 0 && h.Phase.Betting() {
			h.priv.deadContributions = append(h.priv.deadContributions, s.TotalContributed)
		}
	}
	agent := s.Agent
	cashOut := s.Stack
	s.Agent = nil
	s.Stack = 0
	s.BuyIn = 0
	s.IsSittingOut = false
	s.AutoResume = false
	s.resetForHand()
	return agent, cashOut, nil
}

// Rebuy tops up a stack between hands, capped so stack plus top-up never
// exceeds the table maximum buy-in.
func (t *Table) Rebuy(seatNumber int, amount int64) error {
	s, err := t.seat(seatNumber)
	if err != nil {
		return err
	}
	if !s.Occupied() {
		return ErrSeatEmpty
	}
	if amount <= 0 {
		return ErrBuyInOutOfRange
	}
	if t.CurrentHand != nil && s.InHand() {
		return ErrRebuyMidHand
	}
	if s.Stack+amount > t.Config.MaxBuyIn {
		return ErrRebuyOverLimit
	}
	s.Stack += amount
	s.BuyIn += amount
	return nil
}

// SitOut marks the seat away from the next hands. The current hand is not
// interrupted.
func (t *Table) SitOut(seatNumber int) error {
	s, err := t.seat(seatNumber)
	if err != nil {
		return err
	}
	if !s.Occupied() {
		return ErrSeatEmpty
	}
	s.IsSittingOut = true
	s.AutoResume = false
	return nil
}

// Resume puts a sitting-out seat back into rotation.
func (t *Table) Resume(seatNumber int) error {
	s, err := t.seat(seatNumber)
	if err != nil {
		return err
	}
	if !s.Occupied() {
		return ErrSeatEmpty
	}
	s.IsSittingOut = false
	s.AutoResume = false
	return nil
}

// ClearAutoSitOuts re-activates watchers that were seated sitting out, done
// by the tick loop between hands.
func (t *Table) ClearAutoSitOuts() {
	for _, s := range t.Seats {
		if s.Occupied() && s.IsSittingOut && s.AutoResume && s.Stack > 0 {
			s.IsSittingOut = false
			s.AutoResume = false
		}
	}
}

// FindSeatByAgent returns the seat an agent occupies, or nil.
func (t *Table) FindSeatByAgent(agentID string) *Seat {
	for _, s := range t.Seats {
		if s.Occupied() && s.Agent.ID == agentID {
			return s
		}
	}
	return nil
}

// FirstEmptySeat returns the lowest empty seat number, or NoSeat.
func (t *Table) FirstEmptySeat() int {
	for _, s := range t.Seats {
		if !s.Occupied() {
			return s.Number
		}
	}
	return NoSeat
}

// SeatedCount counts occupied seats.
func (t *Table) SeatedCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.Occupied() {
			n++
		}
	}
	return n
}

// ActiveCount counts seats that would be dealt into the next hand.
func (t *Table) ActiveCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.Active() {
			n++
		}
	}
	return n
}

// NextActiveSeat walks clockwise from the given seat and returns the first
// seat that can play a hand, wrapping around. Returns NoSeat when none exist.
func (t *Table) NextActiveSeat(after int) int {
	n := len(t.Seats)
	if n == 0 {
		return NoSeat
	}
	start := after
	if start < 0 || start >= n {
		start = n - 1
	}
	for i := 1; i <= n; i++ {
		s := t.Seats[(start+i)%n]
		if s.Active() {
			return s.Number
		}
	}
	return NoSeat
}

// nextInHandSeat is NextActiveSeat restricted to seats dealt into the
// current hand that have not folded.
func (t *Table) nextInHandSeat(after int) int {
	n := len(t.Seats)
	for i := 1; i <= n; i++ {
		s := t.Seats[(after+i)%n]
		if s.InHand() && !s.HasFolded {
			return s.Number
		}
	}
	return NoSeat
}

func (t *Table) inHandCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.InHand() {
			n++
		}
	}
	return n
}

func (t *Table) nonFoldedCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.InHand() && !s.HasFolded {
			n++
		}
	}
	return n
}

func (t *Table) archiveHand(h *Hand) {
	t.HandHistory = append(t.HandHistory, h)
	if len(t.HandHistory) > maxArchivedHands {
		t.HandHistory = t.HandHistory[1:]
	}
}
