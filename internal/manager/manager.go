// Package manager owns the process-wide game state: the fixed table set, the
// agent registry, and the single ticker that advances every table. Request
// handlers and the ticker serialize on a per-table mutex; persistence, escrow
// and event I/O always happen after that mutex is released, so a slow backend
// can never stall a hand.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pokerarena/holdem"
	"pokerarena/holdem/bot"
	"pokerarena/internal/codec"
	"pokerarena/internal/escrow"
	"pokerarena/internal/events"
	"pokerarena/internal/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrClosed         = errors.New("manager is shut down")
	ErrTableNotFound  = errors.New("table not found")
	ErrAgentNotSeated = errors.New("agent is not seated at this table")
	ErrAlreadySeated  = errors.New("agent already has a seat at this table")
	ErrNoSeat         = errors.New("no empty seat available")
)

const (
	tickInterval = 500 * time.Millisecond

	// Pacing for tables with at least one human seat.
	botThinkDelay    = 800 * time.Millisecond
	showdownHold     = 3 * time.Second
	humanTurnTimeout = 30 * time.Second

	// Bot-only tables race through hands: no think delay, a token showdown
	// hold, and up to maxStepsPerTick progressions inside one tick.
	botOnlyShowdownHold = 300 * time.Millisecond
	maxStepsPerTick     = 50

	leaderboardFetchWindow = 100
	shutdownSettleTimeout  = 10 * time.Second
)

// DefaultTables is the fixed arena lineup, six seats each with 20-100 big
// blind buy-in windows.
func DefaultTables() []holdem.TableConfig {
	return []holdem.TableConfig{
		{ID: "t-micro", Name: "Micro", SmallBlind: 1, BigBlind: 2, MinBuyIn: 40, MaxBuyIn: 200, MaxSeats: 6},
		{ID: "t-low", Name: "Low", SmallBlind: 5, BigBlind: 10, MinBuyIn: 200, MaxBuyIn: 1000, MaxSeats: 6},
		{ID: "t-mid", Name: "Mid", SmallBlind: 25, BigBlind: 50, MinBuyIn: 1000, MaxBuyIn: 5000, MaxSeats: 6},
		{ID: "t-high", Name: "High", SmallBlind: 100, BigBlind: 200, MinBuyIn: 4000, MaxBuyIn: 20000, MaxSeats: 6},
	}
}

// Broadcaster receives a fresh public view after every mutation of a table.
type Broadcaster interface {
	Broadcast(tableID string, view codec.TableView)
}

// tableState pairs one table with the mutex that serializes every touch of
// it. Both the ticker and request handlers go through mu.
type tableState struct {
	mu    sync.Mutex
	table *holdem.Table
}

// Deps are the collaborators a Manager writes to. Store is required; a nil
// Escrow or Events falls back to the no-op implementation. Now replaces the
// wall clock in tests. A nil Tables gets DefaultTables plus the standard bot
// seeding; an explicit table set starts unpopulated.
type Deps struct {
	Store  store.Service
	Escrow escrow.Client
	Events events.Publisher
	Now    func() time.Time
	Tables []holdem.TableConfig
}

// Manager is safe for concurrent use. Lock order: a table's mutex may be
// held while taking m.mu, never the reverse.
type Manager struct {
	mu       sync.RWMutex
	tables   map[string]*tableState
	order    []string
	agents   map[string]*holdem.Agent
	deciders map[string]bot.Decider
	caster   Broadcaster
	botSeq   int
	closed   bool

	storeSvc store.Service
	recorder *store.Recorder
	escrow   escrow.Client
	events   events.Publisher

	now func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds the table set, restores hand numbering from the store, and for
// the default lineup seats the opening bots. The ticker is not running yet:
// call Start, or drive tickAll directly in tests.
func New(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("manager: store service is required")
	}
	if deps.Escrow == nil {
		deps.Escrow = escrow.NewNoop()
	}
	if deps.Events == nil {
		deps.Events = events.NewNoop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	seedBots := deps.Tables == nil
	cfgs := deps.Tables
	if cfgs == nil {
		cfgs = DefaultTables()
	}

	m := &Manager{
		tables:   make(map[string]*tableState, len(cfgs)),
		agents:   make(map[string]*holdem.Agent),
		deciders: make(map[string]bot.Decider),
		storeSvc: deps.Store,
		recorder: store.NewRecorder(deps.Store, 0),
		escrow:   deps.Escrow,
		events:   deps.Events,
		now:      deps.Now,
		done:     make(chan struct{}),
	}

	for _, cfg := range cfgs {
		t, err := holdem.NewTable(cfg)
		if err != nil {
			return nil, fmt.Errorf("manager: %w", err)
		}
		if _, dup := m.tables[cfg.ID]; dup {
			return nil, fmt.Errorf("manager: duplicate table id %q", cfg.ID)
		}
		m.tables[cfg.ID] = &tableState{table: t}
		m.order = append(m.order, cfg.ID)
	}

	ctx := context.Background()
	if err := m.storeSvc.UpsertTableConfigs(ctx, cfgs); err != nil {
		return nil, fmt.Errorf("manager: upsert table configs: %w", err)
	}
	maxes, err := m.storeSvc.GetMaxHandNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("manager: restore hand numbers: %w", err)
	}
	for id, n := range maxes {
		if ts := m.tables[id]; ts != nil && n > 0 {
			ts.table.SetHandCount(n)
			log.Infof("[Manager] table %s resumes at hand %d", id, n+1)
		}
	}

	if seedBots {
		m.seedDefaultBots()
	}
	return m, nil
}

// seedDefaultBots fills each table with two or three opening bots, cycling
// through the strategies so every table has a mix.
func (m *Manager) seedDefaultBots() {
	strategies := []holdem.AgentType{holdem.AgentFish, holdem.AgentTAG, holdem.AgentLAG}
	next := 0
	for i, id := range m.order {
		count := 2 + i%2
		for j := 0; j < count; j++ {
			kind := strategies[next%len(strategies)]
			next++
			if _, err := m.AddBot(id, string(kind)); err != nil {
				log.Warnf("[Manager] seed bot on %s: %v", id, err)
			}
		}
	}
}

// Start launches the 500 ms ticker. Close stops it again.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
	log.Infof("[Manager] ticker started, %d tables", len(m.order))
}

func (m *Manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tickAll(m.now())
		case <-m.done:
			return
		}
	}
}

// Close stops the ticker, settles every wallet-backed stack back through the
// escrow client, and drains the recorder. Safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
		m.wg.Wait()
		m.settleAllTables()
		if err := m.recorder.Close(); err != nil {
			log.Warnf("[Manager] recorder close: %v", err)
		}
		log.Infof("[Manager] shut down")
	})
	return nil
}

func (m *Manager) settleAllTables() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownSettleTimeout)
	defer cancel()
	for _, id := range m.tableIDs() {
		ts := m.state(id)
		if ts == nil {
			continue
		}
		var wallets []string
		var stacks []int64
		ts.mu.Lock()
		for _, s := range ts.table.Seats {
			if s.Occupied() && s.Agent.WalletAddress != "" {
				wallets = append(wallets, s.Agent.WalletAddress)
				stacks = append(stacks, s.Stack)
			}
		}
		ts.mu.Unlock()
		if len(wallets) == 0 {
			continue
		}
		if err := m.escrow.BatchSettle(ctx, id, wallets, stacks); err != nil {
			log.Warnf("[Manager] shutdown settle table %s: %v", id, err)
			continue
		}
		log.Infof("[Manager] settled %d stacks on table %s", len(wallets), id)
	}
}

// SetBroadcaster wires the live feed. Call before Start.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.caster = b
	m.mu.Unlock()
}

func (m *Manager) tableIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) state(tableID string) *tableState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[tableID]
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) deciderFor(agentID string) bot.Decider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deciders[agentID]
}

// registerAgent stores the agent, reusing the existing entry when the id has
// been seen before so lifetime counters survive re-seating.
func (m *Manager) registerAgent(agent *holdem.Agent, decider bot.Decider) *holdem.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.agents[agent.ID]; ok {
		if agent.WalletAddress != "" {
			existing.WalletAddress = agent.WalletAddress
		}
		agent = existing
	} else {
		m.agents[agent.ID] = agent
	}
	if decider != nil {
		m.deciders[agent.ID] = decider
	}
	return agent
}

// --- tick loop ---

// tickAll runs one progression pass over every table. Exposed to tests
// through the package boundary only.
func (m *Manager) tickAll(now time.Time) {
	for _, id := range m.tableIDs() {
		ts := m.state(id)
		if ts == nil {
			continue
		}
		m.tickTable(ts, now)
	}
}

// tickTable advances one table under its lock, then ships whatever the pass
// produced: completed hands to the recorder and event stream, a fresh view
// to the feed.
func (m *Manager) tickTable(ts *tableState, now time.Time) {
	ts.mu.Lock()
	results, view, changed := m.progressLocked(ts.table, now)
	ts.mu.Unlock()

	for _, res := range results {
		m.publishResult(res)
	}
	if changed {
		m.emit(ts.table.Config.ID, view)
	}
}

// progressLocked is the per-table guard: a panic anywhere in a progression
// step aborts the hand, refunds the open round bets, and leaves the table
// ready to deal again.
func (m *Manager) progressLocked(t *holdem.Table, now time.Time) (results []*holdem.HandResult, view codec.TableView, changed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Table %s] progression panic, aborting hand: %v", t.Config.ID, r)
			t.AbortHand()
			changed = true
		}
		if changed {
			view = viewLocked(t)
		}
	}()

	steps := 1
	if !tableHasHuman(t) {
		steps = maxStepsPerTick
	}
	for i := 0; i < steps; i++ {
		res, advanced := m.stepLocked(t, now)
		if res != nil {
			results = append(results, res)
		}
		if !advanced {
			break
		}
		changed = true
	}
	return results, view, changed
}

// stepLocked makes at most one state transition: deal, complete a showdown,
// let a bot act, or time a human out. It reports whether anything moved.
func (m *Manager) stepLocked(t *holdem.Table, now time.Time) (*holdem.HandResult, bool) {
	h := t.CurrentHand
	if h == nil {
		t.ClearAutoSitOuts()
		if t.ActiveCount() < 2 {
			return nil, false
		}
		if _, err := t.StartHand(now); err != nil {
			log.Warnf("[Table %s] start hand: %v", t.Config.ID, err)
			return nil, false
		}
		log.Debugf("[Table %s] hand %d started, %d players", t.Config.ID, t.CurrentHand.HandNumber, t.ActiveCount())
		return nil, true
	}

	if h.Phase == holdem.PhaseShowdown {
		hold := showdownHold
		if !tableHasHuman(t) {
			hold = botOnlyShowdownHold
		}
		if now.Sub(h.LastActionAt) < hold {
			return nil, false
		}
		res, err := t.CompleteShowdown(now)
		if err != nil {
			log.Errorf("[Table %s] complete showdown: %v", t.Config.ID, err)
			t.AbortHand()
			return nil, true
		}
		log.Debugf("[Table %s] hand %d complete, %d winners", t.Config.ID, res.Hand.HandNumber, len(res.Hand.Winners))
		return res, true
	}

	if !h.Phase.Betting() {
		return nil, false
	}
	seat := h.CurrentTurnSeat()
	if seat == holdem.NoSeat {
		return nil, false
	}
	s := t.Seats[seat]
	if !s.Occupied() {
		return nil, false
	}

	if s.Agent.IsBot() {
		think := botThinkDelay
		if !tableHasHuman(t) {
			think = 0
		}
		if now.Sub(h.LastActionAt) < think {
			return nil, false
		}
		m.botActLocked(t, h, s, now)
		return nil, true
	}

	if now.Sub(h.LastActionAt) < humanTurnTimeout {
		return nil, false
	}
	typ := holdem.ActionFold
	if s.CurrentBet == h.CurrentBet {
		typ = holdem.ActionCheck
	}
	if err := t.ProcessAction(seat, typ, 0, now); err != nil {
		log.Errorf("[Table %s] timeout auto-%s for seat %d failed: %v, aborting hand", t.Config.ID, typ, seat, err)
		t.AbortHand()
		return nil, true
	}
	log.Infof("[Table %s] %s timed out, auto %s", t.Config.ID, s.Agent.Name, typ)
	return nil, true
}

// botActLocked asks the seat's decider for a move and applies it, falling
// back to check then fold when the engine rejects the decision, so a bad
// policy can never hang the table.
func (m *Manager) botActLocked(t *holdem.Table, h *holdem.Hand, s *holdem.Seat, now time.Time) {
	decision := bot.Decision{Action: holdem.ActionCheck}
	if d := m.deciderFor(s.Agent.ID); d != nil {
		decision = d.Decide(botView(t, h, s))
	}
	err := t.ProcessAction(s.Number, decision.Action, decision.Amount, now)
	if err == nil {
		log.Debugf("[Table %s] bot %s: %s %d", t.Config.ID, s.Agent.Name, decision.Action, decision.Amount)
		return
	}
	log.Debugf("[Table %s] bot %s decision %s rejected (%v), falling back", t.Config.ID, s.Agent.Name, decision.Action, err)
	if err := t.ProcessAction(s.Number, holdem.ActionCheck, 0, now); err == nil {
		return
	}
	if err := t.ProcessAction(s.Number, holdem.ActionFold, 0, now); err != nil {
		log.Errorf("[Table %s] fallback fold for seat %d failed: %v, aborting hand", t.Config.ID, s.Number, err)
		t.AbortHand()
	}
}

// botView projects the table into what a decider is allowed to see.
func botView(t *holdem.Table, h *holdem.Hand, s *holdem.Seat) bot.GameView {
	active := 0
	for _, o := range t.Seats {
		if o.InHand() && !o.HasFolded {
			active++
		}
	}
	return bot.GameView{
		Round:           h.CurrentRound,
		HoleCards:       s.HoleCards,
		Community:       h.CommunityCards,
		Pot:             h.Pot,
		CurrentBet:      h.CurrentBet,
		MyBet:           s.CurrentBet,
		MyStack:         s.Stack,
		MinRaise:        h.MinRaise,
		BigBlind:        t.Config.BigBlind,
		ActivePlayers:   active,
		RaisesThisRound: h.RaisesThisRound,
		CanRaise:        !s.HasActed,
	}
}

// publishResult hands a completed hand to the recorder and the event stream.
// Runs with no table lock held; both sinks are non-blocking.
func (m *Manager) publishResult(res *holdem.HandResult) {
	rec := store.RecordFromResult(res)
	if rec == nil {
		return
	}
	m.recorder.RecordHand(rec)
	m.events.HandCompleted(rec)
	for _, w := range res.Hand.Winners {
		m.recordChipTx(&store.ChipTx{
			AgentID: w.AgentID,
			TableID: res.TableID,
			HandID:  rec.HandID,
			Kind:    store.TxPotWin,
			Amount:  w.Amount,
			At:      rec.CompletedAt,
		})
	}
	for _, rb := range res.BotRebuys {
		m.recordChipTx(&store.ChipTx{
			AgentID: rb.AgentID,
			TableID: res.TableID,
			HandID:  rec.HandID,
			Kind:    store.TxRebuy,
			Amount:  rb.Amount,
			At:      rec.CompletedAt,
		})
	}
}

func (m *Manager) recordChipTx(tx *store.ChipTx) {
	m.recorder.RecordChipTx(tx)
	m.events.ChipTx(tx)
}

func (m *Manager) emit(tableID string, view codec.TableView) {
	m.mu.RLock()
	b := m.caster
	m.mu.RUnlock()
	if b != nil {
		b.Broadcast(tableID, view)
	}
}

func tableHasHuman(t *holdem.Table) bool {
	for _, s := range t.Seats {
		if s.Occupied() && !s.Agent.IsBot() {
			return true
		}
	}
	return false
}

// turnDeadline is when the current turn times out, shown only for human
// turns: bots pace themselves.
func turnDeadline(t *holdem.Table) *time.Time {
	h := t.CurrentHand
	if h == nil {
		return nil
	}
	seat := h.CurrentTurnSeat()
	if seat < 0 || seat >= len(t.Seats) {
		return nil
	}
	s := t.Seats[seat]
	if !s.Occupied() || s.Agent.IsBot() {
		return nil
	}
	d := h.LastActionAt.Add(humanTurnTimeout)
	return &d
}

// viewLocked renders the public projection of a table, caller holding its
// lock.
func viewLocked(t *holdem.Table) codec.TableView {
	return codec.View(t, "", turnDeadline(t))
}

func newAgentID() string {
	return uuid.NewString()
}
