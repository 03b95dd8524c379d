package manager

import (
	"context"
	"fmt"
	"sort"

	"pokerarena/holdem"
	"pokerarena/holdem/bot"
	"pokerarena/internal/codec"
	"pokerarena/internal/escrow"
	"pokerarena/internal/store"

	log "github.com/sirupsen/logrus"
	"github.com/thoas/go-funk"
)

// SitRequest seats a human agent. SeatNumber NoSeat takes the first empty
// seat; an empty AgentID mints a fresh identity. A non-empty DepositTxHash
// asserts the buy-in was already deposited on chain, so no Deposit call is
// made for it.
type SitRequest struct {
	SeatNumber    int
	BuyIn         int64
	AgentID       string
	AgentName     string
	WalletAddress string
	DepositTxHash string
}

// SeatedAgent is the response to a successful sit or add-bot.
type SeatedAgent struct {
	AgentID    string           `json:"agentId"`
	AgentName  string           `json:"agentName"`
	AgentType  holdem.AgentType `json:"agentType"`
	TableID    string           `json:"tableId"`
	SeatNumber int              `json:"seatNumber"`
	Stack      int64            `json:"stack"`
}

// LeaveResult reports a cash-out. SettlementError carries a failed on-chain
// settlement without failing the leave itself.
type LeaveResult struct {
	AgentID         string `json:"agentId"`
	AgentName       string `json:"agentName"`
	SeatNumber      int    `json:"seatNumber"`
	CashOut         int64  `json:"cashOut"`
	WalletAddress   string `json:"walletAddress,omitempty"`
	SettlementError string `json:"settlementError,omitempty"`
}

// ListTables renders the lobby summaries in the fixed table order.
func (m *Manager) ListTables() []codec.TableSummary {
	out := make([]codec.TableSummary, 0, len(m.tableIDs()))
	for _, id := range m.tableIDs() {
		ts := m.state(id)
		if ts == nil {
			continue
		}
		ts.mu.Lock()
		out = append(out, codec.Summary(ts.table))
		ts.mu.Unlock()
	}
	return out
}

// GetTable renders one table for a viewer. Hole cards other than the
// viewer's own stay hidden until showdown.
func (m *Manager) GetTable(tableID, viewerAgentID string) (codec.TableView, error) {
	ts := m.state(tableID)
	if ts == nil {
		return codec.TableView{}, ErrTableNotFound
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return codec.View(ts.table, viewerAgentID, turnDeadline(ts.table)), nil
}

// SitAgent deposits the buy-in into table escrow when the agent plays with a
// wallet, then seats them. A sit the table rejects after a deposit went
// through is compensated with a refund of the same amount, so chips in
// memory and tokens in escrow stay mirrored.
func (m *Manager) SitAgent(ctx context.Context, tableID string, req SitRequest) (SeatedAgent, error) {
	if m.isClosed() {
		return SeatedAgent{}, ErrClosed
	}
	ts := m.state(tableID)
	if ts == nil {
		return SeatedAgent{}, ErrTableNotFound
	}
	if req.AgentID == "" {
		req.AgentID = newAgentID()
	}
	if req.AgentName == "" {
		req.AgentName = "Player"
	}

	deposited := false
	if req.WalletAddress != "" && req.DepositTxHash == "" {
		if err := m.escrow.Deposit(ctx, tableID, req.WalletAddress, req.BuyIn); err != nil {
			return SeatedAgent{}, fmt.Errorf("escrow deposit: %w", err)
		}
		deposited = true
	}

	m.mu.RLock()
	agent := m.agents[req.AgentID]
	m.mu.RUnlock()
	fresh := agent == nil
	if fresh {
		agent = &holdem.Agent{
			ID:            req.AgentID,
			Name:          req.AgentName,
			Type:          holdem.AgentHuman,
			WalletAddress: req.WalletAddress,
		}
	}

	ts.mu.Lock()
	t := ts.table
	var seatErr error
	seatNo := req.SeatNumber
	switch {
	case t.FindSeatByAgent(req.AgentID) != nil:
		seatErr = ErrAlreadySeated
	default:
		if seatNo == holdem.NoSeat {
			seatNo = t.FirstEmptySeat()
		}
		if seatNo == holdem.NoSeat {
			seatErr = ErrNoSeat
		} else {
			seatErr = t.SeatAgent(seatNo, agent, req.BuyIn, false)
		}
	}
	var view codec.TableView
	if seatErr == nil {
		if !fresh {
			agent.Name = req.AgentName
			if req.WalletAddress != "" {
				agent.WalletAddress = req.WalletAddress
			}
		}
		view = viewLocked(t)
	}
	ts.mu.Unlock()

	if seatErr != nil {
		if deposited {
			log.Infof("[Manager] sit rejected on %s after deposit, refunding %d to %s", tableID, req.BuyIn, req.WalletAddress)
			if err := m.escrow.Refund(ctx, tableID, req.WalletAddress, req.BuyIn); err != nil {
				log.Warnf("[Manager] compensating refund for %s on %s: %v", req.WalletAddress, tableID, err)
			}
		}
		return SeatedAgent{}, seatErr
	}

	m.registerAgent(agent, nil)
	m.recordChipTx(&store.ChipTx{
		AgentID: agent.ID,
		TableID: tableID,
		Kind:    store.TxBuyIn,
		Amount:  req.BuyIn,
		At:      m.now(),
	})
	m.emit(tableID, view)
	log.Infof("[Manager] %s sat at %s seat %d with %d", agent.Name, tableID, seatNo, req.BuyIn)
	return SeatedAgent{
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		AgentType:  agent.Type,
		TableID:    tableID,
		SeatNumber: seatNo,
		Stack:      req.BuyIn,
	}, nil
}

// LeaveAgent removes the agent, force-folding a live hand position, and
// settles the cash-out to their wallet. A failed settlement is reported in
// the result, not as an error: the chips already left the table.
func (m *Manager) LeaveAgent(ctx context.Context, tableID, agentID string) (LeaveResult, error) {
	ts := m.state(tableID)
	if ts == nil {
		return LeaveResult{}, ErrTableNotFound
	}

	ts.mu.Lock()
	t := ts.table
	seat := t.FindSeatByAgent(agentID)
	if seat == nil {
		ts.mu.Unlock()
		return LeaveResult{}, ErrAgentNotSeated
	}
	seatNo := seat.Number
	agent, cashOut, err := t.RemoveAgent(seatNo, m.now())
	if err != nil {
		ts.mu.Unlock()
		return LeaveResult{}, err
	}
	view := viewLocked(t)
	ts.mu.Unlock()

	res := LeaveResult{
		AgentID:       agent.ID,
		AgentName:     agent.Name,
		SeatNumber:    seatNo,
		CashOut:       cashOut,
		WalletAddress: agent.WalletAddress,
	}
	if agent.WalletAddress != "" {
		if err := m.escrow.Settle(ctx, tableID, agent.WalletAddress, cashOut); err != nil {
			log.Warnf("[Manager] settle %d to %s on %s: %v", cashOut, agent.WalletAddress, tableID, err)
			res.SettlementError = err.Error()
		}
	}

	m.mu.Lock()
	delete(m.deciders, agentID)
	m.mu.Unlock()
	m.recordChipTx(&store.ChipTx{
		AgentID: agent.ID,
		TableID: tableID,
		Kind:    store.TxCashOut,
		Amount:  cashOut,
		At:      m.now(),
	})
	m.emit(tableID, view)
	log.Infof("[Manager] %s left %s, cashed out %d", agent.Name, tableID, cashOut)
	return res, nil
}

// SubmitAction applies one betting action from an agent.
func (m *Manager) SubmitAction(tableID, agentID, action string, amount int64) error {
	typ, err := holdem.ParseAction(action)
	if err != nil {
		return err
	}
	ts := m.state(tableID)
	if ts == nil {
		return ErrTableNotFound
	}

	ts.mu.Lock()
	t := ts.table
	seat := t.FindSeatByAgent(agentID)
	if seat == nil {
		ts.mu.Unlock()
		return ErrAgentNotSeated
	}
	err = t.ProcessAction(seat.Number, typ, amount, m.now())
	var view codec.TableView
	if err == nil {
		view = viewLocked(t)
	}
	ts.mu.Unlock()

	if err != nil {
		return err
	}
	m.emit(tableID, view)
	return nil
}

// RebuyAgent tops up a stack between hands and returns the new stack.
func (m *Manager) RebuyAgent(tableID, agentID string, amount int64) (int64, error) {
	ts := m.state(tableID)
	if ts == nil {
		return 0, ErrTableNotFound
	}

	ts.mu.Lock()
	t := ts.table
	seat := t.FindSeatByAgent(agentID)
	if seat == nil {
		ts.mu.Unlock()
		return 0, ErrAgentNotSeated
	}
	err := t.Rebuy(seat.Number, amount)
	newStack := seat.Stack
	var view codec.TableView
	if err == nil {
		view = viewLocked(t)
	}
	ts.mu.Unlock()

	if err != nil {
		return 0, err
	}
	m.recordChipTx(&store.ChipTx{
		AgentID: agentID,
		TableID: tableID,
		Kind:    store.TxRebuy,
		Amount:  amount,
		At:      m.now(),
	})
	m.emit(tableID, view)
	return newStack, nil
}

// StandAgent sits the agent out from the next hand on.
func (m *Manager) StandAgent(tableID, agentID string) error {
	return m.flipSitOut(tableID, agentID, true)
}

// ResumeAgent brings a sitting-out agent back in.
func (m *Manager) ResumeAgent(tableID, agentID string) error {
	return m.flipSitOut(tableID, agentID, false)
}

func (m *Manager) flipSitOut(tableID, agentID string, out bool) error {
	ts := m.state(tableID)
	if ts == nil {
		return ErrTableNotFound
	}

	ts.mu.Lock()
	t := ts.table
	seat := t.FindSeatByAgent(agentID)
	if seat == nil {
		ts.mu.Unlock()
		return ErrAgentNotSeated
	}
	var err error
	if out {
		err = t.SitOut(seat.Number)
	} else {
		err = t.Resume(seat.Number)
	}
	var view codec.TableView
	if err == nil {
		view = viewLocked(t)
	}
	ts.mu.Unlock()

	if err != nil {
		return err
	}
	m.emit(tableID, view)
	return nil
}

var botStrategies = []holdem.AgentType{holdem.AgentFish, holdem.AgentTAG, holdem.AgentLAG}

// AddBot seats a fresh bot of the given strategy in the first empty seat,
// buying in for the table maximum.
func (m *Manager) AddBot(tableID, strategy string) (SeatedAgent, error) {
	if m.isClosed() {
		return SeatedAgent{}, ErrClosed
	}
	kind, err := holdem.ParseAgentType(strategy)
	if err != nil || !funk.Contains(botStrategies, kind) {
		return SeatedAgent{}, fmt.Errorf("invalid bot strategy: %q", strategy)
	}
	ts := m.state(tableID)
	if ts == nil {
		return SeatedAgent{}, ErrTableNotFound
	}

	m.mu.Lock()
	m.botSeq++
	seq := m.botSeq
	m.mu.Unlock()

	decider, err := bot.New(kind, int64(seq))
	if err != nil {
		return SeatedAgent{}, err
	}
	agent := &holdem.Agent{
		ID:   newAgentID(),
		Name: botName(kind, seq),
		Type: kind,
	}

	ts.mu.Lock()
	t := ts.table
	seatNo := t.FirstEmptySeat()
	buyIn := t.Config.MaxBuyIn
	var seatErr error
	if seatNo == holdem.NoSeat {
		seatErr = ErrNoSeat
	} else {
		seatErr = t.SeatAgent(seatNo, agent, buyIn, false)
	}
	var view codec.TableView
	if seatErr == nil {
		view = viewLocked(t)
	}
	ts.mu.Unlock()

	if seatErr != nil {
		return SeatedAgent{}, seatErr
	}

	m.registerAgent(agent, decider)
	m.recordChipTx(&store.ChipTx{
		AgentID: agent.ID,
		TableID: tableID,
		Kind:    store.TxBuyIn,
		Amount:  buyIn,
		At:      m.now(),
	})
	m.emit(tableID, view)
	log.Infof("[Manager] bot %s joined %s seat %d", agent.Name, tableID, seatNo)
	return SeatedAgent{
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		AgentType:  agent.Type,
		TableID:    tableID,
		SeatNumber: seatNo,
		Stack:      buyIn,
	}, nil
}

func botName(kind holdem.AgentType, seq int) string {
	switch kind {
	case holdem.AgentTAG:
		return fmt.Sprintf("TAG-%d", seq)
	case holdem.AgentLAG:
		return fmt.Sprintf("LAG-%d", seq)
	default:
		return fmt.Sprintf("Fish-%d", seq)
	}
}

// Leaderboard merges persisted cumulative profit with the unrealized swing
// of hands still in progress: each live seat contributes its stack delta
// since the hand started. Completed hands only ever count once, through the
// persisted side.
func (m *Manager) Leaderboard(ctx context.Context, limit int) ([]store.AgentProfit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.storeSvc.TopAgentProfits(ctx, leaderboardFetchWindow)
	if err != nil {
		log.Warnf("[Manager] leaderboard query: %v, serving in-memory totals", err)
		rows = m.registryProfits()
	}

	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		idx[r.AgentID] = i
	}
	for _, id := range m.tableIDs() {
		ts := m.state(id)
		if ts == nil {
			continue
		}
		ts.mu.Lock()
		h := ts.table.CurrentHand
		if h != nil {
			for _, s := range ts.table.Seats {
				if !s.InHand() {
					continue
				}
				start, ok := h.StartingStack(s.Number)
				if !ok {
					continue
				}
				delta := s.Stack - start
				if i, seen := idx[s.Agent.ID]; seen {
					rows[i].Profit += delta
				} else {
					idx[s.Agent.ID] = len(rows)
					rows = append(rows, store.AgentProfit{
						AgentID:   s.Agent.ID,
						AgentName: s.Agent.Name,
						AgentType: string(s.Agent.Type),
						Profit:    delta,
					})
				}
			}
		}
		ts.mu.Unlock()
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Profit != rows[j].Profit {
			return rows[i].Profit > rows[j].Profit
		}
		return rows[i].AgentID < rows[j].AgentID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *Manager) registryProfits() []store.AgentProfit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]store.AgentProfit, 0, len(m.agents))
	for _, a := range m.agents {
		rows = append(rows, store.AgentProfit{
			AgentID:     a.ID,
			AgentName:   a.Name,
			AgentType:   string(a.Type),
			HandsPlayed: a.HandsPlayed,
			HandsWon:    a.HandsWon,
			Profit:      a.Profit,
		})
	}
	return rows
}

// EmergencyRefund settles a wallet's full escrowed balance back to it,
// for when a normal leave settlement failed. With a balance-reading escrow
// client the exact amount is refunded; otherwise the whole table escrow is
// released.
func (m *Manager) EmergencyRefund(ctx context.Context, tableID, wallet string) (int64, error) {
	if m.state(tableID) == nil {
		return 0, ErrTableNotFound
	}
	br, ok := m.escrow.(escrow.BalanceReader)
	if !ok {
		if err := m.escrow.EmergencyRefundTable(ctx, tableID); err != nil {
			return 0, err
		}
		log.Warnf("[Manager] emergency refund released all escrow on %s", tableID)
		return 0, nil
	}
	bal, err := br.EscrowBalance(ctx, tableID, wallet)
	if err != nil {
		return 0, err
	}
	if bal > 0 {
		if err := m.escrow.Settle(ctx, tableID, wallet, bal); err != nil {
			return 0, err
		}
	}
	log.Infof("[Manager] emergency refund of %d to %s on %s", bal, wallet, tableID)
	return bal, nil
}
