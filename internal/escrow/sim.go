package escrow

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Settlement is one completed payout, kept so operators and tests can audit
// what the simulator released.
type Settlement struct {
	TableID string
	Wallet  string
	Amount  int64
}

// Simulator is the in-memory escrow used in development. It is deterministic
// and strict: a settle against a wallet with no deposit is an error, which
// catches manager bookkeeping bugs early.
type Simulator struct {
	mu          sync.Mutex
	deposits    map[string]map[string]int64
	settlements []Settlement

	// Fault injection for tests.
	DepositErr error
	SettleErr  error
}

func NewSimulator() *Simulator {
	return &Simulator{deposits: make(map[string]map[string]int64)}
}

func (s *Simulator) Deposit(ctx context.Context, tableID, wallet string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DepositErr != nil {
		return s.DepositErr
	}
	if s.deposits[tableID] == nil {
		s.deposits[tableID] = make(map[string]int64)
	}
	s.deposits[tableID][wallet] += amount
	log.Debugf("[Escrow] deposit table=%s wallet=%s amount=%d", tableID, wallet, amount)
	return nil
}

func (s *Simulator) Settle(ctx context.Context, tableID, wallet string, finalStack int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettleErr != nil {
		return s.SettleErr
	}
	return s.settleLocked(tableID, wallet, finalStack)
}

func (s *Simulator) settleLocked(tableID, wallet string, finalStack int64) error {
	wallets, ok := s.deposits[tableID]
	if !ok {
		return ErrUnknownTable
	}
	if _, ok := wallets[wallet]; !ok {
		return ErrInsufficientDeposit
	}
	delete(wallets, wallet)
	s.settlements = append(s.settlements, Settlement{TableID: tableID, Wallet: wallet, Amount: finalStack})
	log.Debugf("[Escrow] settle table=%s wallet=%s amount=%d", tableID, wallet, finalStack)
	return nil
}

// Refund subtracts amount from the wallet's locked deposit, closing the
// entry only when it reaches zero. Refunding more than is locked is a
// bookkeeping bug and errors.
func (s *Simulator) Refund(ctx context.Context, tableID, wallet string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettleErr != nil {
		return s.SettleErr
	}
	wallets, ok := s.deposits[tableID]
	if !ok {
		return ErrUnknownTable
	}
	bal, ok := wallets[wallet]
	if !ok || bal < amount {
		return ErrInsufficientDeposit
	}
	if bal == amount {
		delete(wallets, wallet)
	} else {
		wallets[wallet] = bal - amount
	}
	s.settlements = append(s.settlements, Settlement{TableID: tableID, Wallet: wallet, Amount: amount})
	log.Debugf("[Escrow] refund table=%s wallet=%s amount=%d", tableID, wallet, amount)
	return nil
}

func (s *Simulator) BatchSettle(ctx context.Context, tableID string, wallets []string, stacks []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SettleErr != nil {
		return s.SettleErr
	}
	for i, w := range wallets {
		var stack int64
		if i < len(stacks) {
			stack = stacks[i]
		}
		if err := s.settleLocked(tableID, w, stack); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) EmergencyRefundTable(ctx context.Context, tableID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets, ok := s.deposits[tableID]
	if !ok {
		return ErrUnknownTable
	}
	for w, amount := range wallets {
		s.settlements = append(s.settlements, Settlement{TableID: tableID, Wallet: w, Amount: amount})
		log.Warnf("[Escrow] emergency refund table=%s wallet=%s amount=%d", tableID, w, amount)
	}
	delete(s.deposits, tableID)
	return nil
}

func (s *Simulator) EscrowBalance(ctx context.Context, tableID, wallet string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deposits[tableID][wallet], nil
}

// Settlements returns a copy of every payout released so far.
func (s *Simulator) Settlements() []Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Settlement(nil), s.settlements...)
}
