// Package escrow is the boundary to the chip custody system. The game
// manager treats in-memory stacks as authoritative and calls through this
// interface at the cash-in and cash-out edges only, so a real settlement
// backend can replace the simulator without touching game logic.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInsufficientDeposit = errors.New("escrow: deposit not found or too small")
	ErrUnknownTable        = errors.New("escrow: unknown table")
)

// Client is what the manager needs from custody: money in on sit, money out
// on leave, everything out on shutdown, and a panic button.
type Client interface {
	// Deposit locks a player's buy-in under a table before they are seated.
	Deposit(ctx context.Context, tableID, wallet string, amount int64) error
	// Settle releases a player's final stack when they leave the table and
	// closes their escrow entry.
	Settle(ctx context.Context, tableID, wallet string, finalStack int64) error
	// Refund backs out part of a wallet's deposit without closing its
	// escrow, used when a buy-in was locked but the table rejected the sit.
	Refund(ctx context.Context, tableID, wallet string, amount int64) error
	// BatchSettle releases every listed stack at once, used at shutdown.
	BatchSettle(ctx context.Context, tableID string, wallets []string, stacks []int64) error
	// EmergencyRefundTable returns all deposits on a table to their owners.
	EmergencyRefundTable(ctx context.Context, tableID string) error
}

// BalanceReader is implemented by backends that can report how much a wallet
// has locked under a table. The simulator implements it; a fire-and-forget
// backend may not.
type BalanceReader interface {
	EscrowBalance(ctx context.Context, tableID, wallet string) (int64, error)
}

// NewClientFromEnv picks the escrow backend from ESCROW_MODE: "sim" (the
// default) keeps balances in memory, "off" accepts everything and holds
// nothing.
func NewClientFromEnv() (Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("ESCROW_MODE")))
	if mode == "" {
		mode = "sim"
	}
	switch mode {
	case "sim":
		return NewSimulator(), mode, nil
	case "off":
		return NewNoop(), mode, nil
	}
	return nil, "", fmt.Errorf("unsupported ESCROW_MODE %q", mode)
}
