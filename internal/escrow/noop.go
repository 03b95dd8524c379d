package escrow

import "context"

// Noop accepts every call and holds nothing, for deployments where custody
// lives entirely outside this process.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Deposit(ctx context.Context, tableID, wallet string, amount int64) error { return nil }

func (Noop) Settle(ctx context.Context, tableID, wallet string, finalStack int64) error { return nil }

func (Noop) Refund(ctx context.Context, tableID, wallet string, amount int64) error { return nil }

func (Noop) BatchSettle(ctx context.Context, tableID string, wallets []string, stacks []int64) error {
	return nil
}

func (Noop) EmergencyRefundTable(ctx context.Context, tableID string) error { return nil }
