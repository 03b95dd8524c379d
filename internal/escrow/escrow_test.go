package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorDepositAndSettle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()

	require.NoError(t, sim.Deposit(ctx, "t-low", "w-alice", 500))
	require.NoError(t, sim.Deposit(ctx, "t-low", "w-alice", 250))
	require.NoError(t, sim.Deposit(ctx, "t-low", "w-bob", 1000))

	bal, err := sim.EscrowBalance(ctx, "t-low", "w-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(750), bal)

	require.NoError(t, sim.Settle(ctx, "t-low", "w-alice", 900))

	bal, err = sim.EscrowBalance(ctx, "t-low", "w-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal, "settle releases the whole deposit")

	sts := sim.Settlements()
	require.Len(t, sts, 1)
	assert.Equal(t, Settlement{TableID: "t-low", Wallet: "w-alice", Amount: 900}, sts[0])
}

func TestSimulatorSettleIsStrict(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()
	require.NoError(t, sim.Deposit(ctx, "t-low", "w-alice", 500))

	err := sim.Settle(ctx, "t-other", "w-alice", 500)
	assert.ErrorIs(t, err, ErrUnknownTable)

	err = sim.Settle(ctx, "t-low", "w-ghost", 500)
	assert.ErrorIs(t, err, ErrInsufficientDeposit)

	// Settling twice is a bookkeeping bug, not a no-op.
	require.NoError(t, sim.Settle(ctx, "t-low", "w-alice", 480))
	err = sim.Settle(ctx, "t-low", "w-alice", 480)
	assert.ErrorIs(t, err, ErrInsufficientDeposit)
}

func TestSimulatorRefundIsPartial(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()
	require.NoError(t, sim.Deposit(ctx, "t-low", "w-alice", 500))
	require.NoError(t, sim.Deposit(ctx, "t-low", "w-alice", 300))

	// Backing out the second deposit leaves the first locked.
	require.NoError(t, sim.Refund(ctx, "t-low", "w-alice", 300))
	bal, err := sim.EscrowBalance(ctx, "t-low", "w-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	sts := sim.Settlements()
	require.Len(t, sts, 1)
	assert.Equal(t, Settlement{TableID: "t-low", Wallet: "w-alice", Amount: 300}, sts[0])

	assert.ErrorIs(t, sim.Refund(ctx, "t-low", "w-alice", 600), ErrInsufficientDeposit)
	assert.ErrorIs(t, sim.Refund(ctx, "t-low", "w-ghost", 100), ErrInsufficientDeposit)
	assert.ErrorIs(t, sim.Refund(ctx, "t-other", "w-alice", 100), ErrUnknownTable)

	// A refund of everything closes the entry like a settle would.
	require.NoError(t, sim.Refund(ctx, "t-low", "w-alice", 500))
	assert.ErrorIs(t, sim.Settle(ctx, "t-low", "w-alice", 500), ErrInsufficientDeposit)
}

func TestSimulatorBatchSettle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()
	require.NoError(t, sim.Deposit(ctx, "t-mid", "w-a", 100))
	require.NoError(t, sim.Deposit(ctx, "t-mid", "w-b", 100))
	require.NoError(t, sim.Deposit(ctx, "t-mid", "w-c", 100))

	err := sim.BatchSettle(ctx, "t-mid", []string{"w-a", "w-b", "w-c"}, []int64{150, 50, 100})
	require.NoError(t, err)

	sts := sim.Settlements()
	require.Len(t, sts, 3)
	var total int64
	for _, s := range sts {
		total += s.Amount
	}
	assert.Equal(t, int64(300), total)

	for _, w := range []string{"w-a", "w-b", "w-c"} {
		bal, err := sim.EscrowBalance(ctx, "t-mid", w)
		require.NoError(t, err)
		assert.Zero(t, bal)
	}
}

func TestSimulatorEmergencyRefund(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()
	require.NoError(t, sim.Deposit(ctx, "t-high", "w-a", 2000))
	require.NoError(t, sim.Deposit(ctx, "t-high", "w-b", 4000))

	require.NoError(t, sim.EmergencyRefundTable(ctx, "t-high"))

	// Each wallet gets back exactly what it had locked.
	refunds := map[string]int64{}
	for _, s := range sim.Settlements() {
		refunds[s.Wallet] = s.Amount
	}
	assert.Equal(t, int64(2000), refunds["w-a"])
	assert.Equal(t, int64(4000), refunds["w-b"])

	assert.ErrorIs(t, sim.EmergencyRefundTable(ctx, "t-high"), ErrUnknownTable)
}

func TestSimulatorFaultInjection(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()
	boom := errors.New("backend down")

	sim.DepositErr = boom
	assert.ErrorIs(t, sim.Deposit(ctx, "t", "w", 100), boom)
	sim.DepositErr = nil
	require.NoError(t, sim.Deposit(ctx, "t", "w", 100))

	sim.SettleErr = boom
	assert.ErrorIs(t, sim.Settle(ctx, "t", "w", 100), boom)
	assert.ErrorIs(t, sim.BatchSettle(ctx, "t", []string{"w"}, []int64{100}), boom)
	sim.SettleErr = nil
	require.NoError(t, sim.Settle(ctx, "t", "w", 100))
}

func TestSimulatorHonorsContext(t *testing.T) {
	sim := NewSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, sim.Deposit(ctx, "t", "w", 100))
	assert.Error(t, sim.Settle(ctx, "t", "w", 100))
	assert.Error(t, sim.EmergencyRefundTable(ctx, "t"))
}

func TestNoopAcceptsEverything(t *testing.T) {
	ctx := context.Background()
	n := NewNoop()
	assert.NoError(t, n.Deposit(ctx, "t", "w", 100))
	assert.NoError(t, n.Settle(ctx, "t", "w", 100))
	assert.NoError(t, n.Refund(ctx, "t", "w", 100))
	assert.NoError(t, n.BatchSettle(ctx, "t", []string{"w"}, []int64{100}))
	assert.NoError(t, n.EmergencyRefundTable(ctx, "t"))
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("ESCROW_MODE", "")
	c, mode, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sim", mode)
	assert.IsType(t, &Simulator{}, c)

	t.Setenv("ESCROW_MODE", "off")
	c, mode, err = NewClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "off", mode)
	assert.IsType(t, &Noop{}, c)

	t.Setenv("ESCROW_MODE", "mainnet")
	_, _, err = NewClientFromEnv()
	assert.Error(t, err)
}
