package shares

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/storage"
)

var (
	poolP = common.HexToAddress("0x0000000000000000000000000000000000000101")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000201")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000202")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000203")
)

type recordingEmitter struct {
	emitted []events.Typed
}

func (r *recordingEmitter) Emit(ev events.Typed) { r.emitted = append(r.emitted, ev) }

type failingFacade struct {
	transfers int
	approvals int
}

func (f *failingFacade) OnShareTransfer(pool, from, to common.Address, amount *uint256.Int) error {
	f.transfers++
	return errors.New("facade unavailable")
}

func (f *failingFacade) OnShareApproval(pool, owner, spender common.Address, amount *uint256.Int) error {
	f.approvals++
	return errors.New("facade unavailable")
}

func newTestLedger(t *testing.T) (*Ledger, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	m := state.NewManager(state.NewDatabaseKV(storage.NewMemDB()))
	return NewLedger(m, nil, emitter), emitter
}

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestMintBurnRoundTrip(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, ledger.Mint(poolP, alice, amt(100)))
	balance, err := ledger.BalanceOf(poolP, alice)
	require.NoError(t, err)
	require.Equal(t, amt(100), balance)
	supply, err := ledger.TotalSupply(poolP)
	require.NoError(t, err)
	require.Equal(t, amt(100), supply)

	require.NoError(t, ledger.Burn(poolP, alice, amt(100)))
	balance, err = ledger.BalanceOf(poolP, alice)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
	supply, err = ledger.TotalSupply(poolP)
	require.NoError(t, err)
	require.True(t, supply.IsZero())
}

func TestMintSupplyOverflow(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, ledger.Mint(poolP, alice, new(uint256.Int).SetAllOne()))
	err := ledger.Mint(poolP, bob, amt(1))
	require.ErrorIs(t, err, errSupplyOverflow)
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, emitter := newTestLedger(t)
	require.NoError(t, ledger.Mint(poolP, alice, amt(50)))

	require.NoError(t, ledger.Transfer(poolP, alice, bob, amt(20)))

	fromBalance, err := ledger.BalanceOf(poolP, alice)
	require.NoError(t, err)
	require.Equal(t, amt(30), fromBalance)
	toBalance, err := ledger.BalanceOf(poolP, bob)
	require.NoError(t, err)
	require.Equal(t, amt(20), toBalance)

	require.Len(t, emitter.emitted, 2)
	ev := emitter.emitted[1].(events.ShareTransfer)
	require.Equal(t, alice, ev.From)
	require.Equal(t, bob, ev.To)
	require.Equal(t, amt(20), ev.Amount)
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(poolP, alice, amt(10)))

	err := ledger.Transfer(poolP, alice, bob, amt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestZeroAddressRejections(t *testing.T) {
	ledger, _ := newTestLedger(t)
	zero := common.Address{}

	require.ErrorIs(t, ledger.Mint(poolP, zero, amt(1)), ErrInvalidReceiver)
	require.ErrorIs(t, ledger.Burn(poolP, zero, amt(1)), ErrInvalidSender)
	require.ErrorIs(t, ledger.Transfer(poolP, zero, bob, amt(1)), ErrInvalidSender)
	require.ErrorIs(t, ledger.Transfer(poolP, alice, zero, amt(1)), ErrInvalidReceiver)
	require.ErrorIs(t, ledger.Approve(poolP, zero, bob, amt(1)), ErrInvalidApprover)
	require.ErrorIs(t, ledger.Approve(poolP, alice, zero, amt(1)), ErrInvalidSpender)
}

func TestTransferFromDecrementsAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(poolP, alice, amt(100)))
	require.NoError(t, ledger.Approve(poolP, alice, bob, amt(30)))

	require.NoError(t, ledger.TransferFrom(poolP, bob, alice, carol, amt(20)))

	allowance, err := ledger.Allowance(poolP, alice, bob)
	require.NoError(t, err)
	require.Equal(t, amt(10), allowance)

	err = ledger.TransferFrom(poolP, bob, alice, carol, amt(11))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestInfiniteAllowanceNeverDecremented(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(poolP, alice, amt(100)))
	require.NoError(t, ledger.Approve(poolP, alice, bob, InfiniteAllowance))

	require.NoError(t, ledger.TransferFrom(poolP, bob, alice, carol, amt(40)))
	require.NoError(t, ledger.TransferFrom(poolP, bob, alice, carol, amt(40)))

	allowance, err := ledger.Allowance(poolP, alice, bob)
	require.NoError(t, err)
	require.Equal(t, InfiniteAllowance, allowance)
}

func TestFacadeFailureDoesNotRollBackAccounting(t *testing.T) {
	ledger, emitter := newTestLedger(t)
	facade := &failingFacade{}
	ledger.Registry().Bind(poolP, facade)

	require.NoError(t, ledger.Mint(poolP, alice, amt(10)))
	require.NoError(t, ledger.Transfer(poolP, alice, bob, amt(4)))
	require.NoError(t, ledger.Approve(poolP, alice, bob, amt(5)))

	require.Equal(t, 2, facade.transfers)
	require.Equal(t, 1, facade.approvals)

	balance, err := ledger.BalanceOf(poolP, bob)
	require.NoError(t, err)
	require.Equal(t, amt(4), balance)
	require.Len(t, emitter.emitted, 3)
}

func TestWithStateIsolatesView(t *testing.T) {
	ledger, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(poolP, alice, amt(10)))

	base := state.NewDatabaseKV(storage.NewMemDB())
	overlayEmitter := &recordingEmitter{}
	view := ledger.WithState(state.NewManager(base), overlayEmitter)

	require.NoError(t, view.Mint(poolP, alice, amt(5)))

	viewBalance, err := view.BalanceOf(poolP, alice)
	require.NoError(t, err)
	require.Equal(t, amt(5), viewBalance)

	baseBalance, err := ledger.BalanceOf(poolP, alice)
	require.NoError(t, err)
	require.Equal(t, amt(10), baseBalance)
	require.Len(t, overlayEmitter.emitted, 1)
}
