package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/observability/metrics"
)

type managerOpKind string

const (
	managerWithdraw managerOpKind = "withdraw"
	managerDeposit  managerOpKind = "deposit"
	managerUpdate   managerOpKind = "update"
)

// ManagerWithdraw moves amount of a pool's cash into the assigned asset
// manager's external custody: cash shrinks because funds leave the vault,
// managed grows because the manager now holds them.
func (e *Engine) ManagerWithdraw(caller, pool, token common.Address, amount *uint256.Int) error {
	return e.performManagerOp(caller, pool, token, amount, managerWithdraw)
}

// ManagerDeposit is the inverse of ManagerWithdraw: the manager returns
// externally held funds to the vault's custody.
func (e *Engine) ManagerDeposit(caller, pool, token common.Address, amount *uint256.Int) error {
	return e.performManagerOp(caller, pool, token, amount, managerDeposit)
}

// ManagerUpdate sets the managed balance to exactly amount with no cash
// movement, reporting yield or loss on already-delegated funds.
func (e *Engine) ManagerUpdate(caller, pool, token common.Address, amount *uint256.Int) error {
	return e.performManagerOp(caller, pool, token, amount, managerUpdate)
}

func (e *Engine) performManagerOp(caller, pool, token common.Address, amount *uint256.Int, kind managerOpKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	overlay, m, err := e.guardStandalone()
	if err != nil {
		return err
	}
	if err := requireRegisteredToken(m, pool, token); err != nil {
		return err
	}
	manager, assigned, err := m.AssetManager(pool, token)
	if err != nil {
		return err
	}
	if !assigned || manager != caller {
		return ErrSenderNotAssetManager
	}

	balance, err := m.PoolBalance(pool, token)
	if err != nil {
		return err
	}
	cashDelta := big.NewInt(0)
	managedDelta := big.NewInt(0)

	switch kind {
	case managerWithdraw:
		if balance.Cash.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
		balance.Cash = new(uint256.Int).Sub(balance.Cash, amount)
		balance.Managed = new(uint256.Int).Add(balance.Managed, amount)
		cashDelta = new(big.Int).Neg(amount.ToBig())
		managedDelta = amount.ToBig()
		if err := e.transferCustody(m, token, VaultAccount, manager, amount); err != nil {
			return err
		}
		if err := e.shiftReserves(m, token, cashDelta); err != nil {
			return err
		}
	case managerDeposit:
		if balance.Managed.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
		balance.Cash = new(uint256.Int).Add(balance.Cash, amount)
		balance.Managed = new(uint256.Int).Sub(balance.Managed, amount)
		cashDelta = amount.ToBig()
		managedDelta = new(big.Int).Neg(amount.ToBig())
		if err := e.transferCustody(m, token, manager, VaultAccount, amount); err != nil {
			return err
		}
		if err := e.shiftReserves(m, token, cashDelta); err != nil {
			return err
		}
	case managerUpdate:
		managedDelta = new(big.Int).Sub(amount.ToBig(), balance.Managed.ToBig())
		balance.Managed = new(uint256.Int).Set(amount)
	}

	if !balance.InBounds() {
		return ErrBalanceOverflow
	}
	if err := m.PutPoolBalance(pool, token, balance); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolManagerOperation{
		Pool:         pool,
		Manager:      manager,
		Token:        token,
		Kind:         string(kind),
		CashDelta:    cashDelta,
		ManagedDelta: managedDelta,
	})
	metrics.Vault().ManagerOp(string(kind))
	return nil
}

// shiftReserves applies a signed adjustment to the authoritative reserve of
// token outside any bracket.
func (e *Engine) shiftReserves(m *state.Manager, token common.Address, diff *big.Int) error {
	current, err := m.Reserves(token)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current.ToBig(), diff)
	if next.Sign() < 0 {
		return ErrReservesMismatch
	}
	amount, overflow := uint256.FromBig(next)
	if overflow {
		return ErrBalanceOverflow
	}
	return m.PutReserves(token, amount)
}
