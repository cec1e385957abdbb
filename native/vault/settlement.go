package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/observability/metrics"
)

// requireOpen validates that tx is the engine's live bracket.
func (e *Engine) requireOpen(tx *Transaction) error {
	if tx == nil || tx.engine != e {
		return ErrNotUnlocked
	}
	e.mu.Lock()
	open := e.current == tx
	e.mu.Unlock()
	if !open {
		return ErrNotUnlocked
	}
	return nil
}

// Pay moves tokens from payer's custody into the vault without recording a
// credit. The vault's reserve for the token intentionally lags until a later
// Settle reconciles it; leaving the gap open past the bracket fails the
// reserves check at close.
func (e *Engine) Pay(tx *Transaction, token, payer common.Address, amount *uint256.Int) error {
	if err := e.requireOpen(tx); err != nil {
		return err
	}
	if err := e.transferCustody(tx.state, token, payer, VaultAccount, amount); err != nil {
		return err
	}
	tx.touchedReserves[token] = struct{}{}
	return nil
}

// Settle reconciles the vault's reserve of token against actual custody and
// credits the difference to the caller's delta, capped at amountHint. Paying
// in more than the hint leaves the surplus with the vault. The credited
// amount is returned; it is negative if custody shrank unexpectedly.
func (e *Engine) Settle(tx *Transaction, token common.Address, amountHint *uint256.Int) (*big.Int, error) {
	if err := e.requireOpen(tx); err != nil {
		return nil, err
	}
	reservesBefore, err := tx.state.Reserves(token)
	if err != nil {
		return nil, err
	}
	custody, err := tx.state.CustodyBalance(token, VaultAccount)
	if err != nil {
		return nil, err
	}
	received := new(big.Int).Sub(custody.ToBig(), reservesBefore.ToBig())
	if received.Cmp(maxSettleDelta) > 0 {
		return nil, ErrBalanceOverflow
	}
	credit := received
	if amountHint != nil && amountHint.ToBig().Cmp(received) < 0 {
		credit = amountHint.ToBig()
	}
	tx.touchedReserves[token] = struct{}{}
	if err := tx.state.PutReserves(token, custody); err != nil {
		return nil, err
	}
	if err := tx.supplyCredit(token, credit); err != nil {
		return nil, err
	}
	metrics.Vault().Settled()
	return credit, nil
}

// SendTo pushes tokens out of the vault to a recipient and records the
// corresponding debt against the caller.
func (e *Engine) SendTo(tx *Transaction, token, to common.Address, amount *uint256.Int) error {
	if err := e.requireOpen(tx); err != nil {
		return err
	}
	if err := e.transferCustody(tx.state, token, VaultAccount, to, amount); err != nil {
		return err
	}
	if err := e.adjustReserves(tx, token, new(big.Int).Neg(amount.ToBig())); err != nil {
		return err
	}
	return tx.takeDebt(token, amount)
}

// --- Asset transfer boundary (§ receive/send) ---

// receiveAsset pulls an asset into the vault's custody: ordinary tokens from
// payer, or native value supplied with the bracket wrapped into the wrapped
// representation. Reserves track the receipt immediately, so no delta is
// recorded.
func (e *Engine) receiveAsset(tx *Transaction, asset Asset, amount *uint256.Int, payer common.Address) error {
	if amount.IsZero() {
		return nil
	}
	token := asset.Effective(e.wrappedNative)
	if asset.UseNative {
		if err := tx.consumeNative(amount); err != nil {
			return err
		}
		if err := e.creditCustody(tx.state, token, VaultAccount, amount); err != nil {
			return err
		}
	} else {
		if err := e.transferCustody(tx.state, token, payer, VaultAccount, amount); err != nil {
			return err
		}
	}
	return e.adjustReserves(tx, token, amount.ToBig())
}

// sendAsset pushes an asset out of the vault's custody, unwrapping native
// value before it reaches the recipient.
func (e *Engine) sendAsset(tx *Transaction, asset Asset, amount *uint256.Int, recipient common.Address) error {
	if amount.IsZero() {
		return nil
	}
	token := asset.Effective(e.wrappedNative)
	if err := e.debitCustody(tx.state, token, VaultAccount, amount); err != nil {
		return err
	}
	if asset.UseNative {
		if err := e.creditCustody(tx.state, NativeToken, recipient, amount); err != nil {
			return err
		}
	} else {
		if err := e.creditCustody(tx.state, token, recipient, amount); err != nil {
			return err
		}
	}
	return e.adjustReserves(tx, token, new(big.Int).Neg(amount.ToBig()))
}
