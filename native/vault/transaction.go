package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/core/events"
	"poolvault/core/state"
)

var (
	maxSettleDelta = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minSettleDelta = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// Transaction is the unlock bracket: one transaction-scoped mutable context
// shared by the recursive call tree of a single caller-visible operation.
// It carries the overlay-backed state view, the signed per-token delta
// ledger, the outermost-sender slot and the per-call scratch arena. Only
// Engine.Unlock and Engine.Quote create transactions.
type Transaction struct {
	engine  *Engine
	overlay *state.Overlay
	state   *state.Manager

	caller common.Address

	sender    common.Address
	senderSet bool

	deltas        map[common.Address]*big.Int
	nonzeroDeltas int

	touchedReserves map[common.Address]struct{}

	nativeRemaining *uint256.Int

	nextCall uint64
	scratch  map[uint64]*callScratch

	settling bool

	events []events.Typed
}

func newTransaction(e *Engine, caller common.Address, value *uint256.Int) *Transaction {
	overlay := state.NewOverlay(e.base)
	if value == nil {
		value = new(uint256.Int)
	}
	return &Transaction{
		engine:          e,
		overlay:         overlay,
		state:           e.schema.WithStore(overlay),
		caller:          caller,
		deltas:          make(map[common.Address]*big.Int),
		touchedReserves: make(map[common.Address]struct{}),
		nativeRemaining: new(uint256.Int).Set(value),
		scratch:         make(map[uint64]*callScratch),
	}
}

// State exposes the transaction-scoped ledger view. Mutations made through it
// are discarded if the transaction fails.
func (tx *Transaction) State() *state.Manager { return tx.state }

// Emit buffers an event; buffered events reach the engine's emitter only
// after the transaction commits.
func (tx *Transaction) Emit(ev events.Typed) {
	tx.events = append(tx.events, ev)
}

// --- Sender identity tracker ---

// saveSender records candidate as the outermost caller if the slot is empty
// and reports whether this call owns the slot. Nested re-entrant calls leave
// the slot untouched.
func (tx *Transaction) saveSender(candidate common.Address) bool {
	if tx.senderSet {
		return false
	}
	tx.sender = candidate
	tx.senderSet = true
	return true
}

// discardSender clears the slot only for the call that set it.
func (tx *Transaction) discardSender(owns bool) {
	if owns {
		tx.sender = common.Address{}
		tx.senderSet = false
	}
}

// Sender returns the outermost initiating caller for the current call tree,
// or the bracket opener when no operation is in flight.
func (tx *Transaction) Sender() common.Address {
	if tx.senderSet {
		return tx.sender
	}
	return tx.caller
}

// --- Token delta ledger ---

// Delta returns a copy of the signed accumulator for token.
func (tx *Transaction) Delta(token common.Address) *big.Int {
	if d, ok := tx.deltas[token]; ok {
		return new(big.Int).Set(d)
	}
	return big.NewInt(0)
}

// NonzeroDeltaCount reports how many tokens currently carry a nonzero delta.
func (tx *Transaction) NonzeroDeltaCount() int { return tx.nonzeroDeltas }

// applyDelta adjusts the signed accumulator for token, maintaining the
// nonzero counter across zero transitions. A single pool's balances fit 112
// bits but several pools in one batch can stack onto the same token, so the
// accumulator is only bounded by the int256 range.
func (tx *Transaction) applyDelta(token common.Address, diff *big.Int) error {
	if diff.Sign() == 0 {
		return nil
	}
	current, ok := tx.deltas[token]
	if !ok {
		current = big.NewInt(0)
	}
	next := new(big.Int).Add(current, diff)
	if next.Cmp(maxSettleDelta) > 0 || next.Cmp(minSettleDelta) < 0 {
		return ErrBalanceOverflow
	}
	if current.Sign() == 0 && next.Sign() != 0 {
		tx.nonzeroDeltas++
	} else if current.Sign() != 0 && next.Sign() == 0 {
		tx.nonzeroDeltas--
	}
	tx.deltas[token] = next
	return nil
}

// takeDebt records that amount of token left (or is about to leave) the
// vault's custody on the caller's behalf.
func (tx *Transaction) takeDebt(token common.Address, amount *uint256.Int) error {
	return tx.applyDelta(token, amount.ToBig())
}

// supplyCredit records that amount of token was paid in to the vault.
func (tx *Transaction) supplyCredit(token common.Address, amount *big.Int) error {
	return tx.applyDelta(token, new(big.Int).Neg(amount))
}

// --- Native value accounting ---

// consumeNative draws from the native value supplied with the bracket.
func (tx *Transaction) consumeNative(amount *uint256.Int) error {
	if tx.nativeRemaining.Cmp(amount) < 0 {
		return ErrInsufficientEth
	}
	tx.nativeRemaining.Sub(tx.nativeRemaining, amount)
	return nil
}

// --- Bracket close ---

// close enforces the conservation invariants before the bracket may commit:
// every delta accumulator must be zero and every touched reserve must match
// actual custody. Unconsumed native value is refunded to the bracket opener.
func (tx *Transaction) close() error {
	if tx.nonzeroDeltas != 0 {
		return ErrBalanceNotSettled
	}
	for token := range tx.touchedReserves {
		reserves, err := tx.state.Reserves(token)
		if err != nil {
			return err
		}
		custody, err := tx.state.CustodyBalance(token, VaultAccount)
		if err != nil {
			return err
		}
		if reserves.Cmp(custody) != 0 {
			return ErrReservesMismatch
		}
	}
	if !tx.nativeRemaining.IsZero() {
		if err := tx.engine.creditCustody(tx.state, NativeToken, tx.caller, tx.nativeRemaining); err != nil {
			return err
		}
		tx.nativeRemaining.Clear()
	}
	return nil
}

func (tx *Transaction) flushEvents() {
	for _, ev := range tx.events {
		tx.engine.emitter.Emit(ev)
	}
	tx.events = nil
}
