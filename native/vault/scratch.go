package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// callScratch is the per-invocation arena used by batched multi-path
// settlement. Entries are keyed by a call index handed out once per top-level
// batched operation; indices are never reused within a transaction and the
// whole arena is dropped with the transaction, so nothing is ever cleared
// entry by entry.
type callScratch struct {
	tokensIn    []common.Address
	tokensInSet map[common.Address]struct{}

	tokensOut    []common.Address
	tokensOutSet map[common.Address]struct{}

	amountsIn  map[common.Address]*uint256.Int
	amountsOut map[common.Address]*uint256.Int

	settledOutOfBand map[common.Address]*big.Int
}

func newCallScratch() *callScratch {
	return &callScratch{
		tokensInSet:      make(map[common.Address]struct{}),
		tokensOutSet:     make(map[common.Address]struct{}),
		amountsIn:        make(map[common.Address]*uint256.Int),
		amountsOut:       make(map[common.Address]*uint256.Int),
		settledOutOfBand: make(map[common.Address]*big.Int),
	}
}

// NextCallIndex hands out a fresh scratch index for a top-level batched
// operation, isolating its token accounting from every other batch in the
// same transaction.
func (tx *Transaction) NextCallIndex() uint64 {
	tx.nextCall++
	index := tx.nextCall
	tx.scratch[index] = newCallScratch()
	return index
}

func (tx *Transaction) scratchAt(index uint64) *callScratch {
	s, ok := tx.scratch[index]
	if !ok {
		s = newCallScratch()
		tx.scratch[index] = s
	}
	return s
}

// AddTokenIn records token in the input set of the batch, preserving first
// insertion order.
func (tx *Transaction) AddTokenIn(index uint64, token common.Address) {
	s := tx.scratchAt(index)
	if _, ok := s.tokensInSet[token]; ok {
		return
	}
	s.tokensInSet[token] = struct{}{}
	s.tokensIn = append(s.tokensIn, token)
}

// AddTokenOut records token in the output set of the batch.
func (tx *Transaction) AddTokenOut(index uint64, token common.Address) {
	s := tx.scratchAt(index)
	if _, ok := s.tokensOutSet[token]; ok {
		return
	}
	s.tokensOutSet[token] = struct{}{}
	s.tokensOut = append(s.tokensOut, token)
}

// TokensIn enumerates the input token set in insertion order.
func (tx *Transaction) TokensIn(index uint64) []common.Address {
	return append([]common.Address(nil), tx.scratchAt(index).tokensIn...)
}

// TokensOut enumerates the output token set in insertion order.
func (tx *Transaction) TokensOut(index uint64) []common.Address {
	return append([]common.Address(nil), tx.scratchAt(index).tokensOut...)
}

// AccumulateAmountIn adds amount to the batch's input accumulator for token.
// Multiple paths touching the same token aggregate into one entry.
func (tx *Transaction) AccumulateAmountIn(index uint64, token common.Address, amount *uint256.Int) {
	s := tx.scratchAt(index)
	current, ok := s.amountsIn[token]
	if !ok {
		current = new(uint256.Int)
		s.amountsIn[token] = current
	}
	current.Add(current, amount)
}

// AccumulateAmountOut adds amount to the batch's output accumulator for token.
func (tx *Transaction) AccumulateAmountOut(index uint64, token common.Address, amount *uint256.Int) {
	s := tx.scratchAt(index)
	current, ok := s.amountsOut[token]
	if !ok {
		current = new(uint256.Int)
		s.amountsOut[token] = current
	}
	current.Add(current, amount)
}

// AmountIn returns the accumulated input amount for token.
func (tx *Transaction) AmountIn(index uint64, token common.Address) *uint256.Int {
	if v, ok := tx.scratchAt(index).amountsIn[token]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// AmountOut returns the accumulated output amount for token.
func (tx *Transaction) AmountOut(index uint64, token common.Address) *uint256.Int {
	if v, ok := tx.scratchAt(index).amountsOut[token]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// SettleOutOfBand accumulates an amount settled instantly mid-operation
// (e.g. shares minted or burned) rather than flowing through ordinary
// transfers. Amounts are signed: mints positive, burns negative.
func (tx *Transaction) SettleOutOfBand(index uint64, token common.Address, amount *big.Int) {
	s := tx.scratchAt(index)
	current, ok := s.settledOutOfBand[token]
	if !ok {
		current = big.NewInt(0)
		s.settledOutOfBand[token] = current
	}
	current.Add(current, amount)
}

// SettledOutOfBand returns the accumulated out-of-band amount for token.
func (tx *Transaction) SettledOutOfBand(index uint64, token common.Address) *big.Int {
	if v, ok := tx.scratchAt(index).settledOutOfBand[token]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}
