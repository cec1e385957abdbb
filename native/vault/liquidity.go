package vault

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/observability/metrics"
)

var errHookResponse = errors.New("vault: pricing hook returned malformed amounts")

// LiquidityPool is the pricing callback a pool provides at hook binding time.
// Implementations compute final per-token amounts and must not perform
// custody side effects of their own; any re-entry into the vault happens
// through the transaction they were invoked under.
type LiquidityPool interface {
	OnAddLiquidity(sender common.Address, balances, maxAmountsIn []*uint256.Int, userData []byte) ([]*uint256.Int, error)
	OnRemoveLiquidity(sender common.Address, balances, minAmountsOut []*uint256.Int, userData []byte) ([]*uint256.Int, error)
}

// BindPool attaches the runtime pricing collaborator for a registered pool.
// Settlement against a pool with no bound hook fails.
func (e *Engine) BindPool(pool common.Address, hook LiquidityPool) {
	e.mu.Lock()
	e.hooks[pool] = hook
	e.mu.Unlock()
}

func (e *Engine) hookFor(pool common.Address) (LiquidityPool, bool) {
	e.mu.Lock()
	hook, ok := e.hooks[pool]
	e.mu.Unlock()
	return hook, ok && hook != nil
}

// LiquidityRequest describes one join or exit: the assets in registration
// order, the caller's per-token limits (maximums in for a join, minimums out
// for an exit) and opaque data forwarded to the pool's pricing hook.
type LiquidityRequest struct {
	Assets   []Asset
	Limits   []*uint256.Int
	UserData []byte
}

// AddLiquidity settles a join: it validates the supplied asset list against
// the registered token set, asks the pool's hook for final amounts, enforces
// the caller's maximums, pulls the assets from caller and writes the new
// balances back as one batch in registration order.
func (e *Engine) AddLiquidity(tx *Transaction, caller, pool common.Address, req LiquidityRequest) ([]*uint256.Int, error) {
	return e.settleLiquidity(tx, caller, pool, req, true)
}

// RemoveLiquidity settles an exit: hook amounts must clear the caller's
// minimums and the assets are pushed back to caller.
func (e *Engine) RemoveLiquidity(tx *Transaction, caller, pool common.Address, req LiquidityRequest) ([]*uint256.Int, error) {
	return e.settleLiquidity(tx, caller, pool, req, false)
}

func (e *Engine) settleLiquidity(tx *Transaction, caller, pool common.Address, req LiquidityRequest, join bool) ([]*uint256.Int, error) {
	if err := e.requireOpen(tx); err != nil {
		return nil, err
	}
	owns := tx.saveSender(caller)
	defer tx.discardSender(owns)

	// One liquidity settlement at a time per bracket; a hook re-entering
	// this class of operation aborts the transaction.
	if tx.settling {
		return nil, ErrReentrancy
	}
	tx.settling = true
	defer func() { tx.settling = false }()

	registered, balances, err := e.matchRegisteredTokens(tx.state, pool, req)
	if err != nil {
		return nil, err
	}

	hook, ok := e.hookFor(pool)
	if !ok {
		return nil, ErrHookNotBound
	}

	totals := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		totals[i] = b.Total()
	}

	var amounts []*uint256.Int
	if join {
		amounts, err = hook.OnAddLiquidity(tx.Sender(), totals, req.Limits, req.UserData)
	} else {
		amounts, err = hook.OnRemoveLiquidity(tx.Sender(), totals, req.Limits, req.UserData)
	}
	if err != nil {
		return nil, err
	}
	if len(amounts) != len(registered) {
		return nil, errHookResponse
	}
	for _, a := range amounts {
		if a == nil {
			return nil, errHookResponse
		}
	}

	deltas := make([]*big.Int, len(registered))
	for i, amount := range amounts {
		limit := req.Limits[i]
		if join {
			if limit != nil && amount.Cmp(limit) > 0 {
				return nil, ErrJoinAboveMax
			}
			if err := e.receiveAsset(tx, req.Assets[i], amount, caller); err != nil {
				return nil, err
			}
			next, overflow := new(uint256.Int).AddOverflow(balances[i].Cash, amount)
			if overflow {
				return nil, ErrBalanceOverflow
			}
			balances[i].Cash = next
			if !balances[i].InBounds() {
				return nil, ErrBalanceOverflow
			}
			deltas[i] = amount.ToBig()
		} else {
			if limit != nil && amount.Cmp(limit) < 0 {
				return nil, ErrExitBelowMin
			}
			if balances[i].Cash.Cmp(amount) < 0 {
				return nil, ErrInsufficientFunds
			}
			if err := e.sendAsset(tx, req.Assets[i], amount, caller); err != nil {
				return nil, err
			}
			balances[i].Cash = new(uint256.Int).Sub(balances[i].Cash, amount)
			deltas[i] = new(big.Int).Neg(amount.ToBig())
		}
	}

	// Batch write keyed by registration order, never partially.
	for i, token := range registered {
		if err := tx.state.PutPoolBalance(pool, token, balances[i]); err != nil {
			return nil, err
		}
	}

	tx.Emit(events.PoolBalancesChanged{
		Pool:   pool,
		Sender: tx.Sender(),
		Tokens: registered,
		Deltas: deltas,
	})
	if join {
		metrics.Vault().LiquidityOp("add")
	} else {
		metrics.Vault().LiquidityOp("remove")
	}
	return amounts, nil
}

// matchRegisteredTokens validates the caller-supplied asset list against the
// pool's registered token set: same length, same order, same membership.
func (e *Engine) matchRegisteredTokens(m *state.Manager, pool common.Address, req LiquidityRequest) ([]common.Address, []*state.Balance, error) {
	registered, ok, err := m.PoolTokens(pool)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrPoolHasNoTokens
	}
	if len(req.Assets) != len(registered) || len(req.Limits) != len(registered) {
		return nil, nil, ErrTokensMismatch
	}
	balances := make([]*state.Balance, len(registered))
	for i, token := range registered {
		if req.Assets[i].Effective(e.wrappedNative) != token {
			return nil, nil, ErrTokensMismatch
		}
		balance, err := m.PoolBalance(pool, token)
		if err != nil {
			return nil, nil, err
		}
		balances[i] = balance
	}
	return registered, balances, nil
}
