package vault

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/observability/metrics"
)

// Engine is the transactional settlement core of the vault. It custodies the
// tokens of every registered pool, brackets caller-visible operations in a
// single reentrant transaction, and enforces the conservation invariant that
// no value appears or vanishes across a bracket.
type Engine struct {
	mu      sync.Mutex
	base    state.KVStore
	schema  *state.Manager
	emitter events.Emitter

	hooks         map[common.Address]LiquidityPool
	wrappedNative common.Address

	current *Transaction
}

// NewEngine creates an engine over the given store with a no-op emitter.
func NewEngine(kv state.KVStore) *Engine {
	return &Engine{
		base:    kv,
		schema:  state.NewManager(kv),
		emitter: events.NoopEmitter{},
		hooks:   make(map[common.Address]LiquidityPool),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetWrappedNative configures the token the boundary wraps native value into.
func (e *Engine) SetWrappedNative(token common.Address) {
	e.wrappedNative = token
}

// --- Lock/unlock guard ---

// Unlock opens the transaction bracket, runs fn against it, and commits only
// if fn succeeds and every conservation check passes. A bracket that is
// already open cannot be reopened; nested work re-enters through the
// Transaction instead. value is the native currency supplied with the call.
func (e *Engine) Unlock(caller common.Address, value *uint256.Int, fn func(*Transaction) error) error {
	tx, err := e.open(caller, value)
	if err != nil {
		return err
	}
	defer e.release(tx)

	if err := e.run(tx, fn); err != nil {
		metrics.Vault().UnlockReverted()
		return err
	}
	if err := tx.overlay.Commit(); err != nil {
		metrics.Vault().UnlockReverted()
		return err
	}
	tx.flushEvents()
	metrics.Vault().UnlockCommitted()
	return nil
}

// Quote runs the identical bracket but always discards the overlay, so
// callers can preview an operation's results without persisted side effects.
func (e *Engine) Quote(caller common.Address, value *uint256.Int, fn func(*Transaction) error) error {
	tx, err := e.open(caller, value)
	if err != nil {
		return err
	}
	defer e.release(tx)
	return e.run(tx, fn)
}

func (e *Engine) open(caller common.Address, value *uint256.Int) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		return nil, ErrAlreadyUnlocked
	}
	tx := newTransaction(e, caller, value)
	e.current = tx
	return tx, nil
}

func (e *Engine) release(tx *Transaction) {
	e.mu.Lock()
	if e.current == tx {
		e.current = nil
	}
	e.mu.Unlock()
}

func (e *Engine) run(tx *Transaction, fn func(*Transaction) error) error {
	owns := tx.saveSender(tx.caller)
	defer tx.discardSender(owns)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.close()
}

// Sender returns the outermost caller of the open bracket, or the zero
// address when no bracket is open.
func (e *Engine) Sender() common.Address {
	e.mu.Lock()
	tx := e.current
	e.mu.Unlock()
	if tx == nil {
		return common.Address{}
	}
	return tx.Sender()
}

// guardStandalone rejects persistent-state entry points while a bracket is
// open, so a malicious token or hook cannot re-trigger them mid-mutation.
func (e *Engine) guardStandalone() (*state.Overlay, *state.Manager, error) {
	if e.current != nil {
		return nil, nil, ErrReentrancy
	}
	overlay := state.NewOverlay(e.base)
	return overlay, e.schema.WithStore(overlay), nil
}

// --- Pool registration ---

// RegisterPool records a pool and its ordered, immutable token set (2–4
// tokens) with zero balances. managers optionally assigns one asset manager
// per token (zero address for none) and must align with tokens when supplied.
func (e *Engine) RegisterPool(pool common.Address, tokens []common.Address, managers []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	overlay, m, err := e.guardStandalone()
	if err != nil {
		return err
	}
	if len(tokens) < 2 || len(tokens) > 4 {
		return ErrInvalidTokenCount
	}
	if managers != nil && len(managers) != len(tokens) {
		return ErrTokensMismatch
	}
	if _, registered, err := m.PoolTokens(pool); err != nil {
		return err
	} else if registered {
		return ErrPoolAlreadyRegistered
	}
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, token := range tokens {
		if token == (common.Address{}) {
			return ErrInvalidToken
		}
		if _, dup := seen[token]; dup {
			return ErrTokenAlreadyRegistered
		}
		seen[token] = struct{}{}
	}
	if err := m.PutPoolTokens(pool, tokens); err != nil {
		return err
	}
	for i, token := range tokens {
		if managers != nil && managers[i] != (common.Address{}) {
			if err := m.PutAssetManager(pool, token, managers[i]); err != nil {
				return err
			}
		}
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolRegistered{Pool: pool, Tokens: tokens})
	metrics.Vault().PoolRegistered()
	return nil
}

// IsRegisteredPool reports whether the pool has a registered token set.
func (e *Engine) IsRegisteredPool(pool common.Address) (bool, error) {
	_, registered, err := e.schema.PoolTokens(pool)
	return registered, err
}

// GetPoolTokens returns the pool's tokens and raw total balances in
// registration order.
func (e *Engine) GetPoolTokens(pool common.Address) ([]common.Address, []*uint256.Int, error) {
	return poolTokensAndBalances(e.schema, pool)
}

// PoolBalance returns the cash/managed pair for a registered (pool, token).
func (e *Engine) PoolBalance(pool, token common.Address) (*state.Balance, error) {
	if err := requireRegisteredToken(e.schema, pool, token); err != nil {
		return nil, err
	}
	return e.schema.PoolBalance(pool, token)
}

// Reserves returns the vault's believed total custody of a token.
func (e *Engine) Reserves(token common.Address) (*uint256.Int, error) {
	return e.schema.Reserves(token)
}

// CustodyBalance returns a holder's balance at the asset transfer boundary.
func (e *Engine) CustodyBalance(token, holder common.Address) (*uint256.Int, error) {
	return e.schema.CustodyBalance(token, holder)
}

func poolTokensAndBalances(m *state.Manager, pool common.Address) ([]common.Address, []*uint256.Int, error) {
	tokens, registered, err := m.PoolTokens(pool)
	if err != nil {
		return nil, nil, err
	}
	if !registered {
		return nil, nil, ErrPoolNotRegistered
	}
	balances := make([]*uint256.Int, len(tokens))
	for i, token := range tokens {
		balance, err := m.PoolBalance(pool, token)
		if err != nil {
			return nil, nil, err
		}
		balances[i] = balance.Total()
	}
	return tokens, balances, nil
}

func requireRegisteredToken(m *state.Manager, pool, token common.Address) error {
	tokens, registered, err := m.PoolTokens(pool)
	if err != nil {
		return err
	}
	if !registered {
		return ErrPoolNotRegistered
	}
	for _, t := range tokens {
		if t == token {
			return nil
		}
	}
	return ErrTokenNotRegistered
}

// --- Custody primitives ---

func (e *Engine) creditCustody(m *state.Manager, token, holder common.Address, amount *uint256.Int) error {
	current, err := m.CustodyBalance(token, holder)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	return m.PutCustodyBalance(token, holder, next)
}

func (e *Engine) debitCustody(m *state.Manager, token, holder common.Address, amount *uint256.Int) error {
	current, err := m.CustodyBalance(token, holder)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	return m.PutCustodyBalance(token, holder, new(uint256.Int).Sub(current, amount))
}

func (e *Engine) transferCustody(m *state.Manager, token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := e.debitCustody(m, token, from, amount); err != nil {
		return err
	}
	return e.creditCustody(m, token, to, amount)
}

func (e *Engine) adjustReserves(tx *Transaction, token common.Address, diff *big.Int) error {
	current, err := tx.state.Reserves(token)
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
	tx.touchedReserves[token] = struct{}{}
	return tx.state.PutReserves(token, amount)
}

// DepositCustody credits tokens arriving from outside into holder's custody
// account at the boundary. It is the funding edge of the system and does not
// touch the vault's own reserves.
func (e *Engine) DepositCustody(holder, token common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	overlay, m, err := e.guardStandalone()
	if err != nil {
		return err
	}
	if err := e.creditCustody(m, token, holder, amount); err != nil {
		return err
	}
	return overlay.Commit()
}
