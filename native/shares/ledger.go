package shares

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolvault/core/events"
	"poolvault/core/state"
	"poolvault/observability/metrics"
)

var (
	ErrInvalidReceiver       = errors.New("shares: receiver is the zero address")
	ErrInvalidSender         = errors.New("shares: sender is the zero address")
	ErrInsufficientBalance   = errors.New("shares: insufficient share balance")
	ErrInsufficientAllowance = errors.New("shares: insufficient allowance")
	ErrInvalidApprover       = errors.New("shares: approver is the zero address")
	ErrInvalidSpender        = errors.New("shares: spender is the zero address")

	errSupplyOverflow = errors.New("shares: total supply overflow")
)

// InfiniteAllowance is treated as unlimited and is never decremented by
// TransferFrom.
var InfiniteAllowance = new(uint256.Int).SetAllOne()

// Facade receives best-effort notifications for every share mutation so
// standard token-holder tooling observes transfer/approval activity. The
// facade never owns the accounting: a failing facade cannot roll it back.
type Facade interface {
	OnShareTransfer(pool, from, to common.Address, amount *uint256.Int) error
	OnShareApproval(pool, owner, spender common.Address, amount *uint256.Int) error
}

// FacadeRegistry maps pools to their facade collaborators. It is shared
// between the base ledger and its transaction-scoped views.
type FacadeRegistry struct {
	mu      sync.RWMutex
	facades map[common.Address]Facade
}

func NewFacadeRegistry() *FacadeRegistry {
	return &FacadeRegistry{facades: make(map[common.Address]Facade)}
}

// Bind attaches the facade for a pool, replacing any previous binding.
func (r *FacadeRegistry) Bind(pool common.Address, facade Facade) {
	r.mu.Lock()
	r.facades[pool] = facade
	r.mu.Unlock()
}

func (r *FacadeRegistry) facadeFor(pool common.Address) (Facade, bool) {
	r.mu.RLock()
	f, ok := r.facades[pool]
	r.mu.RUnlock()
	return f, ok && f != nil
}

// Ledger holds the per-pool fungible share accounting: balances, total
// supply and the owner→spender allowance table.
type Ledger struct {
	state    *state.Manager
	registry *FacadeRegistry
	emitter  events.Emitter
}

// NewLedger constructs a share ledger bound to the provided state manager.
func NewLedger(m *state.Manager, registry *FacadeRegistry, emitter events.Emitter) *Ledger {
	if registry == nil {
		registry = NewFacadeRegistry()
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{state: m, registry: registry, emitter: emitter}
}

// WithState returns a view of the same ledger bound to a different state
// manager and emitter. The vault uses this to run share mutations through an
// open transaction's overlay and event buffer.
func (l *Ledger) WithState(m *state.Manager, emitter events.Emitter) *Ledger {
	view := *l
	view.state = m
	if emitter != nil {
		view.emitter = emitter
	}
	return &view
}

// Registry exposes the facade registry for binding collaborators.
func (l *Ledger) Registry() *FacadeRegistry { return l.registry }

// --- Reads ---

func (l *Ledger) BalanceOf(pool, holder common.Address) (*uint256.Int, error) {
	return l.state.ShareBalance(pool, holder)
}

func (l *Ledger) TotalSupply(pool common.Address) (*uint256.Int, error) {
	return l.state.ShareSupply(pool)
}

func (l *Ledger) Allowance(pool, owner, spender common.Address) (*uint256.Int, error) {
	return l.state.ShareAllowance(pool, owner, spender)
}

// --- Mutations ---

// Mint creates amount shares of pool for to.
func (l *Ledger) Mint(pool, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	supply, err := l.state.ShareSupply(pool)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return errSupplyOverflow
	}
	if err := l.state.PutShareSupply(pool, next); err != nil {
		return err
	}
	if err := l.credit(pool, to, amount); err != nil {
		return err
	}
	l.notifyTransfer(pool, common.Address{}, to, amount)
	return nil
}

// Burn destroys amount shares of pool held by from.
func (l *Ledger) Burn(pool, from common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if err := l.debit(pool, from, amount); err != nil {
		return err
	}
	supply, err := l.state.ShareSupply(pool)
	if err != nil {
		return err
	}
	if err := l.state.PutShareSupply(pool, new(uint256.Int).Sub(supply, amount)); err != nil {
		return err
	}
	l.notifyTransfer(pool, from, common.Address{}, amount)
	return nil
}

// Transfer moves amount shares of pool from one holder to another.
func (l *Ledger) Transfer(pool, from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	if err := l.debit(pool, from, amount); err != nil {
		return err
	}
	if err := l.credit(pool, to, amount); err != nil {
		return err
	}
	l.notifyTransfer(pool, from, to, amount)
	return nil
}

// Approve sets the owner→spender allowance for pool shares.
func (l *Ledger) Approve(pool, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) {
		return ErrInvalidApprover
	}
	if spender == (common.Address{}) {
		return ErrInvalidSpender
	}
	if err := l.state.PutShareAllowance(pool, owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.ShareApproval{Pool: pool, Owner: owner, Spender: spender, Amount: amount})
	if facade, ok := l.registry.facadeFor(pool); ok {
		if err := facade.OnShareApproval(pool, owner, spender, amount); err != nil {
			metrics.Vault().FacadeFailure()
		}
	}
	return nil
}

// TransferFrom spends spender's allowance to move shares between holders. An
// infinite allowance is never decremented.
func (l *Ledger) TransferFrom(pool, spender, from, to common.Address, amount *uint256.Int) error {
	allowance, err := l.state.ShareAllowance(pool, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(InfiniteAllowance) != 0 {
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		remaining := new(uint256.Int).Sub(allowance, amount)
		if err := l.state.PutShareAllowance(pool, from, spender, remaining); err != nil {
			return err
		}
	}
	return l.Transfer(pool, from, to, amount)
}

func (l *Ledger) credit(pool, holder common.Address, amount *uint256.Int) error {
	balance, err := l.state.ShareBalance(pool, holder)
	if err != nil {
		return err
	}
	// Balance cannot overflow: supply is checked and balance <= supply.
	return l.state.PutShareBalance(pool, holder, new(uint256.Int).Add(balance, amount))
}

func (l *Ledger) debit(pool, holder common.Address, amount *uint256.Int) error {
	balance, err := l.state.ShareBalance(pool, holder)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.state.PutShareBalance(pool, holder, new(uint256.Int).Sub(balance, amount))
}

// notifyTransfer emits the ledger event and forwards a best-effort
// notification to the pool's facade. Facade failure is swallowed on purpose:
// the accounting stays authoritative even if the observer-facing facade
// misbehaves.
func (l *Ledger) notifyTransfer(pool, from, to common.Address, amount *uint256.Int) {
	l.emitter.Emit(events.ShareTransfer{Pool: pool, From: from, To: to, Amount: amount})
	if facade, ok := l.registry.facadeFor(pool); ok {
		if err := facade.OnShareTransfer(pool, from, to, amount); err != nil {
			metrics.Vault().FacadeFailure()
		}
	}
}
