package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypePoolRegistered is emitted once when a pool and its token set are
	// recorded in the ledger.
	TypePoolRegistered = "vault.pool.registered"
	// TypePoolBalancesChanged is emitted after a liquidity settlement writes a
	// pool's balances back.
	TypePoolBalancesChanged = "vault.pool.balances_changed"
	// TypePoolManagerOperation is emitted for every asset-manager withdraw,
	// deposit or update.
	TypePoolManagerOperation = "vault.pool.manager_operation"
)

// PoolRegistered records the creation of a pool with its ordered token set.
type PoolRegistered struct {
	Pool   common.Address
	Tokens []common.Address
}

func (PoolRegistered) EventType() string { return TypePoolRegistered }

func (e PoolRegistered) Event() *Event {
	attrs := map[string]string{
		"pool":   formatAddress(e.Pool),
		"tokens": joinAddresses(e.Tokens),
	}
	return &Event{Type: TypePoolRegistered, Attributes: attrs}
}

// PoolBalancesChanged carries the signed per-token deltas applied by a
// liquidity settlement, in registration order.
type PoolBalancesChanged struct {
	Pool   common.Address
	Sender common.Address
	Tokens []common.Address
	Deltas []*big.Int
}

func (PoolBalancesChanged) EventType() string { return TypePoolBalancesChanged }

func (e PoolBalancesChanged) Event() *Event {
	attrs := map[string]string{
		"pool":   formatAddress(e.Pool),
		"sender": formatAddress(e.Sender),
		"tokens": joinAddresses(e.Tokens),
	}
	deltas := make([]string, len(e.Deltas))
	for i, d := range e.Deltas {
		deltas[i] = formatSigned(d)
	}
	attrs["deltas"] = strings.Join(deltas, ",")
	return &Event{Type: TypePoolBalancesChanged, Attributes: attrs}
}

// PoolManagerOperation records a cash/managed move performed by the assigned
// asset manager of a (pool, token) pair.
type PoolManagerOperation struct {
	Pool         common.Address
	Manager      common.Address
	Token        common.Address
	Kind         string
	CashDelta    *big.Int
	ManagedDelta *big.Int
}

func (PoolManagerOperation) EventType() string { return TypePoolManagerOperation }

func (e PoolManagerOperation) Event() *Event {
	attrs := map[string]string{
		"pool":         formatAddress(e.Pool),
		"manager":      formatAddress(e.Manager),
		"token":        formatAddress(e.Token),
		"kind":         e.Kind,
		"cashDelta":    formatSigned(e.CashDelta),
		"managedDelta": formatSigned(e.ManagedDelta),
	}
	return &Event{Type: TypePoolManagerOperation, Attributes: attrs}
}

func joinAddresses(addrs []common.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = formatAddress(a)
	}
	return strings.Join(parts, ",")
}
