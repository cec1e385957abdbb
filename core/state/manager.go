package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Manager reads and writes the vault's persistent ledger records: pool
// registrations, packed cash/managed balances, asset-manager assignments,
// share balances and allowances, custody accounts and token reserves. Keys
// are the Keccak256 hash of a prefixed byte string; values are RLP encoded.
type Manager struct {
	kv KVStore
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KVStore) *Manager {
	return &Manager{kv: kv}
}

// WithStore returns a manager bound to a different store, sharing no state
// with the receiver. The vault uses this to point the same schema at a
// transaction overlay.
func (m *Manager) WithStore(kv KVStore) *Manager {
	return &Manager{kv: kv}
}

var (
	poolTokensPrefix     = []byte("vault/pool/tokens/")
	poolBalancePrefix    = []byte("vault/pool/balance/")
	poolManagerPrefix    = []byte("vault/pool/manager/")
	reservesPrefix       = []byte("vault/reserves/")
	custodyPrefix        = []byte("vault/custody/")
	shareBalancePrefix   = []byte("shares/balance/")
	shareSupplyPrefix    = []byte("shares/supply/")
	shareAllowancePrefix = []byte("shares/allowance/")
)

func hashKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key, err)
	}
	return m.kv.Put(key, encoded)
}

// --- Pool registration ---

// PoolTokens returns the registered, ordered token set of a pool. The second
// return reports whether the pool is registered at all.
func (m *Manager) PoolTokens(pool common.Address) ([]common.Address, bool, error) {
	var tokens []common.Address
	ok, err := m.getRLP(hashKey(poolTokensPrefix, pool.Bytes()), &tokens)
	if err != nil || !ok {
		return nil, false, err
	}
	return tokens, len(tokens) > 0, nil
}

// PutPoolTokens stores the ordered token set for a pool. The set is immutable
// after registration; callers enforce that.
func (m *Manager) PutPoolTokens(pool common.Address, tokens []common.Address) error {
	return m.putRLP(hashKey(poolTokensPrefix, pool.Bytes()), tokens)
}

// --- Packed cash/managed balances ---

// PoolBalance loads the cash/managed pair for (pool, token). Missing records
// read as zero balances.
func (m *Manager) PoolBalance(pool, token common.Address) (*Balance, error) {
	stored := new(Balance)
	ok, err := m.getRLP(hashKey(poolBalancePrefix, pool.Bytes(), token.Bytes()), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewBalance(), nil
	}
	return stored.normalize(), nil
}

// PutPoolBalance stores the cash/managed pair for (pool, token).
func (m *Manager) PutPoolBalance(pool, token common.Address, balance *Balance) error {
	return m.putRLP(hashKey(poolBalancePrefix, pool.Bytes(), token.Bytes()), balance.normalize())
}

// --- Asset manager assignments ---

// AssetManager returns the delegated manager for (pool, token), if any.
func (m *Manager) AssetManager(pool, token common.Address) (common.Address, bool, error) {
	var manager common.Address
	ok, err := m.getRLP(hashKey(poolManagerPrefix, pool.Bytes(), token.Bytes()), &manager)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	if manager == (common.Address{}) {
		return common.Address{}, false, nil
	}
	return manager, true, nil
}

// PutAssetManager assigns the delegated manager for (pool, token).
func (m *Manager) PutAssetManager(pool, token, manager common.Address) error {
	return m.putRLP(hashKey(poolManagerPrefix, pool.Bytes(), token.Bytes()), manager)
}

// --- Token reserves ---

// Reserves returns the vault's believed total custody of a token.
func (m *Manager) Reserves(token common.Address) (*uint256.Int, error) {
	return m.getAmount(hashKey(reservesPrefix, token.Bytes()))
}

// PutReserves stores the vault's believed total custody of a token.
func (m *Manager) PutReserves(token common.Address, amount *uint256.Int) error {
	return m.putAmount(hashKey(reservesPrefix, token.Bytes()), amount)
}

// --- Custody accounts ---

// CustodyBalance returns the token balance held for an external account (or
// for the vault's own custody account) at the asset transfer boundary.
func (m *Manager) CustodyBalance(token, holder common.Address) (*uint256.Int, error) {
	return m.getAmount(hashKey(custodyPrefix, token.Bytes(), holder.Bytes()))
}

// PutCustodyBalance stores a custody account balance.
func (m *Manager) PutCustodyBalance(token, holder common.Address, amount *uint256.Int) error {
	return m.putAmount(hashKey(custodyPrefix, token.Bytes(), holder.Bytes()), amount)
}

// --- Pool shares ---

// ShareBalance returns the share balance of holder in pool.
func (m *Manager) ShareBalance(pool, holder common.Address) (*uint256.Int, error) {
	return m.getAmount(hashKey(shareBalancePrefix, pool.Bytes(), holder.Bytes()))
}

// PutShareBalance stores the share balance of holder in pool.
func (m *Manager) PutShareBalance(pool, holder common.Address, amount *uint256.Int) error {
	return m.putAmount(hashKey(shareBalancePrefix, pool.Bytes(), holder.Bytes()), amount)
}

// ShareSupply returns the total share supply of a pool.
func (m *Manager) ShareSupply(pool common.Address) (*uint256.Int, error) {
	return m.getAmount(hashKey(shareSupplyPrefix, pool.Bytes()))
}

// PutShareSupply stores the total share supply of a pool.
func (m *Manager) PutShareSupply(pool common.Address, amount *uint256.Int) error {
	return m.putAmount(hashKey(shareSupplyPrefix, pool.Bytes()), amount)
}

// ShareAllowance returns the owner→spender share allowance within a pool.
func (m *Manager) ShareAllowance(pool, owner, spender common.Address) (*uint256.Int, error) {
	return m.getAmount(hashKey(shareAllowancePrefix, pool.Bytes(), owner.Bytes(), spender.Bytes()))
}

// PutShareAllowance stores the owner→spender share allowance within a pool.
func (m *Manager) PutShareAllowance(pool, owner, spender common.Address, amount *uint256.Int) error {
	return m.putAmount(hashKey(shareAllowancePrefix, pool.Bytes(), owner.Bytes(), spender.Bytes()), amount)
}

func (m *Manager) getAmount(key []byte) (*uint256.Int, error) {
	amount := new(uint256.Int)
	ok, err := m.getRLP(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return amount, nil
}

func (m *Manager) putAmount(key []byte, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return m.putRLP(key, amount)
}
