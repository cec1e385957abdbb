package vault

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NativeToken is the sentinel custody key for unwrapped native currency.
// Pools never hold it directly; the boundary wraps it on receipt and unwraps
// it on send.
var NativeToken = common.Address{}

// VaultAccount is the custody identity under which the vault itself holds
// tokens at the asset transfer boundary.
var VaultAccount = common.BytesToAddress(ethcrypto.Keccak256([]byte("poolvault/custody-account")))

// Asset names a transferable asset at the boundary: either an ordinary token
// or the native currency, which settles against the configured wrapped
// representation inside the vault.
type Asset struct {
	Token     common.Address
	UseNative bool
}

// Effective resolves the ledger token the asset settles against.
func (a Asset) Effective(wrappedNative common.Address) common.Address {
	if a.UseNative {
		return wrappedNative
	}
	return a.Token
}
