package state

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxBalance bounds each side of the packed cash/managed pair to 112 bits so
// the pair always fits the wider signed arithmetic used by the transaction
// delta ledger.
var MaxBalance = func() *uint256.Int {
	max := new(uint256.Int).Lsh(uint256.NewInt(1), 112)
	return max.SubUint64(max, 1)
}()

// Balance is the cash/managed pair stored per (pool, token). Cash is the
// amount immediately available inside the vault; Managed is the amount
// delegated to the token's asset manager.
type Balance struct {
	Cash    *uint256.Int
	Managed *uint256.Int
}

// NewBalance returns a zeroed balance record.
func NewBalance() *Balance {
	return &Balance{Cash: new(uint256.Int), Managed: new(uint256.Int)}
}

func (b *Balance) normalize() *Balance {
	if b.Cash == nil {
		b.Cash = new(uint256.Int)
	}
	if b.Managed == nil {
		b.Managed = new(uint256.Int)
	}
	return b
}

// Total is the pool's economic holding of the token: cash + managed.
func (b *Balance) Total() *uint256.Int {
	b.normalize()
	return new(uint256.Int).Add(b.Cash, b.Managed)
}

// TotalBig returns the total as a signed big integer for delta arithmetic.
func (b *Balance) TotalBig() *big.Int {
	return b.Total().ToBig()
}

// InBounds reports whether both sides of the pair fit the 112-bit field.
func (b *Balance) InBounds() bool {
	b.normalize()
	return b.Cash.Cmp(MaxBalance) <= 0 && b.Managed.Cmp(MaxBalance) <= 0
}

// Clone returns a deep copy so callers cannot mutate shared records.
func (b *Balance) Clone() *Balance {
	b.normalize()
	return &Balance{
		Cash:    new(uint256.Int).Set(b.Cash),
		Managed: new(uint256.Int).Set(b.Managed),
	}
}
