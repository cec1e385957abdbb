package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatSigned(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
