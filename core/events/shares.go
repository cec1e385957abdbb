package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// TypeShareTransfer is emitted for pool share mints, burns and transfers.
	// Mints carry a zero from address, burns a zero to address.
	TypeShareTransfer = "vault.shares.transfer"
	// TypeShareApproval is emitted when a share allowance is set.
	TypeShareApproval = "vault.shares.approval"
)

type ShareTransfer struct {
	Pool   common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (ShareTransfer) EventType() string { return TypeShareTransfer }

func (e ShareTransfer) Event() *Event {
	return &Event{Type: TypeShareTransfer, Attributes: map[string]string{
		"pool":   formatAddress(e.Pool),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type ShareApproval struct {
	Pool    common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (ShareApproval) EventType() string { return TypeShareApproval }

func (e ShareApproval) Event() *Event {
	return &Event{Type: TypeShareApproval, Attributes: map[string]string{
		"pool":    formatAddress(e.Pool),
		"owner":   formatAddress(e.Owner),
		"spender": formatAddress(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}
