package vault

import "errors"

// Every failure below aborts the enclosing transaction; the engine never
// commits partial effects.
var (
	// Lock/unlock bracket.
	ErrAlreadyUnlocked   = errors.New("vault: transaction already unlocked")
	ErrNotUnlocked       = errors.New("vault: no open transaction")
	ErrBalanceNotSettled = errors.New("vault: token deltas not settled")
	ErrReservesMismatch  = errors.New("vault: reserves diverge from custody")
	ErrBalanceOverflow   = errors.New("vault: balance outside representable range")

	// Registration.
	ErrInvalidToken           = errors.New("vault: invalid token")
	ErrTokenAlreadyRegistered = errors.New("vault: token already registered")
	ErrPoolAlreadyRegistered  = errors.New("vault: pool already registered")
	ErrPoolNotRegistered      = errors.New("vault: pool not registered")
	ErrInvalidTokenCount      = errors.New("vault: pools hold between 2 and 4 tokens")

	// Settlement.
	ErrTokensMismatch  = errors.New("vault: token list does not match registration")
	ErrPoolHasNoTokens = errors.New("vault: pool has no registered tokens")
	ErrJoinAboveMax    = errors.New("vault: join amount above caller maximum")
	ErrExitBelowMin    = errors.New("vault: exit amount below caller minimum")
	ErrInsufficientEth = errors.New("vault: insufficient native value supplied")

	// Delegation.
	ErrSenderNotAssetManager = errors.New("vault: sender is not the assigned asset manager")
	ErrTokenNotRegistered    = errors.New("vault: token not registered for pool")

	// Collaborators and custody.
	ErrHookNotBound      = errors.New("vault: no pricing hook bound for pool")
	ErrReentrancy        = errors.New("vault: reentrant call into guarded operation")
	ErrInsufficientFunds = errors.New("vault: insufficient custody balance")
)
