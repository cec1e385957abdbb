package vault

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolvault/core/events"
)

// stubPool is a pricing hook returning canned amounts.
type stubPool struct {
	addAmounts    []*uint256.Int
	removeAmounts []*uint256.Int
	onAdd         func(sender common.Address) error
	seenSender    common.Address
}

func (s *stubPool) OnAddLiquidity(sender common.Address, balances, maxAmountsIn []*uint256.Int, userData []byte) ([]*uint256.Int, error) {
	s.seenSender = sender
	if s.onAdd != nil {
		if err := s.onAdd(sender); err != nil {
			return nil, err
		}
	}
	return s.addAmounts, nil
}

func (s *stubPool) OnRemoveLiquidity(sender common.Address, balances, minAmountsOut []*uint256.Int, userData []byte) ([]*uint256.Int, error) {
	s.seenSender = sender
	return s.removeAmounts, nil
}

func registerTestPool(t *testing.T, engine *Engine, hook LiquidityPool) {
	t.Helper()
	require.NoError(t, engine.RegisterPool(poolP, []common.Address{tokenA, tokenB}, nil))
	if hook != nil {
		engine.BindPool(poolP, hook)
	}
}

func plainAssets() []Asset {
	return []Asset{{Token: tokenA}, {Token: tokenB}}
}

func TestAddLiquidityScenario(t *testing.T) {
	engine, emitter := newTestEngine(t)
	hook := &stubPool{addAmounts: []*uint256.Int{amt(40), amt(60)}}
	registerTestPool(t, engine, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(100)))
	require.NoError(t, engine.DepositCustody(userA, tokenB, amt(100)))

	var amountsIn []*uint256.Int
	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		var err error
		amountsIn, err = engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(100), amt(100)},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []*uint256.Int{amt(40), amt(60)}, amountsIn)

	_, balances, err := engine.GetPoolTokens(poolP)
	require.NoError(t, err)
	require.Equal(t, amt(40), balances[0])
	require.Equal(t, amt(60), balances[1])

	changed := emitter.byType(events.TypePoolBalancesChanged)
	require.Len(t, changed, 1)
	ev := changed[0].(events.PoolBalancesChanged)
	require.Equal(t, poolP, ev.Pool)
	require.Equal(t, []common.Address{tokenA, tokenB}, ev.Tokens)
	require.Equal(t, []*big.Int{big.NewInt(40), big.NewInt(60)}, ev.Deltas)
}

func TestAddLiquidityAboveMax(t *testing.T) {
	engine, _ := newTestEngine(t)
	hook := &stubPool{addAmounts: []*uint256.Int{amt(101), amt(0)}}
	registerTestPool(t, engine, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(200)))

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(100), amt(100)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrJoinAboveMax)
}

func TestAddLiquidityPermutedTokensRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	hook := &stubPool{addAmounts: []*uint256.Int{amt(1), amt(1)}}
	registerTestPool(t, engine, hook)

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: []Asset{{Token: tokenB}, {Token: tokenA}},
			Limits: []*uint256.Int{amt(100), amt(100)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrTokensMismatch)
}

func TestAddLiquidityUnregisteredPool(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(1), amt(1)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrPoolHasNoTokens)
}

func TestAddLiquidityWithoutHook(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerTestPool(t, engine, nil)

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(1), amt(1)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrHookNotBound)
}

func TestHookObservesOutermostSender(t *testing.T) {
	engine, _ := newTestEngine(t)
	hook := &stubPool{addAmounts: []*uint256.Int{amt(1), amt(1)}}
	registerTestPool(t, engine, hook)
	require.NoError(t, engine.DepositCustody(userB, tokenA, amt(10)))
	require.NoError(t, engine.DepositCustody(userB, tokenB, amt(10)))

	// userA opens the bracket; a router (userB) performs the join. The hook
	// must see the outermost caller.
	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userB, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(10), amt(10)},
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, userA, hook.seenSender)
}

func TestHookCannotReenterLiquiditySettlement(t *testing.T) {
	engine, _ := newTestEngine(t)
	hook := &stubPool{addAmounts: []*uint256.Int{amt(1), amt(1)}}
	hook.onAdd = func(common.Address) error {
		_, err := engine.AddLiquidity(engineCurrent(engine), userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(1), amt(1)},
		})
		return err
	}
	registerTestPool(t, engine, hook)

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(1), amt(1)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrReentrancy)
}

func TestRemoveLiquidity(t *testing.T) {
	engine, emitter := newTestEngine(t)
	hook := &stubPool{
		addAmounts:    []*uint256.Int{amt(40), amt(60)},
		removeAmounts: []*uint256.Int{amt(10), amt(20)},
	}
	registerTestPool(t, engine, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(100)))
	require.NoError(t, engine.DepositCustody(userA, tokenB, amt(100)))

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		if _, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(100), amt(100)},
		}); err != nil {
			return err
		}
		_, err := engine.RemoveLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(10), amt(20)},
		})
		return err
	})
	require.NoError(t, err)

	_, balances, err := engine.GetPoolTokens(poolP)
	require.NoError(t, err)
	require.Equal(t, amt(30), balances[0])
	require.Equal(t, amt(40), balances[1])

	// userA paid 40/60 in and got 10/20 back.
	custodyA, err := engine.CustodyBalance(tokenA, userA)
	require.NoError(t, err)
	require.Equal(t, amt(70), custodyA)

	require.Len(t, emitter.byType(events.TypePoolBalancesChanged), 2)
}

func TestRemoveLiquidityBelowMin(t *testing.T) {
	engine, _ := newTestEngine(t)
	hook := &stubPool{
		addAmounts:    []*uint256.Int{amt(40), amt(60)},
		removeAmounts: []*uint256.Int{amt(5), amt(20)},
	}
	registerTestPool(t, engine, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(100)))
	require.NoError(t, engine.DepositCustody(userA, tokenB, amt(100)))

	err := engine.Unlock(userA, nil, func(tx *Transaction) error {
		if _, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(100), amt(100)},
		}); err != nil {
			return err
		}
		_, err := engine.RemoveLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: plainAssets(),
			Limits: []*uint256.Int{amt(10), amt(20)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrExitBelowMin)
}

func TestAddLiquidityWithNativeValue(t *testing.T) {
	engine, _ := newTestEngine(t)
	require.NoError(t, engine.RegisterPool(poolP, []common.Address{tokenA, weth}, nil))
	hook := &stubPool{addAmounts: []*uint256.Int{amt(10), amt(30)}}
	engine.BindPool(poolP, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(10)))

	err := engine.Unlock(userA, amt(50), func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: []Asset{{Token: tokenA}, {UseNative: true}},
			Limits: []*uint256.Int{amt(10), amt(30)},
		})
		return err
	})
	require.NoError(t, err)

	// 30 of the supplied 50 were wrapped; the remainder was refunded.
	refunded, err := engine.CustodyBalance(NativeToken, userA)
	require.NoError(t, err)
	require.Equal(t, amt(20), refunded)
	wrapped, err := engine.Reserves(weth)
	require.NoError(t, err)
	require.Equal(t, amt(30), wrapped)
}

func TestAddLiquidityInsufficientNativeValue(t *testing.T) {
	engine, _ := newTestEngine(t)
	require.NoError(t, engine.RegisterPool(poolP, []common.Address{tokenA, weth}, nil))
	hook := &stubPool{addAmounts: []*uint256.Int{amt(10), amt(30)}}
	engine.BindPool(poolP, hook)
	require.NoError(t, engine.DepositCustody(userA, tokenA, amt(10)))

	err := engine.Unlock(userA, amt(20), func(tx *Transaction) error {
		_, err := engine.AddLiquidity(tx, userA, poolP, LiquidityRequest{
			Assets: []Asset{{Token: tokenA}, {UseNative: true}},
			Limits: []*uint256.Int{amt(10), amt(30)},
		})
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientEth)
}

// engineCurrent exposes the live bracket to hook stubs in tests.
func engineCurrent(e *Engine) *Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
