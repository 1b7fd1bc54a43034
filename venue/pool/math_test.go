package pool

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

func balancedPool() *Pool {
	return &Pool{
		ID:       "1",
		DenomA:   "untrn",
		DenomB:   "uosmo",
		ReserveA: chain.NewAmount(1_000_000_000),
		ReserveB: chain.NewAmount(1_000_000_000),
	}
}

func TestAmountOut(t *testing.T) {
	p := balancedPool()
	out, err := p.AmountOut("untrn", "uosmo", chain.NewAmount(1_000_000))
	assert.NoError(t, err)
	assert.Equal(t, out.String(), "999000")

	p.FeeBps = 30
	out, err = p.AmountOut("untrn", "uosmo", chain.NewAmount(1_000_000))
	assert.NoError(t, err)
	assert.Equal(t, out.String(), "996006")
}

func TestAmountIn_CoversRequestedOutput(t *testing.T) {
	p := &Pool{
		ID:       "2",
		DenomA:   "untrn",
		DenomB:   "uosmo",
		ReserveA: chain.NewAmount(1_000_000),
		ReserveB: chain.NewAmount(2_000_000),
		FeeBps:   30,
	}
	for _, want := range []uint64{1, 7, 1000, 12345, 500000} {
		in, err := p.AmountIn("untrn", "uosmo", chain.NewAmount(want))
		assert.NoError(t, err)
		got, err := p.AmountOut("untrn", "uosmo", in)
		assert.NoError(t, err)
		assert.False(t, got.LT(chain.NewAmount(want)))
	}

	in, err := balancedPool().AmountIn("untrn", "uosmo", chain.NewAmount(1000))
	assert.NoError(t, err)
	assert.Equal(t, in.String(), "1001")
}

func TestAmountIn_Errors(t *testing.T) {
	p := balancedPool()
	_, err := p.AmountIn("untrn", "uosmo", chain.NewAmount(1_000_000_000))
	assert.True(t, errors.Is(err, ErrInsufficientLiquidity))

	_, err = p.AmountIn("untrn", "uosmo", chain.ZeroAmount())
	assert.True(t, errors.Is(err, ErrZeroOutput))

	_, err = p.AmountIn("uatom", "uosmo", chain.NewAmount(1))
	assert.True(t, errors.Is(err, ErrDenomNotInPool))
}

func TestAmountOut_RoundsToZero(t *testing.T) {
	p := &Pool{ID: "3", DenomA: "untrn", DenomB: "uosmo", ReserveA: chain.NewAmount(1_000_000_000), ReserveB: chain.NewAmount(1)}
	_, err := p.AmountOut("untrn", "uosmo", chain.NewAmount(1))
	assert.True(t, errors.Is(err, ErrZeroOutput))
}

func TestApply(t *testing.T) {
	p := balancedPool()
	assert.NoError(t, p.Apply("uosmo", "untrn", chain.NewAmount(10), chain.NewAmount(4)))
	assert.Equal(t, p.ReserveA.String(), "999999996")
	assert.Equal(t, p.ReserveB.String(), "1000000010")

	err := p.Apply("untrn", "uosmo", chain.ZeroAmount(), chain.NewAmount(2_000_000_000))
	assert.True(t, errors.Is(err, ErrInsufficientLiquidity))
}

func TestSpotPrice(t *testing.T) {
	p := &Pool{ID: "4", DenomA: "untrn", DenomB: "uosmo", ReserveA: chain.NewAmount(1_000_000), ReserveB: chain.NewAmount(2_000_000)}
	price, err := p.SpotPrice("untrn", "uosmo")
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2)))

	price, err = p.SpotPrice("uosmo", "untrn")
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.5")))
}
