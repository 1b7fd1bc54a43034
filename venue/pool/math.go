package pool

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrZeroOutput            = errors.New("swap output rounds to zero")
	ErrDenomNotInPool        = errors.New("denom not in pool")
)

var bpsDenominator = chain.NewAmount(10_000)

// Pool is a constant product pool. Reserves are backed by the venue's bank
// balance.
type Pool struct {
	ID       string       `json:"id"`
	DenomA   string       `json:"denom_a"`
	DenomB   string       `json:"denom_b"`
	ReserveA chain.Amount `json:"reserve_a"`
	ReserveB chain.Amount `json:"reserve_b"`
	FeeBps   uint32       `json:"fee_bps"`
}

func (p *Pool) reserves(denomIn, denomOut string) (in, out *chain.Amount, err error) {
	switch {
	case p.DenomA == denomIn && p.DenomB == denomOut:
		return &p.ReserveA, &p.ReserveB, nil
	case p.DenomB == denomIn && p.DenomA == denomOut:
		return &p.ReserveB, &p.ReserveA, nil
	default:
		return nil, nil, fmt.Errorf("%w: pool %s has no %s/%s pair", ErrDenomNotInPool, p.ID, denomIn, denomOut)
	}
}

func (p *Pool) feeKeep() chain.Amount {
	return chain.NewAmount(10_000 - uint64(p.FeeBps))
}

// AmountOut is the output for amountIn with the fee taken from the input:
// out = R_out * in' / (R_in + in') where in' = in * (10000 - fee) / 10000.
func (p *Pool) AmountOut(denomIn, denomOut string, amountIn chain.Amount) (chain.Amount, error) {
	rIn, rOut, err := p.reserves(denomIn, denomOut)
	if err != nil {
		return chain.Amount{}, err
	}
	afterFee, err := amountIn.MulRatio(p.feeKeep(), bpsDenominator)
	if err != nil {
		return chain.Amount{}, err
	}
	den, err := rIn.Add(afterFee)
	if err != nil {
		return chain.Amount{}, err
	}
	if den.IsZero() {
		return chain.Amount{}, ErrInsufficientLiquidity
	}
	out, err := rOut.MulRatio(afterFee, den)
	if err != nil {
		return chain.Amount{}, err
	}
	if out.IsZero() {
		return chain.Amount{}, ErrZeroOutput
	}
	return out, nil
}

// AmountIn inverts AmountOut, rounding up so that swapping the result
// yields at least amountOut.
func (p *Pool) AmountIn(denomIn, denomOut string, amountOut chain.Amount) (chain.Amount, error) {
	rIn, rOut, err := p.reserves(denomIn, denomOut)
	if err != nil {
		return chain.Amount{}, err
	}
	if amountOut.IsZero() {
		return chain.Amount{}, ErrZeroOutput
	}
	if !amountOut.LT(*rOut) {
		return chain.Amount{}, fmt.Errorf("%w: want %s%s, pool %s holds %s", ErrInsufficientLiquidity, amountOut, denomOut, p.ID, rOut)
	}
	left, err := rOut.Sub(amountOut)
	if err != nil {
		return chain.Amount{}, err
	}
	afterFee, err := rIn.MulRatioCeil(amountOut, left)
	if err != nil {
		return chain.Amount{}, err
	}
	return afterFee.MulRatioCeil(bpsDenominator, p.feeKeep())
}

// Apply moves amountIn into the pool and amountOut out of it.
func (p *Pool) Apply(denomIn, denomOut string, amountIn, amountOut chain.Amount) error {
	rIn, rOut, err := p.reserves(denomIn, denomOut)
	if err != nil {
		return err
	}
	newOut, err := rOut.Sub(amountOut)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
	}
	newIn, err := rIn.Add(amountIn)
	if err != nil {
		return err
	}
	*rIn, *rOut = newIn, newOut
	return nil
}

// SpotPrice is R_out / R_in, the marginal price of denomIn in denomOut.
func (p *Pool) SpotPrice(denomIn, denomOut string) (decimal.Decimal, error) {
	rIn, rOut, err := p.reserves(denomIn, denomOut)
	if err != nil {
		return decimal.Zero, err
	}
	if rIn.IsZero() {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	return decimal.RequireFromString(rOut.String()).
		DivRound(decimal.RequireFromString(rIn.String()), 18), nil
}
