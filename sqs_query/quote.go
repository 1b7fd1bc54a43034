package sqsquery

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

var (
	ErrSplitRoute      = errors.New("quote splits over several routes")
	ErrEmptyRoute      = errors.New("quote has no pools")
	ErrRouteDenom      = errors.New("quote route does not end in the requested denom")
	ErrInvalidSlippage = errors.New("slippage must be below 10000 basis points")
	ErrQuoteTooSmall   = errors.New("quote output is zero after slippage")
)

var bps = decimal.NewFromInt(10_000)

// Quote is a single route exact-in quote ready to be put in a memo.
type Quote struct {
	AmountIn    chain.Coin
	AmountOut   chain.Coin
	MinAsset    chain.Coin
	Operations  []models.SwapOperation
	PriceImpact decimal.Decimal
}

// QuoteExactIn asks SQS for the best single route from in to denomOut and
// sets the minimum output slippageBps below the quoted amount.
func (c *Client) QuoteExactIn(ctx context.Context, in chain.Coin, denomOut string, slippageBps uint32) (Quote, error) {
	resp, err := c.GetRoute(ctx, TokenRequest{Denom: in.Denom, Amount: in.Amount.String()}, denomOut, true)
	if err != nil {
		return Quote{}, err
	}
	q, err := QuoteFromRoute(resp, in, denomOut, slippageBps)
	if err != nil {
		return Quote{}, err
	}
	Logger.Debug().
		Str("in", in.String()).
		Str("out", q.AmountOut.String()).
		Str("min", q.MinAsset.String()).
		Int("hops", len(q.Operations)).
		Msg("quote received")
	return q, nil
}

// QuoteFromRoute converts an SQS route response into swap operations.
func QuoteFromRoute(resp RouteTokenResponse, in chain.Coin, denomOut string, slippageBps uint32) (Quote, error) {
	if slippageBps >= 10_000 {
		return Quote{}, ErrInvalidSlippage
	}
	if len(resp.Route) != 1 {
		return Quote{}, fmt.Errorf("%w: %d routes", ErrSplitRoute, len(resp.Route))
	}
	route := resp.Route[0]
	if len(route.Pools) == 0 {
		return Quote{}, ErrEmptyRoute
	}

	ops := make([]models.SwapOperation, 0, len(route.Pools))
	prev := in.Denom
	for _, p := range route.Pools {
		ops = append(ops, models.SwapOperation{Pool: strconv.Itoa(p.ID), DenomIn: prev, DenomOut: p.TokenOutDenom})
		prev = p.TokenOutDenom
	}
	if prev != denomOut {
		return Quote{}, fmt.Errorf("%w: ends in %s, want %s", ErrRouteDenom, prev, denomOut)
	}

	out, err := chain.ParseAmount(resp.AmountOut)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid quote amount_out %q: %w", resp.AmountOut, err)
	}
	minOut := decimal.RequireFromString(out.String()).
		Mul(decimal.NewFromInt(10_000 - int64(slippageBps))).
		Div(bps).
		Floor()
	minAmount, err := chain.ParseAmount(minOut.String())
	if err != nil {
		return Quote{}, err
	}
	if minAmount.IsZero() {
		return Quote{}, ErrQuoteTooSmall
	}

	q := Quote{
		AmountIn:   in,
		AmountOut:  chain.Coin{Denom: denomOut, Amount: out},
		MinAsset:   chain.Coin{Denom: denomOut, Amount: minAmount},
		Operations: ops,
	}
	if resp.PriceImpact != "" {
		if q.PriceImpact, err = decimal.NewFromString(resp.PriceImpact); err != nil {
			return Quote{}, fmt.Errorf("invalid quote price_impact %q: %w", resp.PriceImpact, err)
		}
	}
	return q, nil
}
