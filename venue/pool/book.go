package pool

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

var ErrPoolNotFound = errors.New("pool not found")

// book caches pools loaded during one call so that hops and routes through
// the same pool see each other's effect. Nothing is persisted until flush.
type book struct {
	kv    store.KV
	pools map[string]*Pool
	dirty map[string]bool
}

func newBook(kv store.KV) *book {
	return &book{kv: kv, pools: make(map[string]*Pool), dirty: make(map[string]bool)}
}

func (b *book) pool(id string) (*Pool, error) {
	if p, ok := b.pools[id]; ok {
		return p, nil
	}
	p, err := pools.Load(b.kv, store.StringKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	b.pools[id] = &p
	return &p, nil
}

func (b *book) flush() error {
	for id := range b.dirty {
		if err := pools.Save(b.kv, store.StringKey(id), *b.pools[id]); err != nil {
			return err
		}
	}
	return nil
}

func checkChain(ops []models.SwapOperation, denomIn string) error {
	if len(ops) == 0 {
		return models.ErrSwapOperationsEmpty
	}
	prev := denomIn
	for i, op := range ops {
		if op.DenomIn != prev {
			return fmt.Errorf("%w: hop %d takes %s, previous hop yields %s", models.ErrSwapOperationsAssetInDenomMismatch, i, op.DenomIn, prev)
		}
		prev = op.DenomOut
	}
	return nil
}

// swapExactIn runs amount of denomIn through ops and returns the output.
func (b *book) swapExactIn(ops []models.SwapOperation, denomIn string, amount chain.Amount) (chain.Amount, error) {
	if err := checkChain(ops, denomIn); err != nil {
		return chain.Amount{}, err
	}
	for _, op := range ops {
		p, err := b.pool(op.Pool)
		if err != nil {
			return chain.Amount{}, err
		}
		out, err := p.AmountOut(op.DenomIn, op.DenomOut, amount)
		if err != nil {
			return chain.Amount{}, err
		}
		if err := p.Apply(op.DenomIn, op.DenomOut, amount, out); err != nil {
			return chain.Amount{}, err
		}
		b.dirty[p.ID] = true
		amount = out
	}
	return amount, nil
}

// quoteExactOut walks ops from the last hop back and returns the input
// needed for amountOut of the last hop's denom.
func (b *book) quoteExactOut(ops []models.SwapOperation, amountOut chain.Amount) (string, chain.Amount, error) {
	if len(ops) == 0 {
		return "", chain.Amount{}, models.ErrSwapOperationsEmpty
	}
	if err := checkChain(ops, ops[0].DenomIn); err != nil {
		return "", chain.Amount{}, err
	}
	need := amountOut
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		p, err := b.pool(op.Pool)
		if err != nil {
			return "", chain.Amount{}, err
		}
		if need, err = p.AmountIn(op.DenomIn, op.DenomOut, need); err != nil {
			return "", chain.Amount{}, err
		}
	}
	return ops[0].DenomIn, need, nil
}

// spotPrice multiplies the spot prices of every hop.
func (b *book) spotPrice(ops []models.SwapOperation) (decimal.Decimal, error) {
	price := decimal.NewFromInt(1)
	for _, op := range ops {
		p, err := b.pool(op.Pool)
		if err != nil {
			return decimal.Zero, err
		}
		hop, err := p.SpotPrice(op.DenomIn, op.DenomOut)
		if err != nil {
			return decimal.Zero, err
		}
		price = price.Mul(hop)
	}
	return price, nil
}
