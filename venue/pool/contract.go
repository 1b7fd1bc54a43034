// Package pool is a constant product swap venue. The entry point swaps
// through it and liquidity providers fund it with native coins.
package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

const CodeName = "constant-product-venue"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidPool     = errors.New("invalid pool")
	ErrCw20Unsupported = errors.New("venue only trades native coins")
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "venue").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

var (
	entryPointContractAddress = store.NewItem[string]("entry_point_contract_address")
	pools                     = store.NewMap[Pool]("pools")
	nextPoolID                = store.NewItem[uint64]("next_pool_id")
)

// Venue is the swap venue adapter contract.
type Venue struct{}

var (
	_ host.Contract     = Venue{}
	_ host.Instantiater = Venue{}
	_ host.Queryable    = Venue{}
)

func (Venue) Instantiate(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.VenueInstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	if err := deps.API.Validate(msg.EntryPointContractAddress); err != nil {
		return nil, err
	}
	if err := entryPointContractAddress.Save(deps.Storage, msg.EntryPointContractAddress); err != nil {
		return nil, err
	}
	return chain.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("entry_point_contract_address", msg.EntryPointContractAddress), nil
}

func (Venue) Execute(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.VenueExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	switch {
	case msg.Swap != nil:
		return swap(deps, info, msg.Swap.Operations)
	case msg.CreatePool != nil:
		return createPool(deps, info, *msg.CreatePool)
	case msg.ProvideLiquidity != nil:
		return provideLiquidity(deps, info, *msg.ProvideLiquidity)
	case msg.Receive != nil:
		return nil, ErrCw20Unsupported
	default:
		return nil, models.ErrUnknownMsg
	}
}

func pairFromFunds(info chain.Info) (chain.Coin, chain.Coin, error) {
	funds, err := info.Funds.NonZero()
	if err != nil {
		return chain.Coin{}, chain.Coin{}, err
	}
	if len(funds) != 2 {
		return chain.Coin{}, chain.Coin{}, fmt.Errorf("%w: attach exactly two non-zero coins, got %d", ErrInvalidPool, len(funds))
	}
	return funds[0], funds[1], nil
}

func createPool(deps host.Deps, info chain.Info, msg models.CreatePool) (*chain.Response, error) {
	if msg.FeeBps >= 10_000 {
		return nil, fmt.Errorf("%w: fee %d bps", ErrInvalidPool, msg.FeeBps)
	}
	a, b, err := pairFromFunds(info)
	if err != nil {
		return nil, err
	}
	n, _, err := nextPoolID.MayLoad(deps.Storage)
	if err != nil {
		return nil, err
	}
	n++
	if err := nextPoolID.Save(deps.Storage, n); err != nil {
		return nil, err
	}

	p := Pool{
		ID:       strconv.FormatUint(n, 10),
		DenomA:   a.Denom,
		DenomB:   b.Denom,
		ReserveA: a.Amount,
		ReserveB: b.Amount,
		FeeBps:   msg.FeeBps,
	}
	if err := pools.Save(deps.Storage, store.StringKey(p.ID), p); err != nil {
		return nil, err
	}
	Logger.Info().Str("pool", p.ID).Str("a", a.String()).Str("b", b.String()).Uint32("fee_bps", p.FeeBps).Msg("pool created")
	return chain.NewResponse().
		AddAttribute("action", "create_pool").
		AddAttribute("pool_id", p.ID).
		SetData([]byte(p.ID)), nil
}

func provideLiquidity(deps host.Deps, info chain.Info, msg models.ProvideLiquidity) (*chain.Response, error) {
	a, b, err := pairFromFunds(info)
	if err != nil {
		return nil, err
	}
	bk := newBook(deps.Storage)
	p, err := bk.pool(msg.PoolID)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(a.Denom, b.Denom, a.Amount, chain.ZeroAmount()); err != nil {
		return nil, err
	}
	if err := p.Apply(b.Denom, a.Denom, b.Amount, chain.ZeroAmount()); err != nil {
		return nil, err
	}
	bk.dirty[p.ID] = true
	if err := bk.flush(); err != nil {
		return nil, err
	}
	return chain.NewResponse().
		AddAttribute("action", "provide_liquidity").
		AddAttribute("pool_id", p.ID), nil
}

// swap runs the attached coin through ops and returns the output to the
// caller, which must be the entry point.
func swap(deps host.Deps, info chain.Info, ops []models.SwapOperation) (*chain.Response, error) {
	entryPoint, err := entryPointContractAddress.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != entryPoint {
		return nil, ErrUnauthorized
	}
	in, err := asset.FromFunds(info)
	if err != nil {
		return nil, err
	}

	bk := newBook(deps.Storage)
	out, err := bk.swapExactIn(ops, in.Denom(), in.Amount())
	if err != nil {
		return nil, err
	}
	if err := bk.flush(); err != nil {
		return nil, err
	}

	coinOut := chain.Coin{Denom: ops[len(ops)-1].DenomOut, Amount: out}
	Logger.Debug().Str("in", in.String()).Str("out", coinOut.String()).Int("hops", len(ops)).Msg("swap executed")
	return chain.NewResponse().
		AddAttribute("action", "execute_swap").
		AddAttribute("amount_in", in.String()).
		AddAttribute("amount_out", coinOut.String()).
		AddMessage(chain.StageNone, chain.NewBankSend(info.Sender, coinOut)), nil
}

func (Venue) Query(ctx context.Context, deps host.Deps, env chain.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg models.VenueQueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	bk := newBook(deps.Storage)

	switch {
	case msg.SimulateSwapExactAssetIn != nil:
		q := msg.SimulateSwapExactAssetIn
		out, err := simulateExactIn(bk, q.AssetIn, q.SwapOperations)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)

	case msg.SimulateSwapExactAssetOut != nil:
		q := msg.SimulateSwapExactAssetOut
		in, err := simulateExactOut(bk, q.AssetOut, q.SwapOperations)
		if err != nil {
			return nil, err
		}
		return json.Marshal(in)

	case msg.SimulateSwapExactAssetInWithMetadata != nil:
		q := msg.SimulateSwapExactAssetInWithMetadata
		resp := models.SimulateSwapExactAssetInResponse{}
		if q.IncludeSpotPrice {
			price, err := bk.spotPrice(q.SwapOperations)
			if err != nil {
				return nil, err
			}
			resp.SpotPrice = &price
		}
		out, err := simulateExactIn(bk, q.AssetIn, q.SwapOperations)
		if err != nil {
			return nil, err
		}
		resp.AssetOut = out
		return json.Marshal(resp)

	case msg.SimulateSwapExactAssetOutWithMetadata != nil:
		q := msg.SimulateSwapExactAssetOutWithMetadata
		resp := models.SimulateSwapExactAssetOutResponse{}
		if q.IncludeSpotPrice {
			price, err := bk.spotPrice(q.SwapOperations)
			if err != nil {
				return nil, err
			}
			resp.SpotPrice = &price
		}
		in, err := simulateExactOut(bk, q.AssetOut, q.SwapOperations)
		if err != nil {
			return nil, err
		}
		resp.AssetIn = in
		return json.Marshal(resp)

	case msg.SimulateSmartSwapExactAssetIn != nil:
		q := msg.SimulateSmartSwapExactAssetIn
		if len(q.Routes) == 0 {
			return nil, models.ErrRoutesEmpty
		}
		var total asset.Asset
		for i, route := range q.Routes {
			if route.OfferAsset.Denom() != q.AssetIn.Denom() {
				return nil, fmt.Errorf("%w: route %d offers %s", models.ErrSwapOperationsAssetInDenomMismatch, i, route.OfferAsset.Denom())
			}
			out, err := simulateExactIn(bk, route.OfferAsset, route.Operations)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				total = out
				continue
			}
			if out.Denom() != total.Denom() {
				return nil, fmt.Errorf("%w: routes end in %s and %s", models.ErrSwapOperationsAssetOutDenomMismatch, total.Denom(), out.Denom())
			}
			if err := total.Add(out.Amount()); err != nil {
				return nil, err
			}
		}
		return json.Marshal(total)

	case msg.Pool != nil:
		p, err := bk.pool(msg.Pool.PoolID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)

	default:
		return nil, models.ErrUnknownMsg
	}
}

func simulateExactIn(bk *book, in asset.Asset, ops []models.SwapOperation) (asset.Asset, error) {
	if !in.IsNative() {
		return asset.Asset{}, ErrCw20Unsupported
	}
	out, err := bk.swapExactIn(ops, in.Denom(), in.Amount())
	if err != nil {
		return asset.Asset{}, err
	}
	return asset.NewNative(ops[len(ops)-1].DenomOut, out), nil
}

func simulateExactOut(bk *book, out asset.Asset, ops []models.SwapOperation) (asset.Asset, error) {
	if !out.IsNative() {
		return asset.Asset{}, ErrCw20Unsupported
	}
	if len(ops) > 0 && ops[len(ops)-1].DenomOut != out.Denom() {
		return asset.Asset{}, models.ErrSwapOperationsAssetOutDenomMismatch
	}
	denomIn, amountIn, err := bk.quoteExactOut(ops, out.Amount())
	if err != nil {
		return asset.Asset{}, err
	}
	return asset.NewNative(denomIn, amountIn), nil
}
