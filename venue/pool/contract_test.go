package pool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
	"github.com/Cogwheel-Validator/spectra-entry-point/venue/pool"
)

type venueEnv struct {
	h       *host.Host
	ctx     context.Context
	venue   string
	caller  string
	lp      string
	poolIDs []string
}

// newVenueEnv deploys a venue whose entry point is a plain account, with two
// balanced 1e9/1e9 untrn/uosmo pools.
func newVenueEnv(t *testing.T) *venueEnv {
	t.Helper()
	db, err := store.OpenMemory()
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h, err := host.New(db)
	assert.NoError(t, err)
	h.StoreCode(pool.CodeName, pool.Venue{})

	e := &venueEnv{h: h, ctx: context.Background(), caller: h.API().Account("caller"), lp: h.API().Account("lp")}
	assert.NoError(t, h.Mint(e.ctx, e.lp, chain.NewCoin("untrn", 5_000_000_000), chain.NewCoin("uosmo", 5_000_000_000)))
	assert.NoError(t, h.Mint(e.ctx, e.caller, chain.NewCoin("untrn", 10_000_000)))

	e.venue, _, err = h.Instantiate(e.ctx, e.lp, pool.CodeName, "venue", models.VenueInstantiateMsg{EntryPointContractAddress: e.caller}, nil)
	assert.NoError(t, err)
	for i := 0; i < 2; i++ {
		res, err := h.Execute(e.ctx, e.lp, e.venue, models.VenueExecuteMsg{CreatePool: &models.CreatePool{}}, e.pair(1_000_000_000))
		assert.NoError(t, err)
		e.poolIDs = append(e.poolIDs, string(res.Data))
	}
	return e
}

func (e *venueEnv) pair(n uint64) chain.Coins {
	return chain.Coins{chain.NewCoin("untrn", n), chain.NewCoin("uosmo", n)}
}

func (e *venueEnv) ops(i int) []models.SwapOperation {
	return []models.SwapOperation{{Pool: e.poolIDs[i], DenomIn: "untrn", DenomOut: "uosmo"}}
}

func (e *venueEnv) pool(t *testing.T, id string) pool.Pool {
	t.Helper()
	var p pool.Pool
	assert.NoError(t, e.h.QueryInto(e.ctx, e.venue, models.VenueQueryMsg{Pool: &models.PoolQuery{PoolID: id}}, &p))
	return p
}

func TestCreatePool(t *testing.T) {
	e := newVenueEnv(t)
	assert.DeepEqual(t, e.poolIDs, []string{"1", "2"})

	p := e.pool(t, "2")
	assert.Equal(t, p.DenomA, "untrn")
	assert.Equal(t, p.DenomB, "uosmo")
	assert.Equal(t, p.ReserveA.String(), "1000000000")

	_, err := e.h.Execute(e.ctx, e.lp, e.venue, models.VenueExecuteMsg{CreatePool: &models.CreatePool{FeeBps: 10_000}}, e.pair(10))
	assert.True(t, errors.Is(err, pool.ErrInvalidPool))
	_, err = e.h.Execute(e.ctx, e.lp, e.venue, models.VenueExecuteMsg{CreatePool: &models.CreatePool{}}, chain.Coins{chain.NewCoin("untrn", 10)})
	assert.True(t, errors.Is(err, pool.ErrInvalidPool))
}

func TestProvideLiquidity(t *testing.T) {
	e := newVenueEnv(t)
	_, err := e.h.Execute(e.ctx, e.lp, e.venue, models.VenueExecuteMsg{ProvideLiquidity: &models.ProvideLiquidity{PoolID: "1"}}, e.pair(5))
	assert.NoError(t, err)
	p := e.pool(t, "1")
	assert.Equal(t, p.ReserveA.String(), "1000000005")
	assert.Equal(t, p.ReserveB.String(), "1000000005")

	_, err = e.h.Execute(e.ctx, e.lp, e.venue, models.VenueExecuteMsg{ProvideLiquidity: &models.ProvideLiquidity{PoolID: "9"}}, e.pair(5))
	assert.True(t, errors.Is(err, pool.ErrPoolNotFound))
}

func TestSwap(t *testing.T) {
	e := newVenueEnv(t)
	msg := models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: e.ops(0)}}

	_, err := e.h.Execute(e.ctx, e.lp, e.venue, msg, chain.Coins{chain.NewCoin("untrn", 1_000_000)})
	assert.True(t, errors.Is(err, pool.ErrUnauthorized))

	res, err := e.h.Execute(e.ctx, e.caller, e.venue, msg, chain.Coins{chain.NewCoin("untrn", 1_000_000)})
	assert.NoError(t, err)
	out, _ := res.Attr("wasm", "amount_out")
	assert.Equal(t, out, "999000uosmo")

	got, err := e.h.Balance(e.ctx, e.caller, "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, got.Amount.String(), "999000")

	p := e.pool(t, "1")
	assert.Equal(t, p.ReserveA.String(), "1001000000")
	assert.Equal(t, p.ReserveB.String(), "999001000")
}

func TestSwap_RejectsBrokenChain(t *testing.T) {
	e := newVenueEnv(t)
	ops := []models.SwapOperation{{Pool: "1", DenomIn: "uosmo", DenomOut: "untrn"}}
	_, err := e.h.Execute(e.ctx, e.caller, e.venue, models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: ops}}, chain.Coins{chain.NewCoin("untrn", 10)})
	assert.True(t, errors.Is(err, models.ErrSwapOperationsAssetInDenomMismatch))
}

func TestSimulate(t *testing.T) {
	e := newVenueEnv(t)

	var out asset.Asset
	err := e.h.QueryInto(e.ctx, e.venue, models.VenueQueryMsg{SimulateSwapExactAssetIn: &models.SimulateSwapExactAssetIn{
		AssetIn:        asset.NewNative("untrn", chain.NewAmount(1_000_000)),
		SwapOperations: e.ops(0),
	}}, &out)
	assert.NoError(t, err)
	assert.Equal(t, out.String(), "999000uosmo")

	var in asset.Asset
	err = e.h.QueryInto(e.ctx, e.venue, models.VenueQueryMsg{SimulateSwapExactAssetOut: &models.SimulateSwapExactAssetOut{
		AssetOut:       asset.NewNative("uosmo", chain.NewAmount(1000)),
		SwapOperations: e.ops(0),
	}}, &in)
	assert.NoError(t, err)
	assert.Equal(t, in.String(), "1001untrn")

	var meta models.SimulateSwapExactAssetInResponse
	err = e.h.QueryInto(e.ctx, e.venue, models.VenueQueryMsg{SimulateSwapExactAssetInWithMetadata: &models.SimulateSwapExactAssetInMeta{
		AssetIn:          asset.NewNative("untrn", chain.NewAmount(1_000_000)),
		SwapOperations:   e.ops(1),
		IncludeSpotPrice: true,
	}}, &meta)
	assert.NoError(t, err)
	assert.Equal(t, meta.AssetOut.String(), "999000uosmo")
	assert.NotNil(t, meta.SpotPrice)
	assert.Equal(t, meta.SpotPrice.String(), "1")

	var smart asset.Asset
	err = e.h.QueryInto(e.ctx, e.venue, models.VenueQueryMsg{SimulateSmartSwapExactAssetIn: &models.SimulateSmartSwapExactAssetIn{
		AssetIn: asset.NewNative("untrn", chain.NewAmount(1_000_000)),
		Routes: []models.Route{
			{OfferAsset: asset.NewNative("untrn", chain.NewAmount(400_000)), Operations: e.ops(0)},
			{OfferAsset: asset.NewNative("untrn", chain.NewAmount(600_000)), Operations: e.ops(1)},
		},
	}}, &smart)
	assert.NoError(t, err)
	assert.Equal(t, smart.String(), "999480uosmo")

	// simulations never move reserves
	p := e.pool(t, "1")
	assert.Equal(t, p.ReserveA.String(), "1000000000")
}
