package entrypoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/config"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

const venueName = "neutron-astroport"

type testEnv struct {
	*app.Node
	ctx   context.Context
	now   time.Time
	alice string
	bob   string
}

func genesis() *config.Genesis {
	return &config.Genesis{
		Admin:           "admin",
		EntryPointLabel: config.DefaultEntryPointLabel,
		IbcAdapterLabel: config.DefaultIbcAdapterLabel,
		Accounts: []config.GenesisAccount{
			{Label: "alice", Coins: []string{"10000000untrn"}},
			{Label: "admin", Coins: []string{"5000000000untrn", "5000000000uosmo"}},
		},
		Tokens: []config.GenesisToken{{
			Label:    "token-astro",
			Name:     "Astro",
			Symbol:   "ASTRO",
			Decimals: 6,
			Balances: []config.GenesisTokenBalance{{Account: "alice", Amount: "500"}},
		}},
		Venues: []config.GenesisVenue{{
			Name:  venueName,
			Label: "venue-astroport",
			Pools: []config.GenesisPool{
				{FeeBps: 0, Coins: []string{"1000000000untrn", "1000000000uosmo"}},
				{FeeBps: 0, Coins: []string{"1000000000untrn", "1000000000uosmo"}},
			},
		}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := &testEnv{ctx: context.Background(), now: time.Unix(1_700_000_000, 0)}
	h, err := host.New(db, host.WithClock(func() time.Time { return e.now }))
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	n, err := app.Deploy(e.ctx, h, genesis())
	if err != nil {
		t.Fatalf("failed to deploy genesis: %v", err)
	}
	e.Node = n
	e.alice = h.API().Account("alice")
	e.bob = h.API().Account("bob")
	return e
}

func (e *testEnv) timeout() uint64 {
	return uint64(e.now.Add(time.Hour).UnixNano())
}

func (e *testEnv) balance(t *testing.T, address, denom string) string {
	t.Helper()
	c, err := e.Host.Balance(e.ctx, address, denom)
	if err != nil {
		t.Fatalf("balance of %s: %v", address, err)
	}
	return c.Amount.String()
}

func (e *testEnv) cw20Balance(t *testing.T, token, address string) string {
	t.Helper()
	var out chain.Cw20BalanceResponse
	err := e.Host.QueryInto(e.ctx, token, chain.Cw20QueryMsg{Balance: &chain.Cw20BalanceQuery{Address: address}}, &out)
	if err != nil {
		t.Fatalf("cw20 balance of %s: %v", address, err)
	}
	return out.Balance.String()
}

func (e *testEnv) pool(i int) string {
	return e.Pools[venueName][i]
}

func (e *testEnv) ops(poolIdx int) []models.SwapOperation {
	return []models.SwapOperation{{Pool: e.pool(poolIdx), DenomIn: "untrn", DenomOut: "uosmo"}}
}

func (e *testEnv) exactIn(poolIdx int) models.Swap {
	return models.Swap{SwapExactAssetIn: &models.SwapExactAssetIn{SwapVenueName: venueName, Operations: e.ops(poolIdx)}}
}

func (e *testEnv) transferTo(addr string) models.Action {
	return models.Action{Transfer: &models.Transfer{ToAddress: addr}}
}

func osmo(n uint64) asset.Asset {
	return asset.NewNative("uosmo", chain.NewAmount(n))
}

func untrn(n uint64) chain.Coins {
	return chain.Coins{chain.NewCoin("untrn", n)}
}

// selfCalls counts the messages the entry point sent to itself.
func selfCalls(res *host.Result, ep string) int {
	n := 0
	for _, d := range res.Messages {
		if d.Sender == ep && d.Msg.WasmExecute != nil && d.Msg.WasmExecute.ContractAddr == ep {
			n++
		}
	}
	return n
}
