package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/config"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

const testVenue = "neutron-astroport"

type rpcEnv struct {
	node    *app.Node
	handler http.Handler
	now     time.Time
	alice   string
	bob     string
}

func newRPCEnv(t *testing.T) *rpcEnv {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := &rpcEnv{now: time.Unix(1_700_000_000, 0)}
	h, err := host.New(db, host.WithClock(func() time.Time { return e.now }))
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	n, err := app.Deploy(context.Background(), h, &config.Genesis{
		Admin:           config.DefaultAdminLabel,
		EntryPointLabel: config.DefaultEntryPointLabel,
		IbcAdapterLabel: config.DefaultIbcAdapterLabel,
		Accounts: []config.GenesisAccount{
			{Label: "alice", Coins: []string{"10000000untrn"}},
			{Label: config.DefaultAdminLabel, Coins: []string{"5000000000untrn", "5000000000uosmo"}},
		},
		Venues: []config.GenesisVenue{{
			Name:  testVenue,
			Label: "venue-astroport",
			Pools: []config.GenesisPool{{FeeBps: 0, Coins: []string{"1000000000untrn", "1000000000uosmo"}}},
		}},
	})
	if err != nil {
		t.Fatalf("failed to deploy genesis: %v", err)
	}
	e.node = n
	e.handler = newHandler(&ServerConfig{Address: "127.0.0.1:0", RatePerMinute: 1000, MaxConcurrentRequests: 10}, n)
	e.alice = h.API().Account("alice")
	e.bob = h.API().Account("bob")
	return e
}

// call posts req to procedure using the connect JSON protocol. On success
// the body is decoded into out, on failure the connect error code is
// returned.
func (e *rpcEnv) call(t *testing.T, procedure string, req, out any) (int, string) {
	t.Helper()
	body, err := json.Marshal(req)
	assert.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, procedure, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		var connectErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &connectErr))
		return w.Code, connectErr.Code
	}
	if out != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code, ""
}

func (e *rpcEnv) swapOps() []models.SwapOperation {
	return []models.SwapOperation{{Pool: e.node.Pools[testVenue][0], DenomIn: "untrn", DenomOut: "uosmo"}}
}

func TestHealthAndReady(t *testing.T) {
	e := newRPCEnv(t)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		e.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, w.Code, http.StatusOK)
		assert.Equal(t, w.Header().Get("Content-Type"), "application/json")
		assert.That(t, w.Header().Get("X-Request-Id") != "")
	}
}

func TestRequestIDIsKept(t *testing.T) {
	e := newRPCEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	assert.Equal(t, w.Header().Get("X-Request-Id"), "req-42")
}

func TestExecute_SwapAndTransfer(t *testing.T) {
	e := newRPCEnv(t)

	msg, err := json.Marshal(models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
		UserSwap: models.Swap{SwapExactAssetIn: &models.SwapExactAssetIn{
			SwapVenueName: testVenue,
			Operations:    e.swapOps(),
		}},
		MinAsset:         asset.NewNative("uosmo", chain.NewAmount(990_000)),
		TimeoutTimestamp: uint64(e.now.Add(time.Hour).UnixNano()),
		PostSwapAction:   models.Action{Transfer: &models.Transfer{ToAddress: e.bob}},
		Affiliates:       []models.Affiliate{},
	}})
	assert.NoError(t, err)

	var res host.Result
	status, _ := e.call(t, ExecuteProcedure, ExecuteRequest{
		Sender: e.alice,
		Msg:    msg,
		Funds:  chain.Coins{chain.NewCoin("untrn", 1_000_000)},
	}, &res)
	assert.Equal(t, status, http.StatusOK)
	out, ok := res.Attr("wasm", "post_swap_action_amount_out")
	assert.True(t, ok)
	assert.Equal(t, out, "999000")

	var bal BalanceResponse
	status, _ = e.call(t, BalanceProcedure, BalanceRequest{Address: e.bob, Denom: "uosmo"}, &bal)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, len(bal.Balances), 1)
	assert.Equal(t, bal.Balances[0].Amount.String(), "999000")
}

func TestExecute_MinimumNotMetIsFailedPrecondition(t *testing.T) {
	e := newRPCEnv(t)

	msg, err := json.Marshal(models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
		UserSwap: models.Swap{SwapExactAssetIn: &models.SwapExactAssetIn{
			SwapVenueName: testVenue,
			Operations:    e.swapOps(),
		}},
		MinAsset:         asset.NewNative("uosmo", chain.NewAmount(999_001)),
		TimeoutTimestamp: uint64(e.now.Add(time.Hour).UnixNano()),
		PostSwapAction:   models.Action{Transfer: &models.Transfer{ToAddress: e.bob}},
	}})
	assert.NoError(t, err)

	_, code := e.call(t, ExecuteProcedure, ExecuteRequest{
		Sender: e.alice,
		Msg:    msg,
		Funds:  chain.Coins{chain.NewCoin("untrn", 1_000_000)},
	}, nil)
	assert.Equal(t, code, "failed_precondition")
}

func TestQuery_IbcAdapterAddress(t *testing.T) {
	e := newRPCEnv(t)

	var resp QueryResponse
	status, _ := e.call(t, QueryProcedure, QueryRequest{Msg: json.RawMessage(`{"ibc_transfer_adapter_contract":{}}`)}, &resp)
	assert.Equal(t, status, http.StatusOK)

	var addr string
	assert.NoError(t, json.Unmarshal(resp.Data, &addr))
	assert.Equal(t, addr, e.node.IbcAdapter)
}

func TestSimulate(t *testing.T) {
	e := newRPCEnv(t)

	var resp models.SimulateSwapExactAssetInResponse
	status, _ := e.call(t, SimulateProcedure, SimulateRequest{
		Venue:      testVenue,
		AssetIn:    asset.NewNative("untrn", chain.NewAmount(1_000_000)),
		Operations: e.swapOps(),
	}, &resp)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, resp.AssetOut.Denom(), "uosmo")
	assert.Equal(t, resp.AssetOut.Amount().String(), "999000")
	assert.NotNil(t, resp.SpotPrice)
	assert.Equal(t, resp.SpotPrice.String(), "1")
}

func TestPendingPackets_Empty(t *testing.T) {
	e := newRPCEnv(t)

	var resp PendingPacketsResponse
	status, _ := e.call(t, PendingPacketsProcedure, PendingPacketsRequest{}, &resp)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, len(resp.Packets), 0)
}

func TestErrorCodes(t *testing.T) {
	e := newRPCEnv(t)

	tests := []struct {
		name      string
		procedure string
		req       any
		code      string
	}{
		{
			name:      "invalid address",
			procedure: BalanceProcedure,
			req:       BalanceRequest{Address: "not-an-address"},
			code:      "invalid_argument",
		},
		{
			name:      "missing msg",
			procedure: ExecuteProcedure,
			req:       ExecuteRequest{Sender: e.alice},
			code:      "invalid_argument",
		},
		{
			name:      "unknown contract",
			procedure: ExecuteProcedure,
			req:       ExecuteRequest{Sender: e.alice, Contract: e.bob, Msg: json.RawMessage(`{}`)},
			code:      "not_found",
		},
		{
			name:      "unknown venue",
			procedure: SimulateProcedure,
			req:       SimulateRequest{Venue: "nowhere"},
			code:      "not_found",
		},
		{
			name:      "unknown packet",
			procedure: DeliverTimeoutProcedure,
			req:       DeliverTimeoutRequest{Channel: "channel-0", Sequence: 1},
			code:      "not_found",
		},
		{
			name:      "unknown packet ack",
			procedure: DeliverAckProcedure,
			req:       DeliverAckRequest{Channel: "channel-0", Sequence: 1, Success: true},
			code:      "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := e.call(t, tt.procedure, tt.req, nil)
			assert.Equal(t, code, tt.code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newCORSHandler([]string{"https://app.example.com"}, http.NotFoundHandler())

	r := httptest.NewRequest(http.MethodOptions, ExecuteProcedure, nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "https://app.example.com")
	assert.Equal(t, w.Header().Get("Access-Control-Allow-Credentials"), "true")
}
