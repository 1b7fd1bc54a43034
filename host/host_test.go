package host

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// script is a test contract driven entirely by its execute message.
type script struct{}

type scriptMsg struct {
	Messages []chain.SubMsg        `json:"messages,omitempty"`
	Write    string                `json:"write,omitempty"`
	Fail     string                `json:"fail,omitempty"`
	Receive  *chain.Cw20ReceiveMsg `json:"receive,omitempty"`
}

type scriptQuery struct {
	Get string `json:"get"`
}

func (script) Execute(ctx context.Context, deps Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg scriptMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if msg.Receive != nil {
		b, _ := json.Marshal(msg.Receive)
		if err := deps.Storage.Put([]byte("received"), b); err != nil {
			return nil, err
		}
	}
	if msg.Write != "" {
		if err := deps.Storage.Put([]byte("w"), []byte(`"`+msg.Write+`"`)); err != nil {
			return nil, err
		}
	}
	if msg.Fail != "" {
		return nil, errors.New(msg.Fail)
	}
	resp := chain.NewResponse().AddAttribute("action", "script")
	resp.Messages = msg.Messages
	return resp, nil
}

func (script) Reply(ctx context.Context, deps Deps, env chain.Env, reply chain.Reply) (*chain.Response, error) {
	b, _ := json.Marshal(reply)
	if err := deps.Storage.Put([]byte("reply"), b); err != nil {
		return nil, err
	}
	return chain.NewResponse().AddAttribute("action", "reply"), nil
}

func (script) Sudo(ctx context.Context, deps Deps, env chain.Env, msg chain.SudoMsg) (*chain.Response, error) {
	b, _ := json.Marshal(msg)
	if err := deps.Storage.Put([]byte("sudo"), b); err != nil {
		return nil, err
	}
	return chain.NewResponse().AddAttribute("action", "sudo"), nil
}

func (script) Query(ctx context.Context, deps Deps, env chain.Env, raw json.RawMessage) (json.RawMessage, error) {
	var q scriptQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	v, err := deps.Storage.Get([]byte(q.Get))
	if errors.Is(err, store.ErrNotFound) {
		return json.RawMessage("null"), nil
	}
	return v, err
}

type testEnv struct {
	h   *Host
	ctx context.Context
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{ctx: context.Background(), now: time.Unix(1_700_000_000, 0)}
	h, err := New(db, WithClock(func() time.Time { return env.now }))
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	h.StoreCode("script", script{})
	h.StoreCode(Cw20CodeName, Cw20Token{})
	env.h = h
	return env
}

func (e *testEnv) instantiate(t *testing.T, label string) string {
	t.Helper()
	addr, _, err := e.h.Instantiate(e.ctx, e.h.API().Account("admin"), "script", label, struct{}{}, nil)
	if err != nil {
		t.Fatalf("failed to instantiate %s: %v", label, err)
	}
	return addr
}

func (e *testEnv) get(t *testing.T, contract, key string) json.RawMessage {
	t.Helper()
	raw, err := e.h.Query(e.ctx, contract, scriptQuery{Get: key})
	if err != nil {
		t.Fatalf("query %s on %s: %v", key, contract, err)
	}
	return raw
}

func wasm(t *testing.T, contract string, payload any, funds ...chain.Coin) chain.Msg {
	t.Helper()
	msg, err := chain.NewWasmExecute(contract, payload, funds...)
	if err != nil {
		t.Fatalf("failed to build wasm msg: %v", err)
	}
	return msg
}

func TestExecute_BankSendFromContract(t *testing.T) {
	e := newTestEnv(t)
	c := e.instantiate(t, "sender")
	alice := e.h.API().Account("alice")
	assert.NoError(t, e.h.Mint(e.ctx, c, chain.NewCoin("uosmo", 1000)))

	res, err := e.h.Execute(e.ctx, alice, c, scriptMsg{Messages: []chain.SubMsg{
		{Msg: chain.NewBankSend(alice, chain.NewCoin("uosmo", 400)), Stage: chain.StageTransfer},
	}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(res.Messages), 1)
	assert.Equal(t, res.Messages[0].Stage, chain.StageTransfer)

	amount, ok := res.Attr("transfer", "amount")
	assert.True(t, ok)
	assert.Equal(t, amount, "400uosmo")

	bal, err := e.h.Balance(e.ctx, alice, "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, bal.Amount.String(), "400")
	bal, err = e.h.Balance(e.ctx, c, "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, bal.Amount.String(), "600")
}

func TestExecute_FailureRevertsEverything(t *testing.T) {
	e := newTestEnv(t)
	c := e.instantiate(t, "sender")
	failer := e.instantiate(t, "failer")
	alice := e.h.API().Account("alice")
	assert.NoError(t, e.h.Mint(e.ctx, c, chain.NewCoin("uosmo", 1000)))

	_, err := e.h.Execute(e.ctx, alice, c, scriptMsg{Write: "before", Messages: []chain.SubMsg{
		{Msg: chain.NewBankSend(alice, chain.NewCoin("uosmo", 400))},
		{Msg: wasm(t, failer, scriptMsg{Fail: "boom"})},
	}}, nil)
	assert.Error(t, err)

	bal, err := e.h.Balance(e.ctx, c, "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, bal.Amount.String(), "1000")
	assert.Equal(t, string(e.get(t, c, "w")), "null")
}

func TestSubMsg_ReplyOnErrorRollsBackBranch(t *testing.T) {
	e := newTestEnv(t)
	caller := e.instantiate(t, "caller")
	failer := e.instantiate(t, "failer")
	alice := e.h.API().Account("alice")
	assert.NoError(t, e.h.Mint(e.ctx, caller, chain.NewCoin("uosmo", 100)))

	res, err := e.h.Execute(e.ctx, alice, caller, scriptMsg{Messages: []chain.SubMsg{{
		ID:      7,
		Msg:     wasm(t, failer, scriptMsg{Write: "dirty", Fail: "boom"}, chain.NewCoin("uosmo", 100)),
		ReplyOn: chain.ReplyError,
	}}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(res.Messages), 0)

	assert.Equal(t, string(e.get(t, failer, "w")), "null")
	bal, err := e.h.Balance(e.ctx, caller, "uosmo")
	assert.NoError(t, err)
	assert.Equal(t, bal.Amount.String(), "100")

	var reply chain.Reply
	assert.NoError(t, json.Unmarshal(e.get(t, caller, "reply"), &reply))
	assert.Equal(t, reply.ID, uint64(7))
	assert.Nil(t, reply.Result.Ok)
	assert.That(t, reply.Result.Err != "")
}

func TestSubMsg_ReplyOnSuccessSkipsReplyOnError(t *testing.T) {
	e := newTestEnv(t)
	caller := e.instantiate(t, "caller")
	failer := e.instantiate(t, "failer")
	alice := e.h.API().Account("alice")

	_, err := e.h.Execute(e.ctx, alice, caller, scriptMsg{Write: "kept", Messages: []chain.SubMsg{{
		ID:      1,
		Msg:     wasm(t, failer, scriptMsg{Fail: "boom"}),
		ReplyOn: chain.ReplySuccess,
	}}}, nil)
	assert.Error(t, err)
	assert.Equal(t, string(e.get(t, caller, "w")), "null")
}

func TestSubMsg_ReplyAlwaysSeesSuccess(t *testing.T) {
	e := newTestEnv(t)
	caller := e.instantiate(t, "caller")
	callee := e.instantiate(t, "callee")
	alice := e.h.API().Account("alice")

	_, err := e.h.Execute(e.ctx, alice, caller, scriptMsg{Messages: []chain.SubMsg{{
		ID:      3,
		Msg:     wasm(t, callee, scriptMsg{Write: "done"}),
		ReplyOn: chain.ReplyAlways,
	}}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, string(e.get(t, callee, "w")), `"done"`)

	var reply chain.Reply
	assert.NoError(t, json.Unmarshal(e.get(t, caller, "reply"), &reply))
	assert.Equal(t, reply.ID, uint64(3))
	assert.NotNil(t, reply.Result.Ok)
	assert.Equal(t, reply.Result.Err, "")
}

func TestDispatch_DepthFirstOrder(t *testing.T) {
	e := newTestEnv(t)
	a := e.instantiate(t, "a")
	b := e.instantiate(t, "b")
	alice := e.h.API().Account("alice")
	assert.NoError(t, e.h.Mint(e.ctx, a, chain.NewCoin("uosmo", 10)))
	assert.NoError(t, e.h.Mint(e.ctx, b, chain.NewCoin("uosmo", 10)))

	res, err := e.h.Execute(e.ctx, alice, a, scriptMsg{Messages: []chain.SubMsg{
		{Msg: wasm(t, b, scriptMsg{Messages: []chain.SubMsg{
			{Msg: chain.NewBankSend(alice, chain.NewCoin("uosmo", 1)), Stage: chain.StageUserSwap},
		}}), Stage: chain.StageFeeSwap},
		{Msg: chain.NewBankSend(alice, chain.NewCoin("uosmo", 2)), Stage: chain.StagePostAction},
	}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(res.Messages), 3)
	assert.Equal(t, res.Messages[0].Stage, chain.StageFeeSwap)
	assert.Equal(t, res.Messages[1].Stage, chain.StageUserSwap)
	assert.Equal(t, res.Messages[1].Depth, 2)
	assert.Equal(t, res.Messages[2].Stage, chain.StagePostAction)
}

func TestInstantiate_Duplicate(t *testing.T) {
	e := newTestEnv(t)
	e.instantiate(t, "once")
	_, _, err := e.h.Instantiate(e.ctx, e.h.API().Account("admin"), "script", "once", struct{}{}, nil)
	assert.True(t, errors.Is(err, ErrContractExists))

	contracts, err := e.h.Contracts(e.ctx)
	assert.NoError(t, err)
	assert.Equal(t, len(contracts), 1)
	assert.Equal(t, contracts[e.h.ContractAddress("once")].Label, "once")
}

func TestBlockHeightAdvancesPerTransaction(t *testing.T) {
	e := newTestEnv(t)
	c := e.instantiate(t, "c")
	alice := e.h.API().Account("alice")
	r1, err := e.h.Execute(e.ctx, alice, c, scriptMsg{}, nil)
	assert.NoError(t, err)
	r2, err := e.h.Execute(e.ctx, alice, c, scriptMsg{}, nil)
	assert.NoError(t, err)
	assert.Equal(t, r2.Height, r1.Height+1)
	assert.That(t, r1.RunID != r2.RunID)
}
