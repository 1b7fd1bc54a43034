package host

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// run carries the state of one transaction while messages are dispatched.
type run struct {
	h     *Host
	ctx   context.Context
	id    string
	block chain.BlockInfo

	events []chain.Event
	trace  []Dispatched
	data   []byte
}

func (h *Host) newRun(ctx context.Context, id string, height uint64) *run {
	return &run{
		h:   h,
		ctx: ctx,
		id:  id,
		block: chain.BlockInfo{
			Height:  height,
			Time:    uint64(h.clock().UnixNano()),
			ChainID: h.chainID,
		},
	}
}

func (r *run) env(contract string) chain.Env {
	return chain.Env{Block: r.block, Contract: chain.ContractInfo{Address: contract}}
}

func contractPrefix(address string) []byte {
	return []byte("contracts/" + address + "/")
}

func (r *run) deps(kv store.KV, contract string) Deps {
	return Deps{
		Storage: store.Prefix(kv, contractPrefix(contract)),
		Querier: &querier{r: r, kv: kv},
		API:     r.h.api,
	}
}

// executeContract moves funds to contract, runs its Execute and then every
// message it returned.
func (r *run) executeContract(kv store.KV, sender, contract string, funds chain.Coins, msg json.RawMessage, depth int) ([]byte, []chain.Event, error) {
	c, err := r.h.contract(kv, contract)
	if err != nil {
		return nil, nil, err
	}
	var events []chain.Event
	if !funds.IsZero() {
		if err := bankSend(kv, sender, contract, funds); err != nil {
			return nil, nil, err
		}
		events = append(events, transferEvent(sender, contract, funds))
	}
	resp, err := c.Execute(r.ctx, r.deps(kv, contract), r.env(contract), chain.Info{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, nil, fmt.Errorf("execute %s: %w", contract, err)
	}
	events = append(events, wasmEvents("execute", contract, resp)...)
	data, subEvents, err := r.handleResponse(kv, contract, resp, depth)
	if err != nil {
		return nil, nil, err
	}
	return data, append(events, subEvents...), nil
}

// handleResponse dispatches resp's messages in order. A message's own
// messages run before the next sibling.
func (r *run) handleResponse(kv store.KV, contract string, resp *chain.Response, depth int) ([]byte, []chain.Event, error) {
	data := resp.Data
	var events []chain.Event
	for _, sub := range resp.Messages {
		replyData, subEvents, err := r.dispatchSub(kv, contract, sub, depth+1)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, subEvents...)
		if replyData != nil {
			data = replyData
		}
	}
	return data, events, nil
}

// dispatchSub runs one sub-message. Messages that want a reply run in a
// branch so that a failure can be handed to the caller with the failed
// message's writes rolled back.
func (r *run) dispatchSub(kv store.KV, contract string, sub chain.SubMsg, depth int) ([]byte, []chain.Event, error) {
	if sub.ReplyOn == chain.ReplyNever {
		_, events, err := r.dispatch(kv, contract, sub, depth)
		return nil, events, err
	}

	branch := store.NewBranch(kv)
	traceLen := len(r.trace)
	data, events, err := r.dispatch(branch, contract, sub, depth)
	if err == nil {
		if werr := branch.Write(); werr != nil {
			return nil, nil, werr
		}
	} else {
		r.trace = r.trace[:traceLen]
		events = nil
	}

	if !sub.ReplyOn.Matches(err != nil) {
		return nil, events, err
	}

	reply := chain.Reply{ID: sub.ID}
	if err != nil {
		Logger.Debug().Str("run_id", r.id).Str("contract", contract).Uint64("reply_id", sub.ID).Err(err).Msg("sub-message failed, replying")
		reply.Result.Err = err.Error()
	} else {
		reply.Result.Ok = &chain.SubMsgResponse{Events: events, Data: data}
	}

	c, err := r.h.contract(kv, contract)
	if err != nil {
		return nil, nil, err
	}
	replier, ok := c.(Replier)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoReplyHandler, contract)
	}
	resp, err := replier.Reply(r.ctx, r.deps(kv, contract), r.env(contract), reply)
	if err != nil {
		return nil, nil, fmt.Errorf("reply %s: %w", contract, err)
	}
	events = append(events, wasmEvents("reply", contract, resp)...)
	replyData, replyEvents, err := r.handleResponse(kv, contract, resp, depth)
	if err != nil {
		return nil, nil, err
	}
	return replyData, append(events, replyEvents...), nil
}

// dispatch runs a single message sent by sender.
func (r *run) dispatch(kv store.KV, sender string, sub chain.SubMsg, depth int) ([]byte, []chain.Event, error) {
	if depth > maxCallDepth {
		return nil, nil, ErrCallDepth
	}
	msg := sub.Msg
	r.trace = append(r.trace, Dispatched{Depth: depth, Stage: sub.Stage, Sender: sender, Msg: msg})

	_, span := r.h.tracer.Start(r.ctx, "host.dispatch", trace.WithAttributes(
		attribute.String("run_id", r.id),
		attribute.String("stage", string(sub.Stage)),
		attribute.String("kind", msg.Kind()),
		attribute.Int("depth", depth),
	))
	defer span.End()
	r.h.metrics.messages.Add(r.ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(sub.Stage)),
		attribute.String("kind", msg.Kind()),
	))
	Logger.Debug().
		Str("run_id", r.id).
		Str("stage", string(sub.Stage)).
		Str("kind", msg.Kind()).
		Str("sender", sender).
		Int("depth", depth).
		Msg("dispatching message")

	data, events, err := r.dispatchMsg(kv, sender, msg, depth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return data, events, err
}

func (r *run) dispatchMsg(kv store.KV, sender string, msg chain.Msg, depth int) ([]byte, []chain.Event, error) {
	switch {
	case msg.BankSend != nil:
		send := msg.BankSend
		if err := r.h.api.Validate(send.ToAddress); err != nil {
			return nil, nil, err
		}
		coins, err := send.Amount.NonZero()
		if err != nil {
			return nil, nil, err
		}
		if len(coins) == 0 {
			return nil, nil, fmt.Errorf("%w: bank send without coins", ErrInvalidMsg)
		}
		if err := bankSend(kv, sender, send.ToAddress, coins); err != nil {
			return nil, nil, err
		}
		return nil, []chain.Event{transferEvent(sender, send.ToAddress, coins)}, nil

	case msg.WasmExecute != nil:
		exec := msg.WasmExecute
		funds, err := exec.Funds.NonZero()
		if err != nil {
			return nil, nil, err
		}
		return r.executeContract(kv, sender, exec.ContractAddr, funds, exec.Msg, depth)

	case msg.IbcTransfer != nil:
		return r.ibcSend(kv, sender, *msg.IbcTransfer)

	default:
		return nil, nil, fmt.Errorf("%w: empty message", ErrInvalidMsg)
	}
}

func (r *run) query(kv store.KV, contract string, msg json.RawMessage) (json.RawMessage, error) {
	c, err := r.h.contract(kv, contract)
	if err != nil {
		return nil, err
	}
	q, ok := c.(Queryable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotQueryable, contract)
	}
	ro := store.ReadOnly(kv)
	out, err := q.Query(r.ctx, r.deps(ro, contract), r.env(contract), msg)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", contract, err)
	}
	return out, nil
}

func (r *run) sudo(kv store.KV, contract string, msg chain.SudoMsg) error {
	c, err := r.h.contract(kv, contract)
	if err != nil {
		return err
	}
	s, ok := c.(Sudoer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSudoHandler, contract)
	}
	resp, err := s.Sudo(r.ctx, r.deps(kv, contract), r.env(contract), msg)
	if err != nil {
		return fmt.Errorf("sudo %s: %w", contract, err)
	}
	_, events, err := r.handleResponse(kv, contract, resp, 0)
	if err != nil {
		return err
	}
	r.events = append(r.events, wasmEvents("sudo", contract, resp)...)
	r.events = append(r.events, events...)
	return nil
}

// wasmEvents turns a contract response into events tagged with the contract address.
func wasmEvents(entry, contract string, resp *chain.Response) []chain.Event {
	attrs := append([]chain.Attribute{
		{Key: "_contract_address", Value: contract},
		{Key: "_entry", Value: entry},
	}, resp.Attributes...)
	out := []chain.Event{{Type: "wasm", Attributes: attrs}}
	for _, ev := range resp.Events {
		custom := chain.Event{Type: "wasm-" + ev.Type}
		custom.Attributes = append([]chain.Attribute{{Key: "_contract_address", Value: contract}}, ev.Attributes...)
		out = append(out, custom)
	}
	return out
}

// querier implements QueryClient over the transaction's current view.
type querier struct {
	r  *run
	kv store.KV
}

func (q *querier) Balance(address, denom string) (chain.Coin, error) {
	amount, err := bankBalance(q.kv, address, denom)
	return chain.Coin{Denom: denom, Amount: amount}, err
}

func (q *querier) AllBalances(address string) (chain.Coins, error) {
	return bankAllBalances(q.kv, address)
}

func (q *querier) QuerySmart(contract string, msg any, out any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	resp, err := q.r.query(q.kv, contract, raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode query response from %s: %w", contract, err)
	}
	return nil
}
