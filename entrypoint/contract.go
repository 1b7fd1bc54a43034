// Package entrypoint is the swap-and-action orchestrator. One call swaps the
// incoming asset on a registered venue and then transfers, bridges or hands
// the output to another contract. The wrapped variants return the input to a
// recovery address instead of failing.
package entrypoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// CodeName is the name the entry point code is stored under in the host.
const CodeName = "entry-point"

// RecoverReplyID is the sub-message id of the wrapped call in the recover variants.
const RecoverReplyID uint64 = 1

var Logger zerolog.Logger

var outcomes metric.Int64Counter

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "entrypoint").Logger()

	var err error
	outcomes, err = otel.Meter("github.com/Cogwheel-Validator/spectra-entry-point/entrypoint").Int64Counter(
		"entrypoint.outcomes",
		metric.WithDescription("Entry point calls by operation and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		Logger.Error().Err(err).Msg("failed to create outcome counter")
	}
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// EntryPoint is the orchestrator contract.
type EntryPoint struct{}

var (
	_ host.Contract     = EntryPoint{}
	_ host.Instantiater = EntryPoint{}
	_ host.Queryable    = EntryPoint{}
	_ host.Replier      = EntryPoint{}
)

func (EntryPoint) Instantiate(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.EntryPointInstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	resp := chain.NewResponse().AddAttribute("action", "instantiate")

	if err := blockedContractAddresses.Save(deps.Storage, store.StringKey(env.Contract.Address), struct{}{}); err != nil {
		return nil, err
	}

	for _, venue := range msg.SwapVenues {
		if err := deps.API.Validate(venue.AdapterContractAddress); err != nil {
			return nil, err
		}
		exists, err := swapVenueMap.Has(deps.Storage, store.StringKey(venue.Name))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSwapVenue, venue.Name)
		}
		if err := swapVenueMap.Save(deps.Storage, store.StringKey(venue.Name), venue.AdapterContractAddress); err != nil {
			return nil, err
		}
		if err := blockedContractAddresses.Save(deps.Storage, store.StringKey(venue.AdapterContractAddress), struct{}{}); err != nil {
			return nil, err
		}
		resp.AddAttribute("action", "add_swap_venue").
			AddAttribute("name", venue.Name).
			AddAttribute("contract_address", venue.AdapterContractAddress)
	}

	if err := deps.API.Validate(msg.IbcTransferContractAddress); err != nil {
		return nil, err
	}
	if err := ibcTransferContractAddress.Save(deps.Storage, msg.IbcTransferContractAddress); err != nil {
		return nil, err
	}
	if err := blockedContractAddresses.Save(deps.Storage, store.StringKey(msg.IbcTransferContractAddress), struct{}{}); err != nil {
		return nil, err
	}
	resp.AddAttribute("action", "add_ibc_transfer_adapter").
		AddAttribute("contract_address", msg.IbcTransferContractAddress)

	Logger.Info().
		Str("contract", env.Contract.Address).
		Int("venues", len(msg.SwapVenues)).
		Str("ibc_adapter", msg.IbcTransferContractAddress).
		Msg("entry point instantiated")
	return resp, nil
}

func (e EntryPoint) Execute(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.EntryPointExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}

	var (
		op   string
		resp *chain.Response
		err  error
	)
	switch {
	case msg.Receive != nil:
		op = "receive"
		resp, err = e.receive(ctx, deps, env, info, *msg.Receive)
	case msg.SwapAndAction != nil:
		op = "swap_and_action"
		resp, err = e.swapAndAction(ctx, deps, env, info, *msg.SwapAndAction)
	case msg.SwapAndActionWithRecover != nil:
		op = "swap_and_action_with_recover"
		resp, err = e.swapAndActionWithRecover(ctx, deps, env, info, *msg.SwapAndActionWithRecover)
	case msg.UserSwap != nil:
		op = "user_swap"
		resp, err = e.userSwap(ctx, deps, env, info, *msg.UserSwap)
	case msg.PostSwapAction != nil:
		op = "post_swap_action"
		resp, err = e.postSwapAction(ctx, deps, env, info, *msg.PostSwapAction)
	case msg.Action != nil:
		op = "action"
		resp, err = e.action(ctx, deps, env, info, *msg.Action)
	case msg.ActionWithRecover != nil:
		op = "action_with_recover"
		resp, err = e.actionWithRecover(ctx, deps, env, info, *msg.ActionWithRecover)
	default:
		return nil, models.ErrUnknownMsg
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		Logger.Debug().Err(err).Str("op", op).Str("sender", info.Sender).Msg("execute failed")
	}
	recordOutcome(ctx, op, outcome)
	return resp, err
}

func recordOutcome(ctx context.Context, op, outcome string) {
	if outcomes == nil {
		return
	}
	outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// receive unwraps a cw20 send. The token contract is the caller, so the
// sent asset is built from the hook rather than trusted from the payload.
func (e EntryPoint) receive(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, rcv chain.Cw20ReceiveMsg) (*chain.Response, error) {
	if len(rcv.Msg) == 0 {
		return nil, ErrNoCw20ReceiveMsg
	}
	var hook models.Cw20HookMsg
	if err := json.Unmarshal(rcv.Msg, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	sent := asset.NewCw20(info.Sender, rcv.Amount)

	switch {
	case hook.SwapAndAction != nil:
		m := *hook.SwapAndAction
		m.SentAsset = &sent
		return e.swapAndAction(ctx, deps, env, info, m)
	case hook.SwapAndActionWithRecover != nil:
		m := *hook.SwapAndActionWithRecover
		m.SentAsset = &sent
		return e.swapAndActionWithRecover(ctx, deps, env, info, m)
	case hook.Action != nil:
		m := *hook.Action
		m.SentAsset = &sent
		return e.action(ctx, deps, env, info, m)
	case hook.ActionWithRecover != nil:
		m := *hook.ActionWithRecover
		m.SentAsset = &sent
		return e.actionWithRecover(ctx, deps, env, info, m)
	default:
		return nil, models.ErrUnknownMsg
	}
}

func (EntryPoint) Reply(ctx context.Context, deps host.Deps, env chain.Env, reply chain.Reply) (*chain.Response, error) {
	switch reply.ID {
	case RecoverReplyID:
		return replySwapAndActionWithRecover(ctx, deps, reply)
	default:
		return nil, fmt.Errorf("%w: %d", ErrReplyID, reply.ID)
	}
}
