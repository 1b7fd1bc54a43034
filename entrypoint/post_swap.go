package entrypoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

// postSwapAction is the second self-call. It measures what the swaps
// delivered against the snapshot taken before them and forwards it.
func (EntryPoint) postSwapAction(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.PostSwapActionMsg) (*chain.Response, error) {
	if info.Sender != env.Contract.Address {
		return nil, ErrUnauthorized
	}
	if err := checkTimeout(env, msg.TimeoutTimestamp); err != nil {
		return nil, err
	}
	resp := chain.NewResponse().AddAttribute("action", "execute_post_swap_action")

	pre, err := preSwapOutAssetAmount.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	post, err := balanceOf(deps, env.Contract.Address, msg.MinAsset)
	if err != nil {
		return nil, err
	}
	received, err := post.Sub(pre)
	if err != nil {
		return nil, fmt.Errorf("balance dropped during swap: %w", err)
	}
	if received.LT(msg.MinAsset.Amount()) {
		return nil, fmt.Errorf("%w: received %s, min %s", ErrReceivedLessAssetFromSwapsThanMinAsset, received, msg.MinAsset.Amount())
	}

	out := msg.MinAsset.WithAmount(received)
	if msg.ExactOut {
		out = msg.MinAsset.Clone()
	}
	resp.AddAttribute("post_swap_action_amount_out", out.Amount().String()).
		AddAttribute("post_swap_action_denom_out", out.Denom())

	return dispatchAction(deps, msg.PostSwapAction, out, msg.TimeoutTimestamp, resp)
}

// dispatchAction queues the message that delivers out according to action.
func dispatchAction(deps host.Deps, action models.Action, out asset.Asset, timeout uint64, resp *chain.Response) (*chain.Response, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	switch {
	case action.Transfer != nil:
		to := action.Transfer.ToAddress
		if err := deps.API.Validate(to); err != nil {
			return nil, err
		}
		msg, err := out.Transfer(to)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageTransfer, msg).AddAttribute("action", "dispatch_action_transfer")

	case action.IBCTransfer != nil:
		info := action.IBCTransfer.IBCInfo
		if err := deps.API.Validate(info.RecoverAddress); err != nil {
			return nil, err
		}
		coin, err := out.Coin()
		if err != nil {
			return nil, ErrNonNativeIbcTransfer
		}
		adapter, err := ibcTransferContractAddress.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		msg, err := chain.NewWasmExecute(adapter, models.IbcAdapterExecuteMsg{IbcTransfer: &models.IbcTransferMsg{
			Info:             info,
			Coin:             coin,
			TimeoutTimestamp: timeout,
		}}, coin)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageTransfer, msg).AddAttribute("action", "dispatch_action_ibc_transfer")

	case action.ContractCall != nil:
		call := action.ContractCall
		if err := deps.API.Validate(call.ContractAddress); err != nil {
			return nil, err
		}
		blocked, err := isBlocked(deps.Storage, call.ContractAddress)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("%w: %s", ErrContractCallAddressBlocked, call.ContractAddress)
		}
		msg, err := out.IntoWasmMsg(call.ContractAddress, json.RawMessage(call.Msg))
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageTransfer, msg).AddAttribute("action", "dispatch_action_contract_call")
	}

	Logger.Debug().Str("asset", out.String()).Msg("action dispatched")
	return resp, nil
}
