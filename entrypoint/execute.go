package entrypoint

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

// resolveSent returns the asset the call brought in. Without an explicit
// sent asset exactly one native coin must be attached. A cw20 sent asset is
// trusted on the self-call made by a recover wrapper, which already checked
// it and holds the tokens.
func resolveSent(deps host.Deps, env chain.Env, info chain.Info, sent *asset.Asset) (asset.Asset, error) {
	if sent == nil {
		return asset.FromFunds(info)
	}
	if sent.Cw20 != nil && info.Sender == env.Contract.Address {
		return sent.Clone(), nil
	}
	if err := sent.Validate(deps.API, info); err != nil {
		return asset.Asset{}, err
	}
	return sent.Clone(), nil
}

func checkTimeout(env chain.Env, timeout uint64) error {
	if env.Block.Time > timeout {
		return ErrTimeout
	}
	return nil
}

func (EntryPoint) swapAndAction(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.SwapAndAction) (*chain.Response, error) {
	resp := chain.NewResponse().AddAttribute("action", "execute_swap_and_action")

	remaining, err := resolveSent(deps, env, info, msg.SentAsset)
	if err != nil {
		return nil, err
	}
	if err := checkTimeout(env, msg.TimeoutTimestamp); err != nil {
		return nil, err
	}
	if err := msg.UserSwap.Validate(); err != nil {
		return nil, err
	}

	pre, err := balanceOf(deps, env.Contract.Address, msg.MinAsset)
	if err != nil {
		return nil, err
	}
	if err := preSwapOutAssetAmount.Save(deps.Storage, pre); err != nil {
		return nil, err
	}

	if ibc := msg.PostSwapAction.IBCTransfer; ibc != nil {
		if err := handleIbcTransferFees(deps, *ibc, &remaining, resp); err != nil {
			return nil, err
		}
	}

	userSwap := msg.UserSwap
	if smart := userSwap.SmartSwapExactAssetIn; smart != nil {
		if err := smart.Rebalance(remaining.Amount()); err != nil {
			return nil, err
		}
	}

	self := env.Contract.Address
	userSwapMsg, err := chain.NewWasmExecute(self, models.EntryPointExecuteMsg{UserSwap: &models.UserSwapMsg{
		Swap:           userSwap,
		MinAsset:       msg.MinAsset,
		RemainingAsset: remaining,
		Affiliates:     msg.Affiliates,
	}})
	if err != nil {
		return nil, err
	}
	resp.AddMessage(chain.StageUserSwap, userSwapMsg).AddAttribute("action", "dispatch_user_swap")

	postSwapMsg, err := chain.NewWasmExecute(self, models.EntryPointExecuteMsg{PostSwapAction: &models.PostSwapActionMsg{
		MinAsset:         msg.MinAsset,
		TimeoutTimestamp: msg.TimeoutTimestamp,
		PostSwapAction:   msg.PostSwapAction,
		ExactOut:         userSwap.IsExactOut(),
	}})
	if err != nil {
		return nil, err
	}
	resp.AddMessage(chain.StagePostAction, postSwapMsg).AddAttribute("action", "dispatch_post_swap_action")

	Logger.Debug().
		Str("remaining", remaining.String()).
		Str("min_asset", msg.MinAsset.String()).
		Str("venue", userSwap.VenueName()).
		Msg("swap and action dispatched")
	return resp, nil
}

func (EntryPoint) action(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.ActionMsg) (*chain.Response, error) {
	resp := chain.NewResponse().AddAttribute("action", "execute_action")

	remaining, err := resolveSent(deps, env, info, msg.SentAsset)
	if err != nil {
		return nil, err
	}
	if err := checkTimeout(env, msg.TimeoutTimestamp); err != nil {
		return nil, err
	}

	if ibc := msg.Action.IBCTransfer; ibc != nil {
		if err := handleIbcTransferFees(deps, *ibc, &remaining, resp); err != nil {
			return nil, err
		}
	}

	actionAsset := remaining
	if msg.ExactOut {
		if msg.MinAsset == nil {
			return nil, ErrNoMinAssetProvided
		}
		if remaining.Denom() != msg.MinAsset.Denom() {
			return nil, ErrActionDenomMismatch
		}
		if remaining.Amount().LT(msg.MinAsset.Amount()) {
			return nil, ErrRemainingAssetLessThanMinAsset
		}
		actionAsset = msg.MinAsset.Clone()
	}

	return dispatchAction(deps, msg.Action, actionAsset, msg.TimeoutTimestamp, resp)
}

func (EntryPoint) swapAndActionWithRecover(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.SwapAndActionWithRecover) (*chain.Response, error) {
	inner := msg.SwapAndAction
	return wrapWithRecover(deps, env, info, inner.SentAsset, msg.RecoveryAddr, models.EntryPointExecuteMsg{SwapAndAction: &inner})
}

func (EntryPoint) actionWithRecover(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.ActionWithRecover) (*chain.Response, error) {
	inner := msg.ActionMsg
	return wrapWithRecover(deps, env, info, inner.SentAsset, msg.RecoveryAddr, models.EntryPointExecuteMsg{Action: &inner})
}
