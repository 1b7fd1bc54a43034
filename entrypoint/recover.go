package entrypoint

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

// wrapWithRecover records everything the call brought in and re-enters the
// contract with inner as a sub-message that always replies. Only one
// recovery can be open at a time.
func wrapWithRecover(deps host.Deps, env chain.Env, info chain.Info, sent *asset.Asset, recoveryAddr string, inner models.EntryPointExecuteMsg) (*chain.Response, error) {
	if err := deps.API.Validate(recoveryAddr); err != nil {
		return nil, err
	}
	open, err := recoverTempStorage.Exists(deps.Storage)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrRecoveryInProgress
	}
	if sent != nil {
		if err := sent.Validate(deps.API, info); err != nil {
			return nil, err
		}
	}

	if err := recoverTempStorage.Save(deps.Storage, models.RecoverTempStorage{
		Assets:       asset.All(info, sent),
		RecoveryAddr: recoveryAddr,
	}); err != nil {
		return nil, err
	}

	msg, err := chain.NewWasmExecute(env.Contract.Address, inner, info.Funds...)
	if err != nil {
		return nil, err
	}
	op := "execute_action_with_recover"
	if inner.SwapAndAction != nil {
		op = "execute_swap_and_action_with_recover"
	}
	return chain.NewResponse().
		AddAttribute("action", op).
		AddSubMessage(chain.StageRecover, RecoverReplyID, msg, chain.ReplyAlways), nil
}

// replySwapAndActionWithRecover closes the open recovery. On failure every
// recorded asset goes back to the recovery address.
func replySwapAndActionWithRecover(ctx context.Context, deps host.Deps, reply chain.Reply) (*chain.Response, error) {
	if reply.Result.Ok != nil {
		if err := recoverTempStorage.Remove(deps.Storage); err != nil {
			return nil, err
		}
		recordOutcome(ctx, "recover_reply", "ok")
		return chain.NewResponse().AddAttribute("status", "swap_and_action_successful"), nil
	}

	rec, err := recoverTempStorage.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	resp := chain.NewResponse()
	for _, a := range rec.Assets {
		msg, err := a.Transfer(rec.RecoveryAddr)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageRecover, msg)
	}
	if err := recoverTempStorage.Remove(deps.Storage); err != nil {
		return nil, err
	}

	recordOutcome(ctx, "recover_reply", "recovered")
	Logger.Info().
		Str("recovery_addr", rec.RecoveryAddr).
		Int("assets", len(rec.Assets)).
		Str("reason", reply.Result.Err).
		Msg("wrapped call failed, returning funds")
	return resp.
		AddAttribute("status", "swap_and_action_failed").
		AddAttribute("error", reply.Result.Err), nil
}
