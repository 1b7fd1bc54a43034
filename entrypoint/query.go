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

func (EntryPoint) Query(ctx context.Context, deps host.Deps, env chain.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg models.EntryPointQueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}

	switch {
	case msg.SwapVenueAdapterContract != nil:
		addr, err := loadSwapVenue(deps.Storage, msg.SwapVenueAdapterContract.Name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(addr)
	case msg.IbcTransferAdapterContract != nil:
		addr, err := ibcTransferContractAddress.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(addr)
	case msg.BlockedContractAddress != nil:
		blocked, err := isBlocked(deps.Storage, msg.BlockedContractAddress.Address)
		if err != nil {
			return nil, err
		}
		return json.Marshal(blocked)
	case msg.RecoverTempStorage != nil:
		rec, ok, err := recoverTempStorage.MayLoad(deps.Storage)
		if err != nil {
			return nil, err
		}
		if !ok {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(rec)
	default:
		return nil, models.ErrUnknownMsg
	}
}

// balanceOf returns how much of a's denom address holds.
func balanceOf(deps host.Deps, address string, a asset.Asset) (chain.Amount, error) {
	switch {
	case a.Native != nil:
		coin, err := deps.Querier.Balance(address, a.Native.Denom)
		if err != nil {
			return chain.Amount{}, err
		}
		return coin.Amount, nil
	case a.Cw20 != nil:
		var out chain.Cw20BalanceResponse
		err := deps.Querier.QuerySmart(a.Cw20.Address, chain.Cw20QueryMsg{
			Balance: &chain.Cw20BalanceQuery{Address: address},
		}, &out)
		if err != nil {
			return chain.Amount{}, err
		}
		return out.Balance, nil
	default:
		return chain.Amount{}, asset.ErrInvalidAsset
	}
}
