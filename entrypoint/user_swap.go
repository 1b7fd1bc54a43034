package entrypoint

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

// userSwap is the first self-call of a swap and action. It hands the
// remaining asset to the venue and pays the affiliates out of the output.
func (EntryPoint) userSwap(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, msg models.UserSwapMsg) (*chain.Response, error) {
	if info.Sender != env.Contract.Address {
		return nil, ErrUnauthorized
	}
	resp := chain.NewResponse().
		AddAttribute("action", "execute_user_swap").
		AddAttribute("denom_in", msg.RemainingAsset.Denom()).
		AddAttribute("denom_out", msg.MinAsset.Denom())

	fees, totalFees, err := affiliateFees(deps, msg.MinAsset, msg.Affiliates)
	if err != nil {
		return nil, err
	}

	swap := msg.Swap
	switch {
	case swap.SwapExactAssetIn != nil:
		s := swap.SwapExactAssetIn
		if err := models.ValidateSwapOperations(s.Operations, msg.RemainingAsset.Denom(), msg.MinAsset.Denom()); err != nil {
			return nil, err
		}
		venue, err := loadSwapVenue(deps.Storage, s.SwapVenueName)
		if err != nil {
			return nil, err
		}
		swapMsg, err := msg.RemainingAsset.IntoWasmMsg(venue, models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: s.Operations}})
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageUserSwap, swapMsg).
			AddAttribute("action", "dispatch_user_swap_exact_asset_in")

	case swap.SwapExactAssetOut != nil:
		if err := exactOutSwap(deps, *swap.SwapExactAssetOut, msg, totalFees, resp); err != nil {
			return nil, err
		}

	case swap.SmartSwapExactAssetIn != nil:
		s := swap.SmartSwapExactAssetIn
		if len(s.Routes) == 0 {
			return nil, models.ErrRoutesEmpty
		}
		venue, err := loadSwapVenue(deps.Storage, s.SwapVenueName)
		if err != nil {
			return nil, err
		}
		for _, route := range s.Routes {
			if route.OfferAsset.Denom() != msg.RemainingAsset.Denom() {
				return nil, ErrUserSwapAssetInDenomMismatch
			}
			if err := models.ValidateSwapOperations(route.Operations, msg.RemainingAsset.Denom(), msg.MinAsset.Denom()); err != nil {
				return nil, err
			}
			if route.OfferAsset.Amount().IsZero() {
				continue
			}
			swapMsg, err := route.OfferAsset.IntoWasmMsg(venue, models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: route.Operations}})
			if err != nil {
				return nil, err
			}
			resp.AddMessage(chain.StageUserSwap, swapMsg)
		}
		resp.AddAttribute("action", "dispatch_user_swap_exact_asset_in")

	default:
		return nil, models.ErrInvalidSwap
	}

	for _, f := range fees {
		transfer, err := f.fee.Transfer(f.address)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(chain.StageAffiliate, transfer).
			AddAttribute("action", "dispatch_affiliate_fee_bank_send").
			AddAttribute("address", f.address).
			AddAttribute("amount", f.fee.Amount().String())
	}
	return resp, nil
}

// exactOutSwap buys min_asset plus the affiliate fees and refunds whatever
// input the venue does not need.
func exactOutSwap(deps host.Deps, s models.SwapExactAssetOut, msg models.UserSwapMsg, totalFees chain.Amount, resp *chain.Response) error {
	if err := models.ValidateSwapOperations(s.Operations, msg.RemainingAsset.Denom(), msg.MinAsset.Denom()); err != nil {
		return err
	}
	venue, err := loadSwapVenue(deps.Storage, s.SwapVenueName)
	if err != nil {
		return err
	}

	want := msg.MinAsset.Clone()
	if err := want.Add(totalFees); err != nil {
		return err
	}
	in, err := querySwapAssetIn(deps, venue, s.Operations, want)
	if err != nil {
		return err
	}
	if in.Denom() != msg.RemainingAsset.Denom() {
		return ErrUserSwapAssetInDenomMismatch
	}
	refund, err := msg.RemainingAsset.Amount().Sub(in.Amount())
	if err != nil {
		return err
	}

	if !refund.IsZero() {
		if s.RefundAddress == nil {
			return ErrNoRefundAddress
		}
		if err := deps.API.Validate(*s.RefundAddress); err != nil {
			return err
		}
		transfer, err := msg.RemainingAsset.WithAmount(refund).Transfer(*s.RefundAddress)
		if err != nil {
			return err
		}
		resp.AddMessage(chain.StageRefund, transfer).
			AddAttribute("action", "dispatch_refund").
			AddAttribute("address", *s.RefundAddress).
			AddAttribute("amount", refund.String())
	}

	swapMsg, err := msg.RemainingAsset.WithAmount(in.Amount()).IntoWasmMsg(venue, models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: s.Operations}})
	if err != nil {
		return err
	}
	resp.AddMessage(chain.StageUserSwap, swapMsg).
		AddAttribute("action", "dispatch_user_swap_exact_asset_out")
	return nil
}

// querySwapAssetIn asks venue how much input buys out through ops.
func querySwapAssetIn(deps host.Deps, venue string, ops []models.SwapOperation, out asset.Asset) (asset.Asset, error) {
	var in asset.Asset
	err := deps.Querier.QuerySmart(venue, models.VenueQueryMsg{
		SimulateSwapExactAssetOut: &models.SimulateSwapExactAssetOut{AssetOut: out, SwapOperations: ops},
	}, &in)
	return in, err
}
