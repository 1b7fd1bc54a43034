package entrypoint

import (
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

var basisPointsDenominator = chain.NewAmount(10_000)

// handleIbcTransferFees deducts the IBC fee from remaining, either by
// swapping part of it into the fee denom or by taking the fee directly, and
// queues the fee payment to the IBC transfer adapter.
func handleIbcTransferFees(deps host.Deps, ibc models.IBCTransfer, remaining *asset.Asset, resp *chain.Response) error {
	var feeCoin *chain.Coin
	if ibc.IBCInfo.Fee != nil {
		c, err := ibc.IBCInfo.Fee.OneCoin()
		if err != nil {
			return err
		}
		feeCoin = &c
	}

	switch {
	case ibc.FeeSwap != nil:
		if feeCoin == nil {
			return ErrFeeSwapWithoutIbcFees
		}
		msg, err := feeSwapMsg(deps, *ibc.FeeSwap, remaining, *feeCoin)
		if err != nil {
			return err
		}
		resp.AddMessage(chain.StageFeeSwap, msg).AddAttribute("action", "dispatch_fee_swap")
	case feeCoin != nil:
		if remaining.Denom() != feeCoin.Denom {
			return ErrIBCFeeDenomDiffersFromAssetReceived
		}
		if err := remaining.Sub(feeCoin.Amount); err != nil {
			return fmt.Errorf("ibc fee exceeds the asset received: %w", err)
		}
	}

	if feeCoin == nil {
		return nil
	}
	adapter, err := ibcTransferContractAddress.Load(deps.Storage)
	if err != nil {
		return err
	}
	resp.AddMessage(chain.StageIbcFee, chain.NewBankSend(adapter, *feeCoin)).
		AddAttribute("action", "dispatch_ibc_fee_bank_send")
	return nil
}

// feeSwapMsg builds the swap that buys exactly the fee coin and deducts its
// quoted input from remaining.
func feeSwapMsg(deps host.Deps, feeSwap models.SwapExactAssetOut, remaining *asset.Asset, feeCoin chain.Coin) (chain.Msg, error) {
	if err := models.ValidateSwapOperations(feeSwap.Operations, remaining.Denom(), feeCoin.Denom); err != nil {
		return chain.Msg{}, err
	}
	venue, err := loadSwapVenue(deps.Storage, feeSwap.SwapVenueName)
	if err != nil {
		return chain.Msg{}, err
	}
	in, err := querySwapAssetIn(deps, venue, feeSwap.Operations, asset.FromCoin(feeCoin))
	if err != nil {
		return chain.Msg{}, err
	}
	if in.Denom() != remaining.Denom() {
		return chain.Msg{}, ErrFeeSwapAssetInDenomMismatch
	}
	if err := remaining.Sub(in.Amount()); err != nil {
		return chain.Msg{}, fmt.Errorf("fee swap needs more than the asset received: %w", err)
	}
	return in.IntoWasmMsg(venue, models.VenueExecuteMsg{Swap: &models.VenueSwap{Operations: feeSwap.Operations}})
}

type affiliateFee struct {
	address string
	fee     asset.Asset
}

// affiliateFees computes min_asset * bps / 10000 per affiliate, truncating.
// Zero fees are dropped.
func affiliateFees(deps host.Deps, minAsset asset.Asset, affiliates []models.Affiliate) ([]affiliateFee, chain.Amount, error) {
	total := chain.ZeroAmount()
	var out []affiliateFee
	for _, a := range affiliates {
		if err := deps.API.Validate(a.Address); err != nil {
			return nil, chain.Amount{}, err
		}
		amount, err := minAsset.Amount().MulRatio(a.BasisPointsFee, basisPointsDenominator)
		if err != nil {
			return nil, chain.Amount{}, err
		}
		if amount.IsZero() {
			continue
		}
		if total, err = total.Add(amount); err != nil {
			return nil, chain.Amount{}, err
		}
		out = append(out, affiliateFee{address: a.Address, fee: minAsset.WithAmount(amount)})
	}
	return out, total, nil
}
