package entrypoint

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTimeout              = errors.New("timeout timestamp less than current timestamp")
	ErrDuplicateSwapVenue   = errors.New("duplicate swap venue name provided")
	ErrSwapVenueNotFound    = errors.New("swap venue not found")
	ErrRecoveryInProgress   = errors.New("a recovery is already in progress")
	ErrReplyID              = errors.New("reply id not valid")
	ErrNoCw20ReceiveMsg     = errors.New("no cw20 receive msg provided")
	ErrNonNativeIbcTransfer = errors.New("ibc transfer adapter only supports native coins, cw20 ibc transfers are contract calls")

	// IBC fees
	ErrIBCFeeDenomDiffersFromAssetReceived = errors.New("ibc fee denom differs from asset received without a fee swap to convert")
	ErrFeeSwapWithoutIbcFees               = errors.New("fee swap not allowed: no ibc fees provided")
	ErrFeeSwapAssetInDenomMismatch         = errors.New("fee swap asset in denom differs from asset sent to contract")

	// User swap
	ErrUserSwapAssetInDenomMismatch = errors.New("user swap asset in denom differs from asset sent to contract")
	ErrNoRefundAddress              = errors.New("no refund address provided for swap exact asset out user swap")

	// Post swap action
	ErrReceivedLessAssetFromSwapsThanMinAsset = errors.New("received less asset from swaps than minimum asset required")
	ErrContractCallAddressBlocked             = errors.New("contract call address cannot be the entry point or adapter contracts")

	// Action
	ErrNoMinAssetProvided             = errors.New("no minimum asset provided with exact out action")
	ErrActionDenomMismatch            = errors.New("sent asset and min asset denoms do not match with exact out action")
	ErrRemainingAssetLessThanMinAsset = errors.New("remaining asset less than min asset with exact out action")
)
