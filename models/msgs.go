package models

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var ErrUnknownMsg = errors.New("unknown message variant")

// SwapVenue binds a venue name to its adapter contract
type SwapVenue struct {
	Name                   string `json:"name"`
	AdapterContractAddress string `json:"adapter_contract_address"`
}

// EntryPointInstantiateMsg configures the entry point contract
type EntryPointInstantiateMsg struct {
	SwapVenues                 []SwapVenue `json:"swap_venues"`
	IbcTransferContractAddress string      `json:"ibc_transfer_contract_address"`
}

// SwapAndAction is the main pipeline message: swap, then act on the output
type SwapAndAction struct {
	SentAsset        *asset.Asset `json:"sent_asset,omitempty"`
	UserSwap         Swap         `json:"user_swap"`
	MinAsset         asset.Asset  `json:"min_asset"`
	TimeoutTimestamp uint64       `json:"timeout_timestamp"`
	PostSwapAction   Action       `json:"post_swap_action"`
	Affiliates       []Affiliate  `json:"affiliates"`
}

// SwapAndActionWithRecover is SwapAndAction that returns the input to
// RecoveryAddr instead of failing
type SwapAndActionWithRecover struct {
	SwapAndAction
	RecoveryAddr string `json:"recovery_addr"`
}

// UserSwapMsg is the self-call that runs the user swap
type UserSwapMsg struct {
	Swap           Swap        `json:"swap"`
	MinAsset       asset.Asset `json:"min_asset"`
	RemainingAsset asset.Asset `json:"remaining_asset"`
	Affiliates     []Affiliate `json:"affiliates"`
}

// PostSwapActionMsg is the self-call that forwards the swap output
type PostSwapActionMsg struct {
	MinAsset         asset.Asset `json:"min_asset"`
	TimeoutTimestamp uint64      `json:"timeout_timestamp"`
	PostSwapAction   Action      `json:"post_swap_action"`
	ExactOut         bool        `json:"exact_out"`
}

// ActionMsg performs an action on the input without swapping
type ActionMsg struct {
	SentAsset        *asset.Asset `json:"sent_asset,omitempty"`
	TimeoutTimestamp uint64       `json:"timeout_timestamp"`
	Action           Action       `json:"action"`
	ExactOut         bool         `json:"exact_out"`
	MinAsset         *asset.Asset `json:"min_asset,omitempty"`
}

// ActionWithRecover is ActionMsg that returns the input to RecoveryAddr
// instead of failing
type ActionWithRecover struct {
	ActionMsg
	RecoveryAddr string `json:"recovery_addr"`
}

// EntryPointExecuteMsg is the entry point execute union type
type EntryPointExecuteMsg struct {
	SwapAndAction            *SwapAndAction            `json:"swap_and_action,omitempty"`
	SwapAndActionWithRecover *SwapAndActionWithRecover `json:"swap_and_action_with_recover,omitempty"`
	UserSwap                 *UserSwapMsg              `json:"user_swap,omitempty"`
	PostSwapAction           *PostSwapActionMsg        `json:"post_swap_action,omitempty"`
	Action                   *ActionMsg                `json:"action,omitempty"`
	ActionWithRecover        *ActionWithRecover        `json:"action_with_recover,omitempty"`
	Receive                  *chain.Cw20ReceiveMsg     `json:"receive,omitempty"`
}

// Cw20HookMsg is the payload of a cw20 send to the entry point. The sent
// asset is taken from the receive hook itself.
type Cw20HookMsg struct {
	SwapAndAction            *SwapAndAction            `json:"swap_and_action,omitempty"`
	SwapAndActionWithRecover *SwapAndActionWithRecover `json:"swap_and_action_with_recover,omitempty"`
	Action                   *ActionMsg                `json:"action,omitempty"`
	ActionWithRecover        *ActionWithRecover        `json:"action_with_recover,omitempty"`
}

// EntryPointQueryMsg is the entry point query union type
type EntryPointQueryMsg struct {
	SwapVenueAdapterContract   *SwapVenueAdapterContractQuery `json:"swap_venue_adapter_contract,omitempty"`
	IbcTransferAdapterContract *struct{}                      `json:"ibc_transfer_adapter_contract,omitempty"`
	BlockedContractAddress     *BlockedContractAddressQuery   `json:"blocked_contract_address,omitempty"`
	RecoverTempStorage         *struct{}                      `json:"recover_temp_storage,omitempty"`
}

type SwapVenueAdapterContractQuery struct {
	Name string `json:"name"`
}

type BlockedContractAddressQuery struct {
	Address string `json:"address"`
}

// RecoverTempStorage is the snapshot a recovery returns on failure
type RecoverTempStorage struct {
	Assets       []asset.Asset `json:"assets"`
	RecoveryAddr string        `json:"recovery_addr"`
}

// VenueExecuteMsg is the swap venue adapter execute union type
type VenueExecuteMsg struct {
	Swap             *VenueSwap            `json:"swap,omitempty"`
	Receive          *chain.Cw20ReceiveMsg `json:"receive,omitempty"`
	CreatePool       *CreatePool           `json:"create_pool,omitempty"`
	ProvideLiquidity *ProvideLiquidity     `json:"provide_liquidity,omitempty"`
}

type VenueSwap struct {
	Operations []SwapOperation `json:"operations"`
}

// CreatePool opens a pool funded by exactly the two attached coins
type CreatePool struct {
	FeeBps uint32 `json:"fee_bps"`
}

// ProvideLiquidity adds the two attached coins to an existing pool
type ProvideLiquidity struct {
	PoolID string `json:"pool_id"`
}

// VenueInstantiateMsg configures a swap venue adapter
type VenueInstantiateMsg struct {
	EntryPointContractAddress string `json:"entry_point_contract_address"`
}

// VenueQueryMsg is the swap venue adapter query union type
type VenueQueryMsg struct {
	SimulateSwapExactAssetIn              *SimulateSwapExactAssetIn      `json:"simulate_swap_exact_asset_in,omitempty"`
	SimulateSwapExactAssetOut             *SimulateSwapExactAssetOut     `json:"simulate_swap_exact_asset_out,omitempty"`
	SimulateSwapExactAssetInWithMetadata  *SimulateSwapExactAssetInMeta  `json:"simulate_swap_exact_asset_in_with_metadata,omitempty"`
	SimulateSwapExactAssetOutWithMetadata *SimulateSwapExactAssetOutMeta `json:"simulate_swap_exact_asset_out_with_metadata,omitempty"`
	SimulateSmartSwapExactAssetIn         *SimulateSmartSwapExactAssetIn `json:"simulate_smart_swap_exact_asset_in,omitempty"`
	Pool                                  *PoolQuery                     `json:"pool,omitempty"`
}

type SimulateSwapExactAssetIn struct {
	AssetIn        asset.Asset     `json:"asset_in"`
	SwapOperations []SwapOperation `json:"swap_operations"`
}

type SimulateSwapExactAssetOut struct {
	AssetOut       asset.Asset     `json:"asset_out"`
	SwapOperations []SwapOperation `json:"swap_operations"`
}

type SimulateSwapExactAssetInMeta struct {
	AssetIn          asset.Asset     `json:"asset_in"`
	SwapOperations   []SwapOperation `json:"swap_operations"`
	IncludeSpotPrice bool            `json:"include_spot_price"`
}

type SimulateSwapExactAssetOutMeta struct {
	AssetOut         asset.Asset     `json:"asset_out"`
	SwapOperations   []SwapOperation `json:"swap_operations"`
	IncludeSpotPrice bool            `json:"include_spot_price"`
}

type SimulateSmartSwapExactAssetIn struct {
	AssetIn asset.Asset `json:"asset_in"`
	Routes  []Route     `json:"routes"`
}

type PoolQuery struct {
	PoolID string `json:"pool_id"`
}

// SimulateSwapExactAssetInResponse carries the output and, when asked for, the spot price
type SimulateSwapExactAssetInResponse struct {
	AssetOut  asset.Asset      `json:"asset_out"`
	SpotPrice *decimal.Decimal `json:"spot_price,omitempty"`
}

// SimulateSwapExactAssetOutResponse carries the required input and, when asked for, the spot price
type SimulateSwapExactAssetOutResponse struct {
	AssetIn   asset.Asset      `json:"asset_in"`
	SpotPrice *decimal.Decimal `json:"spot_price,omitempty"`
}

// IbcTransferMsg asks the IBC adapter to send Coin with Info
type IbcTransferMsg struct {
	Info             IBCInfo    `json:"info"`
	Coin             chain.Coin `json:"coin"`
	TimeoutTimestamp uint64     `json:"timeout_timestamp"`
}

// IbcAdapterInstantiateMsg configures the IBC transfer adapter
type IbcAdapterInstantiateMsg struct {
	EntryPointContractAddress string `json:"entry_point_contract_address"`
}

// IbcAdapterExecuteMsg is the IBC adapter execute union type
type IbcAdapterExecuteMsg struct {
	IbcTransfer *IbcTransferMsg `json:"ibc_transfer,omitempty"`
}

// IbcAdapterQueryMsg is the IBC adapter query union type
type IbcAdapterQueryMsg struct {
	InProgressIbcTransfer *InProgressIbcTransferQuery `json:"in_progress_ibc_transfer,omitempty"`
	InFlightTransfer      *struct{}                   `json:"in_flight_transfer,omitempty"`
}

type InProgressIbcTransferQuery struct {
	ChannelID  string `json:"channel_id"`
	SequenceID uint64 `json:"sequence_id"`
}

// InProgressIbcTransfer is one row of the correlation table
type InProgressIbcTransfer struct {
	RecoverAddress string     `json:"recover_address"`
	ChannelID      string     `json:"channel_id"`
	Coin           chain.Coin `json:"coin"`
}

// Raw marshals v for use as a wasm execute or query payload.
func Raw(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
