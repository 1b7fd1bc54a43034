package memo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

var (
	ErrNoContract   = errors.New("ibc-hooks contract address not configured")
	ErrNoOperations = errors.New("no swap operations available")
)

// WasmMemo is the top-level structure of an ibc-hooks wasm memo.
type WasmMemo struct {
	Wasm *WasmData `json:"wasm"`
}

// WasmData contains the contract call information
type WasmData struct {
	Contract string                      `json:"contract"`
	Msg      *models.EntryPointExecuteMsg `json:"msg"`
}

// ForwardMemo is a packet-forward-middleware memo. It is placed in the
// ibc_info memo of the post swap transfer when the output needs more hops.
type ForwardMemo struct {
	Forward *PFMForward `json:"forward"`
}

type PFMForward struct {
	Channel  string       `json:"channel"`
	Port     string       `json:"port"`
	Receiver string       `json:"receiver"`
	Retries  int          `json:"retries,omitempty"`
	Timeout  int64        `json:"timeout,omitempty"`
	Next     *ForwardMemo `json:"next,omitempty"`
}

// IBCHop is a single IBC transfer hop
type IBCHop struct {
	Channel  string
	Port     string
	Receiver string
	Timeout  int64
}

// SwapMemoParams are the parameters of a swap that keeps the output on the
// swap chain.
type SwapMemoParams struct {
	VenueName        string
	Operations       []models.SwapOperation
	MinAsset         chain.Coin
	TimeoutTimestamp uint64
	ReceiverAddress  string
	// RecoverAddress, when set, wraps the call in swap_and_action_with_recover.
	RecoverAddress string
	Affiliates     []models.Affiliate
}

// SwapAndForwardParams add a single IBC transfer after the swap.
type SwapAndForwardParams struct {
	SwapMemoParams
	SourceChannel   string
	ForwardReceiver string
	ForwardMemo     string
	// IbcRecoverAddress receives the output on the swap chain if the
	// forward fails.
	IbcRecoverAddress string
	Fee               *models.IbcFee
}

// SwapAndMultiHopParams forward the output over several hops. The first hop
// is the ibc_transfer post swap action, the rest become a PFM memo.
type SwapAndMultiHopParams struct {
	SwapMemoParams
	OutboundHops      []IBCHop
	FinalReceiver     string
	IbcRecoverAddress string
	Retries           int
}

// Builder builds swap_and_action memos for one entry point contract.
type Builder struct {
	contractAddress string
}

func NewBuilder(contractAddress string) *Builder {
	return &Builder{contractAddress: contractAddress}
}

func (b *Builder) ContractAddress() string {
	return b.contractAddress
}

// BuildSwapMemo creates a wasm memo for a swap whose output is transferred
// to an address on the swap chain.
//
// Example output:
//
//	{
//	  "wasm": {
//	    "contract": "osmo1...",
//	    "msg": {
//	      "swap_and_action": {
//	        "user_swap": { "swap_exact_asset_in": { ... } },
//	        "min_asset": { "native": { "denom": "...", "amount": "..." } },
//	        "timeout_timestamp": 1769790211797082680,
//	        "post_swap_action": { "transfer": { "to_address": "osmo1..." } },
//	        "affiliates": []
//	      }
//	    }
//	  }
//	}
func (b *Builder) BuildSwapMemo(params SwapMemoParams) (string, error) {
	memo, err := b.build(params, models.Action{Transfer: &models.Transfer{ToAddress: params.ReceiverAddress}})
	if err != nil {
		return "", err
	}
	return memo.ToJSON()
}

// BuildSwapAndForwardMemo creates a wasm memo for a swap followed by one
// IBC transfer of the output.
func (b *Builder) BuildSwapAndForwardMemo(params SwapAndForwardParams) (string, error) {
	action := models.Action{IBCTransfer: &models.IBCTransfer{IBCInfo: models.IBCInfo{
		SourceChannel:  params.SourceChannel,
		Receiver:       params.ForwardReceiver,
		Memo:           params.ForwardMemo,
		RecoverAddress: params.IbcRecoverAddress,
		Fee:            params.Fee,
	}}}
	memo, err := b.build(params.SwapMemoParams, action)
	if err != nil {
		return "", err
	}
	return memo.ToJSON()
}

// BuildSwapAndMultiHopMemo creates a wasm memo whose post swap transfer
// carries a PFM memo for the remaining hops.
func (b *Builder) BuildSwapAndMultiHopMemo(params SwapAndMultiHopParams) (string, error) {
	if len(params.OutboundHops) == 0 {
		return "", fmt.Errorf("at least one outbound hop is required")
	}
	first := params.OutboundHops[0]
	var forward string
	if len(params.OutboundHops) > 1 {
		f, err := NewForwardChain(params.OutboundHops[1:], params.FinalReceiver, params.Retries)
		if err != nil {
			return "", err
		}
		if forward, err = f.ToJSON(); err != nil {
			return "", err
		}
	}
	receiver := first.Receiver
	if len(params.OutboundHops) == 1 {
		receiver = params.FinalReceiver
	}
	return b.BuildSwapAndForwardMemo(SwapAndForwardParams{
		SwapMemoParams:    params.SwapMemoParams,
		SourceChannel:     first.Channel,
		ForwardReceiver:   receiver,
		ForwardMemo:       forward,
		IbcRecoverAddress: params.IbcRecoverAddress,
	})
}

func (b *Builder) build(params SwapMemoParams, action models.Action) (*WasmMemo, error) {
	if b.contractAddress == "" {
		return nil, ErrNoContract
	}
	if len(params.Operations) == 0 {
		return nil, ErrNoOperations
	}
	affiliates := params.Affiliates
	if affiliates == nil {
		affiliates = []models.Affiliate{}
	}
	swap := models.SwapAndAction{
		UserSwap: models.Swap{SwapExactAssetIn: &models.SwapExactAssetIn{
			SwapVenueName: params.VenueName,
			Operations:    params.Operations,
		}},
		MinAsset:         asset.FromCoin(params.MinAsset),
		TimeoutTimestamp: params.TimeoutTimestamp,
		PostSwapAction:   action,
		Affiliates:       affiliates,
	}
	msg := &models.EntryPointExecuteMsg{}
	if params.RecoverAddress != "" {
		msg.SwapAndActionWithRecover = &models.SwapAndActionWithRecover{SwapAndAction: swap, RecoveryAddr: params.RecoverAddress}
	} else {
		msg.SwapAndAction = &swap
	}
	return &WasmMemo{Wasm: &WasmData{Contract: b.contractAddress, Msg: msg}}, nil
}

// NewForwardChain nests one PFM forward per hop. The last hop delivers to
// finalReceiver.
func NewForwardChain(hops []IBCHop, finalReceiver string, retries int) (*ForwardMemo, error) {
	if retries < 0 {
		return nil, fmt.Errorf("retries must not be negative")
	}
	var next *ForwardMemo
	for i := len(hops) - 1; i >= 0; i-- {
		hop := hops[i]
		if hop.Timeout < 0 {
			return nil, fmt.Errorf("timeout must not be negative")
		}
		port := hop.Port
		if port == "" {
			port = "transfer"
		}
		receiver := hop.Receiver
		if i == len(hops)-1 {
			receiver = finalReceiver
		}
		next = &ForwardMemo{Forward: &PFMForward{
			Channel:  hop.Channel,
			Port:     port,
			Receiver: receiver,
			Retries:  retries,
			Timeout:  hop.Timeout,
			Next:     next,
		}}
	}
	if next == nil {
		return nil, fmt.Errorf("no hops")
	}
	return next, nil
}

func (m *WasmMemo) ToJSON() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *ForwardMemo) ToJSON() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
