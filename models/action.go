package models

import (
	"errors"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var (
	ErrIbcFeesNotOneCoin = errors.New("ibc fees are not a single coin, either multiple denoms or no coin specified")
	ErrInvalidAction     = errors.New("action must set exactly one variant")
)

// Transfer sends tokens to an address on the same chain
type Transfer struct {
	ToAddress string `json:"to_address"`
}

// IbcFee is the relayer fee attached to an outgoing transfer
type IbcFee struct {
	RecvFee    chain.Coins `json:"recv_fee"`
	AckFee     chain.Coins `json:"ack_fee"`
	TimeoutFee chain.Coins `json:"timeout_fee"`
}

// OneCoin merges the three fee lists and requires the result to be a single coin.
func (f IbcFee) OneCoin() (chain.Coin, error) {
	total, err := f.PacketFee().Total()
	if err != nil {
		return chain.Coin{}, err
	}
	if len(total) != 1 {
		return chain.Coin{}, ErrIbcFeesNotOneCoin
	}
	return total[0], nil
}

func (f IbcFee) PacketFee() chain.PacketFee {
	return chain.PacketFee{RecvFee: f.RecvFee, AckFee: f.AckFee, TimeoutFee: f.TimeoutFee}
}

// IBCInfo contains IBC transfer details for post-swap forwarding
type IBCInfo struct {
	SourceChannel  string  `json:"source_channel"`
	Receiver       string  `json:"receiver"`
	Fee            *IbcFee `json:"fee,omitempty"`
	Memo           string  `json:"memo"`
	RecoverAddress string  `json:"recover_address"`
}

// IBCTransfer sends tokens via IBC to another chain. FeeSwap, when set,
// converts part of the input into the fee denom first.
type IBCTransfer struct {
	IBCInfo IBCInfo            `json:"ibc_info"`
	FeeSwap *SwapExactAssetOut `json:"fee_swap,omitempty"`
}

// ContractCall hands the output to a contract together with Msg
type ContractCall struct {
	ContractAddress string `json:"contract_address"`
	Msg             []byte `json:"msg"`
}

// Action is what happens to the swap output (union type)
type Action struct {
	Transfer     *Transfer     `json:"transfer,omitempty"`
	IBCTransfer  *IBCTransfer  `json:"ibc_transfer,omitempty"`
	ContractCall *ContractCall `json:"contract_call,omitempty"`
}

func (a Action) Validate() error {
	n := 0
	if a.Transfer != nil {
		n++
	}
	if a.IBCTransfer != nil {
		n++
	}
	if a.ContractCall != nil {
		n++
	}
	if n != 1 {
		return ErrInvalidAction
	}
	return nil
}

// Affiliate receives BasisPointsFee / 10000 of the minimum output
type Affiliate struct {
	BasisPointsFee chain.Amount `json:"basis_points_fee"`
	Address        string       `json:"address"`
}
