package chain

import (
	"encoding/json"
	"fmt"
)

// Msg is a message a contract asks the host to dispatch. Exactly one field is set.
type Msg struct {
	BankSend    *BankSend    `json:"bank_send,omitempty"`
	WasmExecute *WasmExecute `json:"wasm_execute,omitempty"`
	IbcTransfer *IbcTransfer `json:"ibc_transfer,omitempty"`
}

type BankSend struct {
	ToAddress string `json:"to_address"`
	Amount    Coins  `json:"amount"`
}

type WasmExecute struct {
	ContractAddr string          `json:"contract_addr"`
	Msg          json.RawMessage `json:"msg"`
	Funds        Coins           `json:"funds"`
}

// IbcTransfer is an ICS-20 transfer out of the local chain. TimeoutTimestamp
// is in unix nanoseconds.
type IbcTransfer struct {
	SourceChannel    string     `json:"source_channel"`
	Sender           string     `json:"sender"`
	Receiver         string     `json:"receiver"`
	Token            Coin       `json:"token"`
	Memo             string     `json:"memo"`
	TimeoutTimestamp uint64     `json:"timeout_timestamp"`
	Fee              *PacketFee `json:"fee,omitempty"`
}

// PacketFee is the relayer incentive attached to a transfer.
type PacketFee struct {
	RecvFee    Coins `json:"recv_fee"`
	AckFee     Coins `json:"ack_fee"`
	TimeoutFee Coins `json:"timeout_fee"`
}

// Total merges the three fee lists.
func (f PacketFee) Total() (Coins, error) {
	all := make([]Coin, 0, len(f.RecvFee)+len(f.AckFee)+len(f.TimeoutFee))
	all = append(all, f.RecvFee...)
	all = append(all, f.AckFee...)
	all = append(all, f.TimeoutFee...)
	return NewCoins(all...)
}

func NewBankSend(to string, amount ...Coin) Msg {
	return Msg{BankSend: &BankSend{ToAddress: to, Amount: amount}}
}

// NewWasmExecute marshals payload and builds an execute message for contract.
func NewWasmExecute(contract string, payload any, funds ...Coin) (Msg, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Msg{}, fmt.Errorf("failed to marshal execute msg for %s: %w", contract, err)
	}
	return Msg{WasmExecute: &WasmExecute{ContractAddr: contract, Msg: raw, Funds: funds}}, nil
}

// Kind names the message variant for logs and traces.
func (m Msg) Kind() string {
	switch {
	case m.BankSend != nil:
		return "bank_send"
	case m.WasmExecute != nil:
		return "wasm_execute"
	case m.IbcTransfer != nil:
		return "ibc_transfer"
	default:
		return "empty"
	}
}

type ReplyOn int

const (
	ReplyNever ReplyOn = iota
	ReplySuccess
	ReplyError
	ReplyAlways
)

func (r ReplyOn) String() string {
	switch r {
	case ReplySuccess:
		return "success"
	case ReplyError:
		return "error"
	case ReplyAlways:
		return "always"
	default:
		return "never"
	}
}

// Matches reports whether a sub-message outcome should be handed to Reply.
func (r ReplyOn) Matches(failed bool) bool {
	switch r {
	case ReplyAlways:
		return true
	case ReplySuccess:
		return !failed
	case ReplyError:
		return failed
	default:
		return false
	}
}

// Stage tags a dispatched message with the pipeline step that produced it.
type Stage string

const (
	StageNone       Stage = ""
	StageFeeSwap    Stage = "fee_swap"
	StageIbcFee     Stage = "ibc_fee"
	StageUserSwap   Stage = "user_swap"
	StagePostAction Stage = "post_action"
	StageAffiliate  Stage = "affiliate"
	StageRefund     Stage = "refund"
	StageRecover    Stage = "recover"
	StageTransfer   Stage = "transfer"
)

type SubMsg struct {
	ID      uint64  `json:"id"`
	Msg     Msg     `json:"msg"`
	ReplyOn ReplyOn `json:"reply_on"`
	Stage   Stage   `json:"stage,omitempty"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the value of the first attribute named key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Response is what a contract entry point returns to the host.
type Response struct {
	Messages   []SubMsg    `json:"messages"`
	Attributes []Attribute `json:"attributes"`
	Events     []Event     `json:"events"`
	Data       []byte      `json:"data,omitempty"`
}

func NewResponse() *Response {
	return &Response{}
}

func (r *Response) AddMessage(stage Stage, msg Msg) *Response {
	r.Messages = append(r.Messages, SubMsg{Msg: msg, ReplyOn: ReplyNever, Stage: stage})
	return r
}

func (r *Response) AddSubMessage(stage Stage, id uint64, msg Msg, replyOn ReplyOn) *Response {
	r.Messages = append(r.Messages, SubMsg{ID: id, Msg: msg, ReplyOn: replyOn, Stage: stage})
	return r
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddEvent(ev Event) *Response {
	r.Events = append(r.Events, ev)
	return r
}

func (r *Response) SetData(data []byte) *Response {
	r.Data = data
	return r
}

// SubMsgResult is either Ok or Err, never both.
type SubMsgResult struct {
	Ok  *SubMsgResponse `json:"ok,omitempty"`
	Err string          `json:"error,omitempty"`
}

type SubMsgResponse struct {
	Events []Event `json:"events"`
	Data   []byte  `json:"data,omitempty"`
}

type Reply struct {
	ID     uint64       `json:"id"`
	Result SubMsgResult `json:"result"`
}
