package chain

import (
	"bytes"
	"encoding/json"
)

// SuccessAck is the ICS-20 acknowledgement written by a receiving chain
// when the transfer succeeded.
var SuccessAck = []byte(`{"result":"AQ=="}`)

// IsSuccessAck reports whether an acknowledgement carries the success
// marker. A JSON ack is judged by its result field, anything else by the
// marker appearing verbatim.
func IsSuccessAck(ack []byte) bool {
	var body struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal(ack, &body); err == nil {
		return body.Result != nil && *body.Result == "AQ=="
	}
	return bytes.Contains(ack, SuccessAck)
}

// ErrorAck builds an ICS-20 error acknowledgement.
func ErrorAck(reason string) []byte {
	b, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: reason})
	return b
}

type MsgTransferResponse struct {
	Sequence uint64 `json:"sequence"`
}

// SudoMsg is delivered by the host, never by a user.
type SudoMsg struct {
	IbcLifecycleComplete *IbcLifecycleComplete `json:"ibc_lifecycle_complete,omitempty"`
}

type IbcLifecycleComplete struct {
	IbcAck     *IbcAck     `json:"ibc_ack,omitempty"`
	IbcTimeout *IbcTimeout `json:"ibc_timeout,omitempty"`
}

type IbcAck struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
	Ack      string `json:"ack"`
	Success  bool   `json:"success"`
}

type IbcTimeout struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
}
