package ibcadapter

import (
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

func TestResolve(t *testing.T) {
	record := &models.InProgressIbcTransfer{
		RecoverAddress: "osmo1recover",
		ChannelID:      "channel-0",
		Coin:           chain.NewCoin("uosmo", 100),
	}
	balance := chain.Coins{chain.NewCoin("uatom", 3), chain.NewCoin("uosmo", 100)}

	res, err := Resolve(record, AckSuccess, balance)
	assert.NoError(t, err)
	assert.Equal(t, res.Action, "sudo_ack_success")
	assert.Equal(t, len(res.Refund), 0)

	res, err = Resolve(record, AckError, balance)
	assert.NoError(t, err)
	assert.Equal(t, res.Action, "sudo_ack_error_and_bank_send")
	assert.Equal(t, res.To, "osmo1recover")
	assert.Equal(t, res.Refund.String(), "3uatom,100uosmo")

	res, err = Resolve(record, Timeout, balance)
	assert.NoError(t, err)
	assert.Equal(t, res.Action, "sudo_timeout_and_bank_send")
	assert.Equal(t, res.Refund.String(), "3uatom,100uosmo")
}

func TestResolve_Errors(t *testing.T) {
	record := &models.InProgressIbcTransfer{RecoverAddress: "osmo1recover", ChannelID: "channel-0"}

	_, err := Resolve(nil, Timeout, chain.Coins{chain.NewCoin("uosmo", 1)})
	assert.True(t, errors.Is(err, ErrTransferNotFound))

	_, err = Resolve(nil, AckSuccess, nil)
	assert.True(t, errors.Is(err, ErrTransferNotFound))

	_, err = Resolve(record, AckError, nil)
	assert.True(t, errors.Is(err, ErrNoFundsToRefund))

	_, err = Resolve(record, Timeout, chain.Coins{{Denom: "uosmo", Amount: chain.ZeroAmount()}})
	assert.True(t, errors.Is(err, ErrNoFundsToRefund))
}

func TestOutcomeOf(t *testing.T) {
	cases := []struct {
		name string
		msg  chain.IbcLifecycleComplete
		want Outcome
	}{
		{"flagged success", chain.IbcLifecycleComplete{IbcAck: &chain.IbcAck{Channel: "channel-0", Sequence: 1, Success: true}}, AckSuccess},
		{"success marker", chain.IbcLifecycleComplete{IbcAck: &chain.IbcAck{Channel: "channel-0", Sequence: 1, Ack: `{"result":"AQ=="}`}}, AckSuccess},
		{"error ack", chain.IbcLifecycleComplete{IbcAck: &chain.IbcAck{Channel: "channel-0", Sequence: 1, Ack: `{"error":"boom"}`}}, AckError},
		{"timeout", chain.IbcLifecycleComplete{IbcTimeout: &chain.IbcTimeout{Channel: "channel-0", Sequence: 1}}, Timeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch, seq, got, err := outcomeOf(tc.msg)
			assert.NoError(t, err)
			assert.Equal(t, ch, "channel-0")
			assert.Equal(t, seq, uint64(1))
			assert.Equal(t, got, tc.want)
		})
	}

	_, _, _, err := outcomeOf(chain.IbcLifecycleComplete{})
	assert.True(t, errors.Is(err, ErrUnknownOutcome))
}
