package entrypoint_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/entrypoint"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/ibcadapter"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

const channel = "channel-10"

func (e *testEnv) ibcAction(fee *models.IbcFee, feeSwap *models.SwapExactAssetOut) models.Action {
	return models.Action{IBCTransfer: &models.IBCTransfer{
		IBCInfo: models.IBCInfo{
			SourceChannel:  channel,
			Receiver:       "cosmos1receiver",
			Fee:            fee,
			RecoverAddress: e.alice,
		},
		FeeSwap: feeSwap,
	}}
}

func recvFee(c chain.Coin) *models.IbcFee {
	return &models.IbcFee{RecvFee: chain.Coins{c}}
}

// sendOverIbc swaps 1,000,000 untrn paying a 1000 untrn fee and returns the
// pending packet.
func (e *testEnv) sendOverIbc(t *testing.T) host.Packet {
	t.Helper()
	msg := models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
		UserSwap:         e.exactIn(0),
		MinAsset:         osmo(990000),
		TimeoutTimestamp: e.timeout(),
		PostSwapAction:   e.ibcAction(recvFee(chain.NewCoin("untrn", 1000)), nil),
	}}
	_, err := e.Host.Execute(e.ctx, e.alice, e.EntryPoint, msg, untrn(1000000))
	assert.NoError(t, err)

	packets, err := e.Host.PendingPackets(e.ctx)
	assert.NoError(t, err)
	assert.Equal(t, len(packets), 1)
	return packets[0]
}

func (e *testEnv) inProgress(seq uint64) (models.InProgressIbcTransfer, error) {
	var rec models.InProgressIbcTransfer
	err := e.Host.QueryInto(e.ctx, e.IbcAdapter, models.IbcAdapterQueryMsg{
		InProgressIbcTransfer: &models.InProgressIbcTransferQuery{ChannelID: channel, SequenceID: seq},
	}, &rec)
	return rec, err
}

func TestIbcTransfer_TracksPacket(t *testing.T) {
	e := newTestEnv(t)
	p := e.sendOverIbc(t)

	assert.Equal(t, p.Channel, channel)
	assert.Equal(t, p.Sender, e.IbcAdapter)
	assert.Equal(t, p.Token.String(), "998002uosmo")
	assert.Equal(t, p.Fee.String(), "1000untrn")
	assert.Equal(t, e.balance(t, e.Host.EscrowAddress(channel), "uosmo"), "998002")
	assert.Equal(t, e.balance(t, e.IbcAdapter, "untrn"), "0")
	assert.Equal(t, e.balance(t, e.EntryPoint, "untrn"), "0")

	rec, err := e.inProgress(p.Sequence)
	assert.NoError(t, err)
	assert.Equal(t, rec.RecoverAddress, e.alice)
	assert.Equal(t, rec.ChannelID, channel)
	assert.Equal(t, rec.Coin.String(), "998002uosmo")

	raw, err := e.Host.Query(e.ctx, e.IbcAdapter, models.IbcAdapterQueryMsg{InFlightTransfer: &struct{}{}})
	assert.NoError(t, err)
	assert.Equal(t, string(raw), "null")
}

func TestIbcTransfer_AckSuccessClearsRecord(t *testing.T) {
	e := newTestEnv(t)
	p := e.sendOverIbc(t)

	res, err := e.Host.AcknowledgePacket(e.ctx, channel, p.Sequence, chain.SuccessAck)
	assert.NoError(t, err)
	action, _ := res.Attr("wasm", "action")
	assert.Equal(t, action, "sudo_ack_success")

	_, err = e.inProgress(p.Sequence)
	assert.True(t, errors.Is(err, ibcadapter.ErrTransferNotFound))
	assert.Equal(t, e.balance(t, e.alice, "uosmo"), "0")
	assert.Equal(t, e.balance(t, e.IbcAdapter, "uosmo"), "0")
}

func TestIbcTransfer_TimeoutRefundsRecoverAddress(t *testing.T) {
	e := newTestEnv(t)
	p := e.sendOverIbc(t)

	_, err := e.Host.TimeoutPacket(e.ctx, channel, p.Sequence)
	assert.True(t, errors.Is(err, host.ErrPacketNotTimedOut))

	e.now = e.now.Add(2 * time.Hour)
	res, err := e.Host.TimeoutPacket(e.ctx, channel, p.Sequence)
	assert.NoError(t, err)
	action, _ := res.Attr("wasm", "action")
	assert.Equal(t, action, "sudo_timeout_and_bank_send")

	assert.Equal(t, e.balance(t, e.alice, "uosmo"), "998002")
	assert.Equal(t, e.balance(t, e.IbcAdapter, "uosmo"), "0")
	_, err = e.inProgress(p.Sequence)
	assert.True(t, errors.Is(err, ibcadapter.ErrTransferNotFound))

	_, err = e.Host.TimeoutPacket(e.ctx, channel, p.Sequence)
	assert.True(t, errors.Is(err, host.ErrPacketNotFound))
	assert.Equal(t, e.balance(t, e.alice, "uosmo"), "998002")
}

func TestIbcTransfer_ErrorAckRefundsRecoverAddress(t *testing.T) {
	e := newTestEnv(t)
	p := e.sendOverIbc(t)

	res, err := e.Host.AcknowledgePacket(e.ctx, channel, p.Sequence, chain.ErrorAck("receiver rejected"))
	assert.NoError(t, err)
	action, _ := res.Attr("wasm", "action")
	assert.Equal(t, action, "sudo_ack_error_and_bank_send")
	assert.Equal(t, e.balance(t, e.alice, "uosmo"), "998002")
}

func TestIbcTransfer_SequentialTransfersGetOwnRecords(t *testing.T) {
	e := newTestEnv(t)
	first := e.sendOverIbc(t)

	msg := models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
		UserSwap:         e.exactIn(1),
		MinAsset:         osmo(1),
		TimeoutTimestamp: e.timeout(),
		PostSwapAction:   e.ibcAction(nil, nil),
	}}
	_, err := e.Host.Execute(e.ctx, e.alice, e.EntryPoint, msg, untrn(1000))
	assert.NoError(t, err)

	second, err := e.inProgress(first.Sequence + 1)
	assert.NoError(t, err)
	assert.Equal(t, second.Coin.String(), "999uosmo")
	_, err = e.inProgress(first.Sequence)
	assert.NoError(t, err)
}

func TestIbcTransfer_FeeSwapBuysFeeCoin(t *testing.T) {
	e := newTestEnv(t)
	feeSwap := &models.SwapExactAssetOut{
		SwapVenueName: venueName,
		Operations:    e.ops(0),
	}
	msg := models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
		UserSwap:         e.exactIn(1),
		MinAsset:         osmo(990000),
		TimeoutTimestamp: e.timeout(),
		PostSwapAction:   e.ibcAction(recvFee(chain.NewCoin("uosmo", 1000)), feeSwap),
	}}
	res, err := e.Host.Execute(e.ctx, e.alice, e.EntryPoint, msg, untrn(1000000))
	assert.NoError(t, err)
	assert.Equal(t, res.Messages[0].Stage, chain.StageFeeSwap)

	packets, err := e.Host.PendingPackets(e.ctx)
	assert.NoError(t, err)
	assert.Equal(t, len(packets), 1)
	// 1001 untrn buys the 1000 uosmo fee, the other 998999 swap to 998001
	assert.Equal(t, packets[0].Token.String(), "998001uosmo")
	assert.Equal(t, packets[0].Fee.String(), "1000uosmo")
	assert.Equal(t, e.balance(t, e.EntryPoint, "uosmo"), "0")
}

func TestIbcTransfer_FeeErrors(t *testing.T) {
	e := newTestEnv(t)
	run := func(action models.Action) error {
		msg := models.EntryPointExecuteMsg{SwapAndAction: &models.SwapAndAction{
			UserSwap:         e.exactIn(0),
			MinAsset:         osmo(1),
			TimeoutTimestamp: e.timeout(),
			PostSwapAction:   action,
		}}
		_, err := e.Host.Execute(e.ctx, e.alice, e.EntryPoint, msg, untrn(1000000))
		return err
	}

	err := run(e.ibcAction(recvFee(chain.NewCoin("uosmo", 1000)), nil))
	assert.True(t, errors.Is(err, entrypoint.ErrIBCFeeDenomDiffersFromAssetReceived))

	err = run(e.ibcAction(nil, &models.SwapExactAssetOut{SwapVenueName: venueName, Operations: e.ops(0)}))
	assert.True(t, errors.Is(err, entrypoint.ErrFeeSwapWithoutIbcFees))

	split := &models.IbcFee{
		RecvFee: chain.Coins{chain.NewCoin("untrn", 1)},
		AckFee:  chain.Coins{chain.NewCoin("uosmo", 1)},
	}
	err = run(e.ibcAction(split, nil))
	assert.True(t, errors.Is(err, models.ErrIbcFeesNotOneCoin))

	assert.Equal(t, e.balance(t, e.alice, "untrn"), "10000000")
}

func TestAction_Cw20IbcTransferRejected(t *testing.T) {
	e := newTestEnv(t)
	token := e.Tokens["token-astro"]

	err := cw20Send(t, e, models.Cw20HookMsg{Action: &models.ActionMsg{
		TimeoutTimestamp: e.timeout(),
		Action:           e.ibcAction(nil, nil),
	}}, 500)
	assert.True(t, errors.Is(err, entrypoint.ErrNonNativeIbcTransfer))

	assert.Equal(t, e.cw20Balance(t, token, e.alice), "500")
	assert.Equal(t, e.cw20Balance(t, token, e.EntryPoint), "0")
	packets, err := e.Host.PendingPackets(e.ctx)
	assert.NoError(t, err)
	assert.Equal(t, len(packets), 0)
}
