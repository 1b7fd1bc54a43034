package ibcadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// withDeps runs fn against a fresh adapter storage.
func withDeps(t *testing.T, fn func(deps host.Deps, env chain.Env)) {
	t.Helper()
	db, err := store.OpenMemory()
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	api := chain.NewAddressCodec("osmo")
	env := chain.Env{Contract: chain.ContractInfo{Address: api.Derive("contract/adapter")}}
	assert.NoError(t, db.Update(func(kv store.KV) error {
		fn(host.Deps{Storage: kv, API: api}, env)
		return nil
	}))
}

func transferReply(seq uint64) chain.Reply {
	data, _ := json.Marshal(chain.MsgTransferResponse{Sequence: seq})
	return chain.Reply{ID: TransferReplyID, Result: chain.SubMsgResult{Ok: &chain.SubMsgResponse{Data: data}}}
}

func TestIbcTransfer_Guards(t *testing.T) {
	withDeps(t, func(deps host.Deps, env chain.Env) {
		ctx := context.Background()
		entryPoint := deps.API.Derive("contract/entry-point")
		assert.NoError(t, entryPointContractAddress.Save(deps.Storage, entryPoint))

		msg, err := json.Marshal(models.IbcAdapterExecuteMsg{IbcTransfer: &models.IbcTransferMsg{
			Info: models.IBCInfo{
				SourceChannel:  "channel-0",
				Receiver:       "cosmos1receiver",
				Memo:           `{"forward":{}}`,
				RecoverAddress: deps.API.Account("alice"),
			},
			Coin:             chain.NewCoin("uosmo", 10),
			TimeoutTimestamp: 1,
		}})
		assert.NoError(t, err)

		_, err = Adapter{}.Execute(ctx, deps, env, chain.Info{Sender: deps.API.Account("mallory")}, msg)
		assert.True(t, errors.Is(err, ErrUnauthorized))

		resp, err := Adapter{}.Execute(ctx, deps, env, chain.Info{Sender: entryPoint}, msg)
		assert.NoError(t, err)
		assert.Equal(t, len(resp.Messages), 1)
		sub := resp.Messages[0]
		assert.Equal(t, sub.ReplyOn, chain.ReplySuccess)
		assert.Equal(t, sub.Msg.IbcTransfer.Memo, `{"forward":{},"ibc_callback":"`+env.Contract.Address+`"}`)

		_, err = Adapter{}.Execute(ctx, deps, env, chain.Info{Sender: entryPoint}, msg)
		assert.True(t, errors.Is(err, ErrTransferInFlight))
	})
}

func TestIbcTransfer_RejectsSplitFee(t *testing.T) {
	withDeps(t, func(deps host.Deps, env chain.Env) {
		entryPoint := deps.API.Derive("contract/entry-point")
		assert.NoError(t, entryPointContractAddress.Save(deps.Storage, entryPoint))

		msg, err := json.Marshal(models.IbcAdapterExecuteMsg{IbcTransfer: &models.IbcTransferMsg{
			Info: models.IBCInfo{
				SourceChannel: "channel-0",
				Receiver:      "cosmos1receiver",
				Fee: &models.IbcFee{
					RecvFee: chain.Coins{chain.NewCoin("untrn", 1)},
					AckFee:  chain.Coins{chain.NewCoin("uosmo", 1)},
				},
			},
			Coin: chain.NewCoin("uosmo", 10),
		}})
		assert.NoError(t, err)

		_, err = Adapter{}.Execute(context.Background(), deps, env, chain.Info{Sender: entryPoint}, msg)
		assert.True(t, errors.Is(err, models.ErrIbcFeesNotOneCoin))
	})
}

func TestReply_TracksTransferUnderPacketKey(t *testing.T) {
	withDeps(t, func(deps host.Deps, env chain.Env) {
		ctx := context.Background()
		record := models.InProgressIbcTransfer{RecoverAddress: "osmo1recover", ChannelID: "channel-7", Coin: chain.NewCoin("uosmo", 5)}
		assert.NoError(t, inFlightTransfer.Save(deps.Storage, record))

		_, err := Adapter{}.Reply(ctx, deps, env, transferReply(4))
		assert.NoError(t, err)

		busy, err := inFlightTransfer.Exists(deps.Storage)
		assert.NoError(t, err)
		assert.False(t, busy)
		got, err := inProgressTransfers.Load(deps.Storage, transferKey("channel-7", 4))
		assert.NoError(t, err)
		assert.Equal(t, got.RecoverAddress, "osmo1recover")

		// the same packet key again is an integrity failure
		assert.NoError(t, inFlightTransfer.Save(deps.Storage, record))
		_, err = Adapter{}.Reply(ctx, deps, env, transferReply(4))
		var dup *AckIDAlreadyExistsError
		assert.True(t, errors.As(err, &dup))
		assert.Equal(t, dup.ChannelID, "channel-7")
		assert.Equal(t, dup.SequenceID, uint64(4))

		// same sequence on another channel is a different key
		other := record
		other.ChannelID = "channel-8"
		assert.NoError(t, inFlightTransfer.Save(deps.Storage, other))
		_, err = Adapter{}.Reply(ctx, deps, env, transferReply(4))
		assert.NoError(t, err)
	})
}

func TestReply_MissingData(t *testing.T) {
	withDeps(t, func(deps host.Deps, env chain.Env) {
		reply := chain.Reply{ID: TransferReplyID, Result: chain.SubMsgResult{Ok: &chain.SubMsgResponse{}}}
		_, err := Adapter{}.Reply(context.Background(), deps, env, reply)
		assert.True(t, errors.Is(err, ErrMissingResponseData))

		_, err = Adapter{}.Reply(context.Background(), deps, env, chain.Reply{ID: 9})
		assert.True(t, errors.Is(err, ErrReplyID))
	})
}
