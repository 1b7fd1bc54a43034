package asset

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var api = chain.NewAddressCodec("osmo")

func TestFromFunds_RequiresExactlyOneCoin(t *testing.T) {
	got, err := FromFunds(chain.Info{Funds: chain.Coins{chain.NewCoin("untrn", 10)}})
	assert.NoError(t, err)
	assert.Equal(t, got.String(), "10untrn")

	_, err = FromFunds(chain.Info{})
	assert.True(t, errors.Is(err, ErrInvalidFunds))

	_, err = FromFunds(chain.Info{Funds: chain.Coins{chain.NewCoin("untrn", 10), chain.NewCoin("uosmo", 1)}})
	assert.True(t, errors.Is(err, ErrInvalidFunds))

	got, err = FromFunds(chain.Info{Funds: chain.Coins{chain.NewCoin("untrn", 10), chain.NewCoin("uosmo", 0)}})
	assert.NoError(t, err)
	assert.Equal(t, got.Denom(), "untrn")
}

func TestSub_UnderflowLeavesAssetUnchanged(t *testing.T) {
	a := NewNative("untrn", chain.NewAmount(5))
	err := a.Sub(chain.NewAmount(6))
	assert.True(t, errors.Is(err, chain.ErrUnderflow))
	assert.Equal(t, a.Amount().String(), "5")

	assert.NoError(t, a.Sub(chain.NewAmount(5)))
	assert.True(t, a.Amount().IsZero())
}

func TestWithAmount_DoesNotAlias(t *testing.T) {
	a := NewNative("untrn", chain.NewAmount(5))
	b := a.WithAmount(chain.NewAmount(7))
	assert.Equal(t, a.Amount().String(), "5")
	assert.Equal(t, b.Amount().String(), "7")
}

func TestTransfer(t *testing.T) {
	to := api.Account("bob")

	msg, err := NewNative("uosmo", chain.NewAmount(3)).Transfer(to)
	assert.NoError(t, err)
	assert.NotNil(t, msg.BankSend)
	assert.Equal(t, msg.BankSend.ToAddress, to)
	assert.Equal(t, msg.BankSend.Amount.String(), "3uosmo")

	token := api.Derive("token")
	msg, err = NewCw20(token, chain.NewAmount(3)).Transfer(to)
	assert.NoError(t, err)
	assert.NotNil(t, msg.WasmExecute)
	assert.Equal(t, msg.WasmExecute.ContractAddr, token)

	var exec chain.Cw20ExecuteMsg
	assert.NoError(t, json.Unmarshal(msg.WasmExecute.Msg, &exec))
	assert.NotNil(t, exec.Transfer)
	assert.Equal(t, exec.Transfer.Recipient, to)
}

func TestIntoWasmMsg_Cw20UsesSend(t *testing.T) {
	token := api.Derive("token")
	venue := api.Derive("venue")
	msg, err := NewCw20(token, chain.NewAmount(9)).IntoWasmMsg(venue, map[string]any{"swap": map[string]any{}})
	assert.NoError(t, err)
	assert.Equal(t, msg.WasmExecute.ContractAddr, token)
	assert.Equal(t, len(msg.WasmExecute.Funds), 0)

	var exec chain.Cw20ExecuteMsg
	assert.NoError(t, json.Unmarshal(msg.WasmExecute.Msg, &exec))
	assert.NotNil(t, exec.Send)
	assert.Equal(t, exec.Send.Contract, venue)
	assert.Equal(t, string(exec.Send.Msg), `{"swap":{}}`)

	msg, err = NewNative("uosmo", chain.NewAmount(9)).IntoWasmMsg(venue, map[string]any{"swap": map[string]any{}})
	assert.NoError(t, err)
	assert.Equal(t, msg.WasmExecute.ContractAddr, venue)
	assert.Equal(t, msg.WasmExecute.Funds.String(), "9uosmo")
}

func TestValidate(t *testing.T) {
	token := api.Derive("token")

	native := NewNative("untrn", chain.NewAmount(10))
	assert.NoError(t, native.Validate(api, chain.Info{Funds: chain.Coins{chain.NewCoin("untrn", 10)}}))
	assert.True(t, errors.Is(native.Validate(api, chain.Info{Funds: chain.Coins{chain.NewCoin("untrn", 9)}}), ErrFundsMismatch))

	cw20 := NewCw20(token, chain.NewAmount(10))
	assert.NoError(t, cw20.Validate(api, chain.Info{Sender: token}))
	assert.True(t, errors.Is(cw20.Validate(api, chain.Info{Sender: api.Account("mallory")}), ErrFundsMismatch))
}

func TestAll_CollectsFundsAndCw20(t *testing.T) {
	sent := NewCw20(api.Derive("token"), chain.NewAmount(4))
	info := chain.Info{Funds: chain.Coins{chain.NewCoin("uatom", 1), chain.NewCoin("untrn", 2)}}
	all := All(info, &sent)
	assert.Equal(t, len(all), 3)
	assert.Equal(t, all[2].Denom(), sent.Denom())

	native := NewNative("untrn", chain.NewAmount(2))
	assert.Equal(t, len(All(info, &native)), 2)
}
