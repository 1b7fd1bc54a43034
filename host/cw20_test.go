package host

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

func TestCw20Token(t *testing.T) {
	e := newTestEnv(t)
	alice := e.h.API().Account("alice")
	bob := e.h.API().Account("bob")
	receiver := e.instantiate(t, "receiver")

	token, _, err := e.h.Instantiate(e.ctx, alice, Cw20CodeName, "token", chain.Cw20InstantiateMsg{
		Name:            "Test Token",
		Symbol:          "TEST",
		Decimals:        6,
		InitialBalances: []chain.Cw20Balance{{Address: alice, Amount: chain.NewAmount(1000)}},
		Minter:          alice,
	}, nil)
	assert.NoError(t, err)

	balance := func(addr string) string {
		var out chain.Cw20BalanceResponse
		assert.NoError(t, e.h.QueryInto(e.ctx, token, chain.Cw20QueryMsg{Balance: &chain.Cw20BalanceQuery{Address: addr}}, &out))
		return out.Balance.String()
	}

	t.Run("transfer", func(t *testing.T) {
		_, err := e.h.Execute(e.ctx, alice, token, chain.Cw20ExecuteMsg{Transfer: &chain.Cw20Transfer{Recipient: bob, Amount: chain.NewAmount(100)}}, nil)
		assert.NoError(t, err)
		assert.Equal(t, balance(alice), "900")
		assert.Equal(t, balance(bob), "100")
	})

	t.Run("transfer more than balance", func(t *testing.T) {
		_, err := e.h.Execute(e.ctx, bob, token, chain.Cw20ExecuteMsg{Transfer: &chain.Cw20Transfer{Recipient: alice, Amount: chain.NewAmount(101)}}, nil)
		assert.True(t, errors.Is(err, ErrInsufficientFunds))
		assert.Equal(t, balance(bob), "100")
	})

	t.Run("send invokes receive hook", func(t *testing.T) {
		_, err := e.h.Execute(e.ctx, alice, token, chain.Cw20ExecuteMsg{Send: &chain.Cw20Send{
			Contract: receiver,
			Amount:   chain.NewAmount(50),
			Msg:      json.RawMessage(`{"hello":"world"}`),
		}}, nil)
		assert.NoError(t, err)
		assert.Equal(t, balance(receiver), "50")

		var rcv chain.Cw20ReceiveMsg
		assert.NoError(t, json.Unmarshal(e.get(t, receiver, "received"), &rcv))
		assert.Equal(t, rcv.Sender, alice)
		assert.Equal(t, rcv.Amount.String(), "50")
		assert.Equal(t, string(rcv.Msg), `{"hello":"world"}`)
	})

	t.Run("mint", func(t *testing.T) {
		_, err := e.h.Execute(e.ctx, bob, token, chain.Cw20ExecuteMsg{Mint: &chain.Cw20Mint{Recipient: bob, Amount: chain.NewAmount(1)}}, nil)
		assert.True(t, errors.Is(err, ErrCw20Unauthorized))

		_, err = e.h.Execute(e.ctx, alice, token, chain.Cw20ExecuteMsg{Mint: &chain.Cw20Mint{Recipient: bob, Amount: chain.NewAmount(5)}}, nil)
		assert.NoError(t, err)
		assert.Equal(t, balance(bob), "105")

		var info chain.Cw20TokenInfoResponse
		assert.NoError(t, e.h.QueryInto(e.ctx, token, chain.Cw20QueryMsg{TokenInfo: &struct{}{}}, &info))
		assert.Equal(t, info.TotalSupply.String(), "1005")
		assert.Equal(t, info.Symbol, "TEST")
	})
}
