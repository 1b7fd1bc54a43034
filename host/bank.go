package host

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

var balances = store.NewMap[chain.Amount]("bank")

func balanceKey(address, denom string) []byte {
	return store.JoinKey(store.StringKey(address), store.StringKey(denom))
}

func bankBalance(kv store.KV, address, denom string) (chain.Amount, error) {
	amount, err := balances.Load(kv, balanceKey(address, denom))
	if errors.Is(err, store.ErrNotFound) {
		return chain.ZeroAmount(), nil
	}
	return amount, err
}

func bankAllBalances(kv store.KV, address string) (chain.Coins, error) {
	var out chain.Coins
	prefix := store.StringKey(address)
	err := balances.Range(kv, prefix, func(k []byte, amount chain.Amount) bool {
		denom := string(k[len(prefix)+2:])
		out = append(out, chain.Coin{Denom: denom, Amount: amount})
		return true
	})
	return out, err
}

func setBalance(kv store.KV, address, denom string, amount chain.Amount) error {
	if amount.IsZero() {
		return balances.Remove(kv, balanceKey(address, denom))
	}
	return balances.Save(kv, balanceKey(address, denom), amount)
}

func bankMint(kv store.KV, to string, coins chain.Coins) error {
	for _, c := range coins {
		bal, err := bankBalance(kv, to, c.Denom)
		if err != nil {
			return err
		}
		if bal, err = bal.Add(c.Amount); err != nil {
			return err
		}
		if err := setBalance(kv, to, c.Denom, bal); err != nil {
			return err
		}
	}
	return nil
}

func bankSend(kv store.KV, from, to string, coins chain.Coins) error {
	for _, c := range coins {
		if c.Amount.IsZero() {
			continue
		}
		fromBal, err := bankBalance(kv, from, c.Denom)
		if err != nil {
			return err
		}
		if fromBal.LT(c.Amount) {
			return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, from, fromBal, c.Denom, c)
		}
		if fromBal, err = fromBal.Sub(c.Amount); err != nil {
			return err
		}
		if err := setBalance(kv, from, c.Denom, fromBal); err != nil {
			return err
		}
		toBal, err := bankBalance(kv, to, c.Denom)
		if err != nil {
			return err
		}
		if toBal, err = toBal.Add(c.Amount); err != nil {
			return err
		}
		if err := setBalance(kv, to, c.Denom, toBal); err != nil {
			return err
		}
	}
	return nil
}

func transferEvent(from, to string, coins chain.Coins) chain.Event {
	return chain.Event{Type: "transfer", Attributes: []chain.Attribute{
		{Key: "recipient", Value: to},
		{Key: "sender", Value: from},
		{Key: "amount", Value: coins.String()},
	}}
}
