package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// Cw20CodeName is the code name Cw20Token is usually stored under.
const Cw20CodeName = "cw20-base"

var ErrCw20Unauthorized = errors.New("cw20: unauthorized")

type cw20Info struct {
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Decimals    uint8        `json:"decimals"`
	TotalSupply chain.Amount `json:"total_supply"`
	Minter      string       `json:"minter,omitempty"`
}

var (
	cw20TokenInfo = store.NewItem[cw20Info]("token_info")
	cw20Balances  = store.NewMap[chain.Amount]("balance")
)

// Cw20Token is a fungible token contract with the transfer, send and mint
// subset of the cw20 interface.
type Cw20Token struct{}

func (Cw20Token) Instantiate(ctx context.Context, deps Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg chain.Cw20InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	if msg.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidMsg)
	}
	if msg.Minter != "" {
		if err := deps.API.Validate(msg.Minter); err != nil {
			return nil, err
		}
	}
	supply := chain.ZeroAmount()
	for _, b := range msg.InitialBalances {
		if err := deps.API.Validate(b.Address); err != nil {
			return nil, err
		}
		if err := cw20Credit(deps.Storage, b.Address, b.Amount); err != nil {
			return nil, err
		}
		var err error
		if supply, err = supply.Add(b.Amount); err != nil {
			return nil, err
		}
	}
	ti := cw20Info{Name: msg.Name, Symbol: msg.Symbol, Decimals: msg.Decimals, TotalSupply: supply, Minter: msg.Minter}
	if err := cw20TokenInfo.Save(deps.Storage, ti); err != nil {
		return nil, err
	}
	return chain.NewResponse().AddAttribute("action", "instantiate").AddAttribute("symbol", msg.Symbol), nil
}

func (Cw20Token) Execute(ctx context.Context, deps Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg chain.Cw20ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	switch {
	case msg.Transfer != nil:
		m := msg.Transfer
		if err := deps.API.Validate(m.Recipient); err != nil {
			return nil, err
		}
		if err := cw20Move(deps.Storage, info.Sender, m.Recipient, m.Amount); err != nil {
			return nil, err
		}
		return chain.NewResponse().
			AddAttribute("action", "transfer").
			AddAttribute("from", info.Sender).
			AddAttribute("to", m.Recipient).
			AddAttribute("amount", m.Amount.String()), nil

	case msg.Send != nil:
		m := msg.Send
		if err := deps.API.Validate(m.Contract); err != nil {
			return nil, err
		}
		if err := cw20Move(deps.Storage, info.Sender, m.Contract, m.Amount); err != nil {
			return nil, err
		}
		hook, err := chain.NewWasmExecute(m.Contract, chain.Cw20ReceiveEnvelope{Receive: chain.Cw20ReceiveMsg{
			Sender: info.Sender,
			Amount: m.Amount,
			Msg:    m.Msg,
		}})
		if err != nil {
			return nil, err
		}
		return chain.NewResponse().
			AddMessage(chain.StageNone, hook).
			AddAttribute("action", "send").
			AddAttribute("from", info.Sender).
			AddAttribute("to", m.Contract).
			AddAttribute("amount", m.Amount.String()), nil

	case msg.Mint != nil:
		m := msg.Mint
		ti, err := cw20TokenInfo.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		if ti.Minter == "" || ti.Minter != info.Sender {
			return nil, ErrCw20Unauthorized
		}
		if err := deps.API.Validate(m.Recipient); err != nil {
			return nil, err
		}
		if ti.TotalSupply, err = ti.TotalSupply.Add(m.Amount); err != nil {
			return nil, err
		}
		if err := cw20Credit(deps.Storage, m.Recipient, m.Amount); err != nil {
			return nil, err
		}
		if err := cw20TokenInfo.Save(deps.Storage, ti); err != nil {
			return nil, err
		}
		return chain.NewResponse().
			AddAttribute("action", "mint").
			AddAttribute("to", m.Recipient).
			AddAttribute("amount", m.Amount.String()), nil

	default:
		return nil, fmt.Errorf("%w: unknown cw20 execute message", ErrInvalidMsg)
	}
}

func (Cw20Token) Query(ctx context.Context, deps Deps, env chain.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg chain.Cw20QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	switch {
	case msg.Balance != nil:
		bal, err := cw20Balance(deps.Storage, msg.Balance.Address)
		if err != nil {
			return nil, err
		}
		return json.Marshal(chain.Cw20BalanceResponse{Balance: bal})
	case msg.TokenInfo != nil:
		ti, err := cw20TokenInfo.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(chain.Cw20TokenInfoResponse{
			Name:        ti.Name,
			Symbol:      ti.Symbol,
			Decimals:    ti.Decimals,
			TotalSupply: ti.TotalSupply,
		})
	default:
		return nil, fmt.Errorf("%w: unknown cw20 query", ErrInvalidMsg)
	}
}

func cw20Balance(kv store.KV, address string) (chain.Amount, error) {
	bal, err := cw20Balances.Load(kv, store.StringKey(address))
	if errors.Is(err, store.ErrNotFound) {
		return chain.ZeroAmount(), nil
	}
	return bal, err
}

func cw20Credit(kv store.KV, address string, amount chain.Amount) error {
	bal, err := cw20Balance(kv, address)
	if err != nil {
		return err
	}
	if bal, err = bal.Add(amount); err != nil {
		return err
	}
	return cw20Balances.Save(kv, store.StringKey(address), bal)
}

func cw20Move(kv store.KV, from, to string, amount chain.Amount) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: zero amount", ErrInvalidMsg)
	}
	bal, err := cw20Balance(kv, from)
	if err != nil {
		return err
	}
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, bal, amount)
	}
	if bal, err = bal.Sub(amount); err != nil {
		return err
	}
	if err := cw20Balances.Save(kv, store.StringKey(from), bal); err != nil {
		return err
	}
	return cw20Credit(kv, to, amount)
}
