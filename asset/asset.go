// Package asset models the two kinds of balance the pipeline moves around:
// native bank coins and cw20 token balances.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var (
	ErrInvalidFunds  = errors.New("exactly one non-zero native coin must be attached")
	ErrInvalidAsset  = errors.New("asset must be either native or cw20")
	ErrFundsMismatch = errors.New("attached funds do not match the sent asset")
	ErrNotNative     = errors.New("asset is not a native coin")
)

// Cw20Coin is a balance held in a cw20 token contract.
type Cw20Coin struct {
	Address string       `json:"address"`
	Amount  chain.Amount `json:"amount"`
}

// Asset is either a native coin or a cw20 balance. Exactly one field is set.
type Asset struct {
	Native *chain.Coin `json:"native,omitempty"`
	Cw20   *Cw20Coin   `json:"cw20,omitempty"`
}

func NewNative(denom string, amount chain.Amount) Asset {
	return Asset{Native: &chain.Coin{Denom: denom, Amount: amount}}
}

func NewCw20(address string, amount chain.Amount) Asset {
	return Asset{Cw20: &Cw20Coin{Address: address, Amount: amount}}
}

func FromCoin(c chain.Coin) Asset {
	return NewNative(c.Denom, c.Amount)
}

func (a Asset) IsNative() bool { return a.Native != nil }

// Denom is the bank denom for native coins and the token contract address
// for cw20 balances.
func (a Asset) Denom() string {
	switch {
	case a.Native != nil:
		return a.Native.Denom
	case a.Cw20 != nil:
		return a.Cw20.Address
	default:
		return ""
	}
}

func (a Asset) Amount() chain.Amount {
	switch {
	case a.Native != nil:
		return a.Native.Amount
	case a.Cw20 != nil:
		return a.Cw20.Amount
	default:
		return chain.ZeroAmount()
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (a Asset) Clone() Asset {
	switch {
	case a.Native != nil:
		c := *a.Native
		return Asset{Native: &c}
	case a.Cw20 != nil:
		c := *a.Cw20
		return Asset{Cw20: &c}
	default:
		return Asset{}
	}
}

// WithAmount returns a copy of a carrying amount instead.
func (a Asset) WithAmount(amount chain.Amount) Asset {
	out := a.Clone()
	out.setAmount(amount)
	return out
}

func (a *Asset) setAmount(amount chain.Amount) {
	switch {
	case a.Native != nil:
		a.Native.Amount = amount
	case a.Cw20 != nil:
		a.Cw20.Amount = amount
	}
}

// Add increases the amount in place. Overflow is an error and leaves a unchanged.
func (a *Asset) Add(amount chain.Amount) error {
	sum, err := a.Amount().Add(amount)
	if err != nil {
		return err
	}
	a.setAmount(sum)
	return nil
}

// Sub decreases the amount in place. Underflow is an error and leaves a unchanged.
func (a *Asset) Sub(amount chain.Amount) error {
	diff, err := a.Amount().Sub(amount)
	if err != nil {
		return err
	}
	a.setAmount(diff)
	return nil
}

// Coin returns the native coin or ErrNotNative.
func (a Asset) Coin() (chain.Coin, error) {
	if a.Native == nil {
		return chain.Coin{}, ErrNotNative
	}
	return *a.Native, nil
}

func (a Asset) String() string {
	return a.Amount().String() + a.Denom()
}

// Transfer builds the message that moves the asset to `to`.
func (a Asset) Transfer(to string) (chain.Msg, error) {
	switch {
	case a.Native != nil:
		return chain.NewBankSend(to, *a.Native), nil
	case a.Cw20 != nil:
		return chain.NewWasmExecute(a.Cw20.Address, chain.Cw20ExecuteMsg{
			Transfer: &chain.Cw20Transfer{Recipient: to, Amount: a.Cw20.Amount},
		})
	default:
		return chain.Msg{}, ErrInvalidAsset
	}
}

// IntoWasmMsg builds the message that delivers the asset to contract together
// with payload. Native coins are attached as funds; cw20 balances go through
// the token's send so the contract receives a receive hook.
func (a Asset) IntoWasmMsg(contract string, payload any) (chain.Msg, error) {
	switch {
	case a.Native != nil:
		return chain.NewWasmExecute(contract, payload, *a.Native)
	case a.Cw20 != nil:
		raw, err := json.Marshal(payload)
		if err != nil {
			return chain.Msg{}, fmt.Errorf("failed to marshal payload for %s: %w", contract, err)
		}
		return chain.NewWasmExecute(a.Cw20.Address, chain.Cw20ExecuteMsg{
			Send: &chain.Cw20Send{Contract: contract, Amount: a.Cw20.Amount, Msg: raw},
		})
	default:
		return chain.Msg{}, ErrInvalidAsset
	}
}

// Validate checks that a explicitly sent asset matches the call that carried
// it. A native asset must equal the single attached coin. A cw20 asset must
// arrive through its own token contract with no native funds.
func (a Asset) Validate(api chain.AddressCodec, info chain.Info) error {
	switch {
	case a.Native != nil:
		if len(info.Funds) != 1 || info.Funds[0].Denom != a.Native.Denom || !info.Funds[0].Amount.Equal(a.Native.Amount) {
			return fmt.Errorf("%w: sent %s, attached %s", ErrFundsMismatch, a, info.Funds)
		}
		return nil
	case a.Cw20 != nil:
		if err := api.Validate(a.Cw20.Address); err != nil {
			return err
		}
		if info.Sender != a.Cw20.Address {
			return fmt.Errorf("%w: cw20 %s sent by %s", ErrFundsMismatch, a.Cw20.Address, info.Sender)
		}
		if !info.Funds.IsZero() {
			return fmt.Errorf("%w: native funds attached to cw20 send", ErrFundsMismatch)
		}
		return nil
	default:
		return ErrInvalidAsset
	}
}

// FromFunds returns the single non-zero native coin attached to a call.
func FromFunds(info chain.Info) (Asset, error) {
	funds, err := info.Funds.NonZero()
	if err != nil {
		return Asset{}, err
	}
	if len(funds) != 1 {
		return Asset{}, fmt.Errorf("%w: got %d", ErrInvalidFunds, len(funds))
	}
	return FromCoin(funds[0]), nil
}

// All returns every attached native coin plus sent, if given. This is what
// a recovery must return when the wrapped call fails.
func All(info chain.Info, sent *Asset) []Asset {
	out := make([]Asset, 0, len(info.Funds)+1)
	for _, c := range info.Funds {
		if !c.Amount.IsZero() {
			out = append(out, FromCoin(c))
		}
	}
	if sent != nil && sent.Cw20 != nil {
		out = append(out, sent.Clone())
	}
	return out
}
