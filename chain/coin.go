package chain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var ErrInvalidDenom = errors.New("invalid denom")

var denomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)

// Coin is a native bank balance of a single denom.
type Coin struct {
	Denom  string `json:"denom" toml:"denom"`
	Amount Amount `json:"amount" toml:"amount"`
}

func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: NewAmount(amount)}
}

func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

func (c Coin) Validate() error {
	if !denomPattern.MatchString(c.Denom) {
		return fmt.Errorf("%w: %q", ErrInvalidDenom, c.Denom)
	}
	return nil
}

// ParseCoin parses the "<amount><denom>" form, e.g. "1000000uosmo".
func ParseCoin(s string) (Coin, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return Coin{}, fmt.Errorf("invalid coin %q", s)
	}
	amount, err := ParseAmount(s[:i])
	if err != nil {
		return Coin{}, err
	}
	coin := Coin{Denom: s[i:], Amount: amount}
	if err := coin.Validate(); err != nil {
		return Coin{}, err
	}
	return coin, nil
}

// Coins is a list of coins. Methods that build Coins keep it sorted by
// denom with at most one entry per denom and no zero amounts.
type Coins []Coin

func NewCoins(coins ...Coin) (Coins, error) {
	var out Coins
	for _, c := range coins {
		var err error
		if out, err = out.Add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Add merges coin into the set.
func (cs Coins) Add(coin Coin) (Coins, error) {
	if coin.Amount.IsZero() {
		return cs, nil
	}
	out := make(Coins, 0, len(cs)+1)
	merged := false
	for _, c := range cs {
		if c.Denom == coin.Denom {
			sum, err := c.Amount.Add(coin.Amount)
			if err != nil {
				return nil, err
			}
			c.Amount = sum
			merged = true
		}
		out = append(out, c)
	}
	if !merged {
		out = append(out, coin)
	}
	out.sort()
	return out, nil
}

func (cs Coins) AmountOf(denom string) Amount {
	for _, c := range cs {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return ZeroAmount()
}

func (cs Coins) IsZero() bool {
	for _, c := range cs {
		if !c.Amount.IsZero() {
			return false
		}
	}
	return true
}

// NonZero drops zero entries and merges duplicates.
func (cs Coins) NonZero() (Coins, error) {
	return NewCoins(cs...)
}

func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}

func (cs Coins) sort() {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Denom < cs[j].Denom })
}
