package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// maxAmountBits caps amounts at 128 bits, the width of an on-chain Uint128.
const maxAmountBits = 128

var (
	ErrOverflow      = errors.New("amount overflow")
	ErrUnderflow     = errors.New("amount underflow")
	ErrDivideByZero  = errors.New("divide by zero")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Amount is an unsigned 128-bit token amount. The zero value is 0.
// Every arithmetic method is checked and reports overflow or underflow
// instead of wrapping or clamping.
type Amount struct {
	v uint256.Int
}

func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

func ZeroAmount() Amount {
	return Amount{}
}

// ParseAmount parses a base-10 string into an Amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if v.BitLen() > maxAmountBits {
		return Amount{}, fmt.Errorf("%w: %q exceeds 128 bits", ErrOverflow, s)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }
func (a Amount) LT(b Amount) bool    { return a.v.Lt(&b.v) }
func (a Amount) GT(b Amount) bool    { return a.v.Gt(&b.v) }

// Uint64 returns the amount and whether it fits in a uint64.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// Int returns a copy of the underlying 256-bit integer for intermediate math.
func (a Amount) Int() *uint256.Int {
	return a.v.Clone()
}

// AmountFromInt narrows a 256-bit intermediate back to an Amount.
func AmountFromInt(v *uint256.Int) (Amount, error) {
	if v.BitLen() > maxAmountBits {
		return Amount{}, ErrOverflow
	}
	return Amount{v: *v}, nil
}

func (a Amount) Add(b Amount) (Amount, error) {
	sum, overflow := new(uint256.Int).AddOverflow(&a.v, &b.v)
	if overflow || sum.BitLen() > maxAmountBits {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return Amount{v: *sum}, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	diff, underflow := new(uint256.Int).SubOverflow(&a.v, &b.v)
	if underflow {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrUnderflow, a, b)
	}
	return Amount{v: *diff}, nil
}

// MulRatio returns floor(a * num / den).
func (a Amount) MulRatio(num, den Amount) (Amount, error) {
	if den.IsZero() {
		return Amount{}, ErrDivideByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(&a.v, &num.v, &den.v)
	if overflow || out.BitLen() > maxAmountBits {
		return Amount{}, fmt.Errorf("%w: %s * %s / %s", ErrOverflow, a, num, den)
	}
	return Amount{v: *out}, nil
}

// MulRatioCeil returns ceil(a * num / den).
func (a Amount) MulRatioCeil(num, den Amount) (Amount, error) {
	floor, err := a.MulRatio(num, den)
	if err != nil {
		return Amount{}, err
	}
	product := new(uint256.Int).Mul(&a.v, &num.v)
	if new(uint256.Int).Mod(product, &den.v).IsZero() {
		return floor, nil
	}
	return floor.Add(NewAmount(1))
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both the canonical quoted form and a bare integer.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		s = unquoted
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
