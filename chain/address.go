package chain

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

var ErrInvalidAddress = errors.New("invalid address")

// AddressCodec validates and derives bech32 account addresses for one chain.
type AddressCodec struct {
	prefix string
}

func NewAddressCodec(prefix string) AddressCodec {
	return AddressCodec{prefix: prefix}
}

func (c AddressCodec) Prefix() string {
	return c.prefix
}

// Validate checks the checksum, the human readable part and the payload
// length (20 byte accounts or 32 byte contracts).
func (c AddressCodec) Validate(address string) error {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}
	if hrp != c.prefix {
		return fmt.Errorf("%w: %q: expected prefix %q", ErrInvalidAddress, address, c.prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return fmt.Errorf("%w: %q: payload is %d bytes", ErrInvalidAddress, address, len(raw))
	}
	return nil
}

// Derive returns the deterministic 32 byte address for a label. Contracts
// and module accounts get their addresses this way.
func (c AddressCodec) Derive(label string) string {
	sum := sha256.Sum256([]byte(label))
	return c.encode(sum[:])
}

// Account returns a 20 byte account address for a label.
func (c AddressCodec) Account(label string) string {
	sum := sha256.Sum256([]byte("account/" + label))
	return c.encode(sum[:20])
}

func (c AddressCodec) encode(raw []byte) string {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		panic(err)
	}
	addr, err := bech32.Encode(c.prefix, data)
	if err != nil {
		panic(err)
	}
	return addr
}
