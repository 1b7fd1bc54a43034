package models

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

var (
	ErrRoutesEmpty                         = errors.New("routes cannot be empty")
	ErrSwapOperationsEmpty                 = errors.New("swap operations cannot be empty")
	ErrSwapOperationsAssetInDenomMismatch  = errors.New("first swap operation denom in differs from swap asset in denom")
	ErrSwapOperationsAssetOutDenomMismatch = errors.New("last swap operation denom out differs from swap asset out denom")
	ErrInvalidSwap                         = errors.New("swap must set exactly one variant")
)

// SwapOperation represents a single pool hop in a swap route
type SwapOperation struct {
	Pool     string `json:"pool"`
	DenomIn  string `json:"denom_in"`
	DenomOut string `json:"denom_out"`
	// Interface is used by some DEXs (like Injective), optional
	Interface *string `json:"interface,omitempty"`
}

// Route is one leg of a smart swap: the asset offered to the leg and the hops it takes
type Route struct {
	OfferAsset asset.Asset     `json:"offer_asset"`
	Operations []SwapOperation `json:"operations"`
}

// SwapExactAssetIn swaps the whole input through the operations
type SwapExactAssetIn struct {
	SwapVenueName string          `json:"swap_venue_name"`
	Operations    []SwapOperation `json:"operations"`
}

// SwapExactAssetOut swaps only as much input as is needed for the wanted output.
// The unused input goes to RefundAddress.
type SwapExactAssetOut struct {
	SwapVenueName string          `json:"swap_venue_name"`
	Operations    []SwapOperation `json:"operations"`
	RefundAddress *string         `json:"refund_address,omitempty"`
}

// SmartSwapExactAssetIn splits the input over several routes on one venue
type SmartSwapExactAssetIn struct {
	SwapVenueName string  `json:"swap_venue_name"`
	Routes        []Route `json:"routes"`
}

// Swap is the user swap union type
type Swap struct {
	SwapExactAssetIn      *SwapExactAssetIn      `json:"swap_exact_asset_in,omitempty"`
	SwapExactAssetOut     *SwapExactAssetOut     `json:"swap_exact_asset_out,omitempty"`
	SmartSwapExactAssetIn *SmartSwapExactAssetIn `json:"smart_swap_exact_asset_in,omitempty"`
}

// Validate checks that exactly one variant is set.
func (s Swap) Validate() error {
	n := 0
	if s.SwapExactAssetIn != nil {
		n++
	}
	if s.SwapExactAssetOut != nil {
		n++
	}
	if s.SmartSwapExactAssetIn != nil {
		n++
	}
	if n != 1 {
		return ErrInvalidSwap
	}
	return nil
}

// IsExactOut reports whether the user swap fixes its output amount.
func (s Swap) IsExactOut() bool {
	return s.SwapExactAssetOut != nil
}

// VenueName returns the swap venue of whichever variant is set.
func (s Swap) VenueName() string {
	switch {
	case s.SwapExactAssetIn != nil:
		return s.SwapExactAssetIn.SwapVenueName
	case s.SwapExactAssetOut != nil:
		return s.SwapExactAssetOut.SwapVenueName
	case s.SmartSwapExactAssetIn != nil:
		return s.SmartSwapExactAssetIn.SwapVenueName
	default:
		return ""
	}
}

// Amount is the sum of the route offers.
func (s SmartSwapExactAssetIn) Amount() (chain.Amount, error) {
	total := chain.ZeroAmount()
	for _, r := range s.Routes {
		var err error
		if total, err = total.Add(r.OfferAsset.Amount()); err != nil {
			return chain.Amount{}, err
		}
	}
	return total, nil
}

// LargestRouteIndex returns the index of the route with the largest offer.
// On ties the last of the largest routes wins.
func (s SmartSwapExactAssetIn) LargestRouteIndex() (int, error) {
	if len(s.Routes) == 0 {
		return 0, ErrRoutesEmpty
	}
	idx := 0
	for i, r := range s.Routes {
		if r.OfferAsset.Amount().Cmp(s.Routes[idx].OfferAsset.Amount()) >= 0 {
			idx = i
		}
	}
	return idx, nil
}

// Rebalance makes the route offers sum to target by applying the whole
// difference to the largest route.
func (s *SmartSwapExactAssetIn) Rebalance(target chain.Amount) error {
	if len(s.Routes) == 0 {
		return ErrRoutesEmpty
	}
	sum, err := s.Amount()
	if err != nil {
		return err
	}
	idx, err := s.LargestRouteIndex()
	if err != nil {
		return err
	}
	largest := &s.Routes[idx].OfferAsset
	switch sum.Cmp(target) {
	case -1:
		diff, err := target.Sub(sum)
		if err != nil {
			return err
		}
		return largest.Add(diff)
	case 1:
		diff, err := sum.Sub(target)
		if err != nil {
			return err
		}
		if err := largest.Sub(diff); err != nil {
			return fmt.Errorf("largest route cannot absorb surplus: %w", err)
		}
	}
	return nil
}

// ValidateSwapOperations checks that the hops start at denomIn and end at denomOut.
func ValidateSwapOperations(ops []SwapOperation, denomIn, denomOut string) error {
	if len(ops) == 0 {
		return ErrSwapOperationsEmpty
	}
	if ops[0].DenomIn != denomIn {
		return fmt.Errorf("%w: %s != %s", ErrSwapOperationsAssetInDenomMismatch, ops[0].DenomIn, denomIn)
	}
	if last := ops[len(ops)-1]; last.DenomOut != denomOut {
		return fmt.Errorf("%w: %s != %s", ErrSwapOperationsAssetOutDenomMismatch, last.DenomOut, denomOut)
	}
	return nil
}
