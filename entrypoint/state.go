package entrypoint

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

var (
	swapVenueMap               = store.NewMap[string]("swap_venue_map")
	ibcTransferContractAddress = store.NewItem[string]("ibc_transfer_contract_address")
	blockedContractAddresses   = store.NewMap[struct{}]("blocked_contract_addresses")
	preSwapOutAssetAmount      = store.NewItem[chain.Amount]("pre_swap_out_asset_amount")
	recoverTempStorage         = store.NewItem[models.RecoverTempStorage]("recover_temp_storage")
)

func loadSwapVenue(kv store.KV, name string) (string, error) {
	addr, err := swapVenueMap.Load(kv, store.StringKey(name))
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrSwapVenueNotFound, name)
	}
	return addr, err
}

func isBlocked(kv store.KV, address string) (bool, error) {
	return blockedContractAddresses.Has(kv, store.StringKey(address))
}
