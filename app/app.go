// Package app wires the contracts into a host and deploys them from a
// genesis file.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/config"
	"github.com/Cogwheel-Validator/spectra-entry-point/entrypoint"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/ibcadapter"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
	"github.com/Cogwheel-Validator/spectra-entry-point/venue/pool"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "app").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// Node is a booted host with the deployed contract addresses.
type Node struct {
	Host       *host.Host
	EntryPoint string
	IbcAdapter string
	Venues     map[string]string // venue name to adapter address
	Pools      map[string][]string
	Tokens     map[string]string // token label to cw20 address

	db *store.DB
}

// RegisterCodes stores every contract code the node can instantiate.
func RegisterCodes(h *host.Host) {
	h.StoreCode(entrypoint.CodeName, entrypoint.EntryPoint{})
	h.StoreCode(ibcadapter.CodeName, ibcadapter.Adapter{})
	h.StoreCode(pool.CodeName, pool.Venue{})
	h.StoreCode(host.Cw20CodeName, host.Cw20Token{})
}

// Open opens the store named by cfg, boots a host on it and deploys g. A
// store that already holds the entry point is reused as is.
func Open(ctx context.Context, cfg *config.Config, g *config.Genesis, opts ...host.Option) (*Node, error) {
	var (
		db  *store.DB
		err error
	)
	if cfg.DataDir == "" {
		db, err = store.OpenMemory()
	} else {
		db, err = store.Open(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	chainID := cfg.ChainID
	if g.ChainID != "" {
		chainID = g.ChainID
	}
	opts = append([]host.Option{
		host.WithChainID(chainID),
		host.WithAddressCodec(chain.NewAddressCodec(cfg.Bech32Prefix)),
	}, opts...)
	h, err := host.New(db, opts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	n, err := Deploy(ctx, h, g)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	n.db = db
	return n, nil
}

// Close closes the underlying store.
func (n *Node) Close() error {
	if n.db == nil {
		return nil
	}
	return n.db.Close()
}

// Deploy registers the codes on h and instantiates everything g describes.
// If the entry point already exists only the addresses are resolved.
func Deploy(ctx context.Context, h *host.Host, g *config.Genesis) (*Node, error) {
	RegisterCodes(h)
	api := h.API()
	n := &Node{
		Host:       h,
		EntryPoint: h.ContractAddress(g.EntryPointLabel),
		IbcAdapter: h.ContractAddress(g.IbcAdapterLabel),
		Venues:     make(map[string]string),
		Pools:      make(map[string][]string),
		Tokens:     make(map[string]string),
	}
	for _, v := range g.Venues {
		n.Venues[v.Name] = h.ContractAddress(v.Label)
	}
	for _, tok := range g.Tokens {
		n.Tokens[tok.Label] = h.ContractAddress(tok.Label)
	}

	existing, err := h.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[n.EntryPoint]; ok {
		Logger.Info().Str("entry_point", n.EntryPoint).Msg("state already deployed, skipping genesis")
		return n, nil
	}

	admin := api.Account(g.Admin)
	for _, acc := range g.Accounts {
		addr := acc.Address
		if addr == "" {
			addr = api.Account(acc.Label)
		}
		coins, err := config.ParseCoins(acc.Coins)
		if err != nil {
			return nil, err
		}
		if err := h.Mint(ctx, addr, coins...); err != nil {
			return nil, fmt.Errorf("failed to fund %s: %w", addr, err)
		}
	}

	for _, tok := range g.Tokens {
		msg := chain.Cw20InstantiateMsg{Name: tok.Name, Symbol: tok.Symbol, Decimals: tok.Decimals, Minter: admin}
		for _, b := range tok.Balances {
			amount, err := chain.ParseAmount(b.Amount)
			if err != nil {
				return nil, err
			}
			msg.InitialBalances = append(msg.InitialBalances, chain.Cw20Balance{Address: api.Account(b.Account), Amount: amount})
		}
		if _, _, err := h.Instantiate(ctx, admin, host.Cw20CodeName, tok.Label, msg, nil); err != nil {
			return nil, fmt.Errorf("failed to create token %s: %w", tok.Label, err)
		}
	}

	if _, _, err := h.Instantiate(ctx, admin, ibcadapter.CodeName, g.IbcAdapterLabel,
		models.IbcAdapterInstantiateMsg{EntryPointContractAddress: n.EntryPoint}, nil); err != nil {
		return nil, fmt.Errorf("failed to create ibc adapter: %w", err)
	}

	venues := make([]models.SwapVenue, 0, len(g.Venues))
	for _, v := range g.Venues {
		addr, _, err := h.Instantiate(ctx, admin, pool.CodeName, v.Label,
			models.VenueInstantiateMsg{EntryPointContractAddress: n.EntryPoint}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create venue %s: %w", v.Name, err)
		}
		for i, p := range v.Pools {
			coins, err := config.ParseCoins(p.Coins)
			if err != nil {
				return nil, err
			}
			res, err := h.Execute(ctx, admin, addr, models.VenueExecuteMsg{CreatePool: &models.CreatePool{FeeBps: p.FeeBps}}, coins)
			if err != nil {
				return nil, fmt.Errorf("failed to create pool %d on %s: %w", i, v.Name, err)
			}
			n.Pools[v.Name] = append(n.Pools[v.Name], string(res.Data))
		}
		venues = append(venues, models.SwapVenue{Name: v.Name, AdapterContractAddress: addr})
	}

	if _, _, err := h.Instantiate(ctx, admin, entrypoint.CodeName, g.EntryPointLabel, models.EntryPointInstantiateMsg{
		SwapVenues:                 venues,
		IbcTransferContractAddress: n.IbcAdapter,
	}, nil); err != nil {
		return nil, fmt.Errorf("failed to create entry point: %w", err)
	}

	Logger.Info().
		Str("entry_point", n.EntryPoint).
		Str("ibc_adapter", n.IbcAdapter).
		Int("venues", len(venues)).
		Int("tokens", len(g.Tokens)).
		Msg("genesis deployed")
	return n, nil
}
