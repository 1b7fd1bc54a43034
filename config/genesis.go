package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	getter "github.com/hashicorp/go-getter"
	"github.com/pelletier/go-toml/v2"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
)

const (
	DefaultEntryPointLabel = "entry-point"
	DefaultIbcAdapterLabel = "ibc-transfer-adapter"
	DefaultAdminLabel      = "admin"
)

// Genesis is the initial state a node boots from: funded accounts, cw20
// tokens and the swap venues with their pools.
type Genesis struct {
	ChainID         string           `toml:"chain_id"`
	Admin           string           `toml:"admin"`
	EntryPointLabel string           `toml:"entry_point_label"`
	IbcAdapterLabel string           `toml:"ibc_adapter_label"`
	Accounts        []GenesisAccount `toml:"accounts"`
	Tokens          []GenesisToken   `toml:"tokens"`
	Venues          []GenesisVenue   `toml:"venues"`
}

// GenesisAccount funds an account. Address wins over Label when both are set.
type GenesisAccount struct {
	Label   string   `toml:"label"`
	Address string   `toml:"address"`
	Coins   []string `toml:"coins"`
}

type GenesisToken struct {
	Label    string                `toml:"label"`
	Name     string                `toml:"name"`
	Symbol   string                `toml:"symbol"`
	Decimals uint8                 `toml:"decimals"`
	Balances []GenesisTokenBalance `toml:"balances"`
}

type GenesisTokenBalance struct {
	Account string `toml:"account"`
	Amount  string `toml:"amount"`
}

type GenesisVenue struct {
	Name  string        `toml:"name"`
	Label string        `toml:"label"`
	Pools []GenesisPool `toml:"pools"`
}

// GenesisPool is created by the admin, who must hold both coins.
type GenesisPool struct {
	FeeBps uint32   `toml:"fee_bps"`
	Coins  []string `toml:"coins"`
}

// LoadGenesis fetches source, a local path or any go-getter URL, and
// decodes it.
func LoadGenesis(ctx context.Context, source string) (*Genesis, error) {
	if source == "" {
		return nil, fmt.Errorf("genesis source is required")
	}
	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	dir, err := os.MkdirTemp("", "entrypoint-genesis-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	dst := filepath.Join(dir, "genesis.toml")
	client := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to fetch genesis from %s: %w", source, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes a TOML genesis, fills in the default labels and
// checks every coin string.
func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if err := toml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse TOML genesis: %w", err)
	}
	if g.Admin == "" {
		g.Admin = DefaultAdminLabel
	}
	if g.EntryPointLabel == "" {
		g.EntryPointLabel = DefaultEntryPointLabel
	}
	if g.IbcAdapterLabel == "" {
		g.IbcAdapterLabel = DefaultIbcAdapterLabel
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &g, nil
}

func (g *Genesis) validate() error {
	for _, acc := range g.Accounts {
		if acc.Label == "" && acc.Address == "" {
			return fmt.Errorf("account needs a label or an address")
		}
		if _, err := ParseCoins(acc.Coins); err != nil {
			return fmt.Errorf("account %s%s: %w", acc.Label, acc.Address, err)
		}
	}
	for _, tok := range g.Tokens {
		if tok.Label == "" {
			return fmt.Errorf("token %s needs a label", tok.Symbol)
		}
		for _, b := range tok.Balances {
			if _, err := chain.ParseAmount(b.Amount); err != nil {
				return fmt.Errorf("token %s balance for %s: %w", tok.Label, b.Account, err)
			}
		}
	}
	names := make(map[string]bool)
	for _, v := range g.Venues {
		if v.Name == "" || v.Label == "" {
			return fmt.Errorf("venue needs a name and a label")
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate venue %s", v.Name)
		}
		names[v.Name] = true
		for i, p := range v.Pools {
			coins, err := ParseCoins(p.Coins)
			if err != nil {
				return fmt.Errorf("venue %s pool %d: %w", v.Name, i, err)
			}
			if len(coins) != 2 {
				return fmt.Errorf("venue %s pool %d: needs two distinct coins", v.Name, i)
			}
			if p.FeeBps >= 10_000 {
				return fmt.Errorf("venue %s pool %d: fee_bps must be below 10000", v.Name, i)
			}
		}
	}
	return nil
}

// ParseCoins parses coin strings such as "1000untrn" into sorted coins.
func ParseCoins(raw []string) (chain.Coins, error) {
	coins := make([]chain.Coin, 0, len(raw))
	for _, s := range raw {
		c, err := chain.ParseCoin(s)
		if err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return chain.NewCoins(coins...)
}
