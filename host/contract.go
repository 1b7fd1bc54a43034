package host

import (
	"context"
	"encoding/json"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

// Contract is the execute entry point every contract code implements.
// Implementations keep no state of their own: everything lives in
// deps.Storage, which is scoped to the contract address.
type Contract interface {
	Execute(ctx context.Context, deps Deps, env chain.Env, info chain.Info, msg json.RawMessage) (*chain.Response, error)
}

type Instantiater interface {
	Instantiate(ctx context.Context, deps Deps, env chain.Env, info chain.Info, msg json.RawMessage) (*chain.Response, error)
}

// Queryable contracts answer smart queries against read-only storage.
type Queryable interface {
	Query(ctx context.Context, deps Deps, env chain.Env, msg json.RawMessage) (json.RawMessage, error)
}

// Replier contracts receive the outcome of their sub-messages.
type Replier interface {
	Reply(ctx context.Context, deps Deps, env chain.Env, reply chain.Reply) (*chain.Response, error)
}

// Sudoer contracts receive privileged callbacks from host modules.
type Sudoer interface {
	Sudo(ctx context.Context, deps Deps, env chain.Env, msg chain.SudoMsg) (*chain.Response, error)
}

// Deps is what a contract entry point can reach.
type Deps struct {
	Storage store.KV
	Querier QueryClient
	API     chain.AddressCodec
}

// QueryClient reads other contracts and bank balances from inside a
// contract call. It sees the writes made so far in the same transaction.
type QueryClient interface {
	Balance(address, denom string) (chain.Coin, error)
	AllBalances(address string) (chain.Coins, error)
	QuerySmart(contract string, msg any, out any) error
}
