package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "host").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

var (
	ErrCodeNotFound     = errors.New("contract code not found")
	ErrContractNotFound = errors.New("contract not found")
	ErrContractExists   = errors.New("contract already exists")
	ErrNotQueryable     = errors.New("contract does not support queries")
	ErrNoReplyHandler   = errors.New("contract does not handle replies")
	ErrNoSudoHandler    = errors.New("contract does not handle sudo")
	ErrCallDepth        = errors.New("max call depth exceeded")
	ErrInvalidMsg       = errors.New("invalid message")
)

const maxCallDepth = 32

// ContractRecord is the registry entry written for every instantiated contract.
type ContractRecord struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Creator string `json:"creator"`
}

var (
	contractRegistry = store.NewMap[ContractRecord]("contracts")
	blockHeight      = store.NewItem[uint64]("host/height")
)

// Dispatched is one message the host ran while handling a transaction.
type Dispatched struct {
	Depth  int         `json:"depth"`
	Stage  chain.Stage `json:"stage,omitempty"`
	Sender string      `json:"sender"`
	Msg    chain.Msg   `json:"msg"`
}

// Result describes a committed transaction.
type Result struct {
	RunID    string        `json:"run_id"`
	Height   uint64        `json:"height"`
	Events   []chain.Event `json:"events"`
	Messages []Dispatched  `json:"messages"`
	Data     []byte        `json:"data,omitempty"`
}

// Attr returns the first attribute named key on an event of type typ.
func (r *Result) Attr(typ, key string) (string, bool) {
	for _, ev := range r.Events {
		if ev.Type != typ {
			continue
		}
		if v, ok := ev.Attr(key); ok {
			return v, true
		}
	}
	return "", false
}

// Host is an in-process contract runtime on top of a LevelDB store. Every
// state-changing call runs in its own database transaction.
type Host struct {
	db      *store.DB
	api     chain.AddressCodec
	chainID string
	clock   func() time.Time

	mu    sync.RWMutex
	codes map[string]Contract

	txMu sync.Mutex

	tracer  trace.Tracer
	metrics instruments
}

type Option func(*Host)

func WithClock(clock func() time.Time) Option {
	return func(h *Host) { h.clock = clock }
}

func WithChainID(id string) Option {
	return func(h *Host) { h.chainID = id }
}

func WithAddressCodec(api chain.AddressCodec) Option {
	return func(h *Host) { h.api = api }
}

func New(db *store.DB, opts ...Option) (*Host, error) {
	h := &Host{
		db:      db,
		api:     chain.NewAddressCodec("osmo"),
		chainID: "localnet-1",
		clock:   time.Now,
		codes:   make(map[string]Contract),
		tracer:  newTracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	m, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("failed to create host metrics: %w", err)
	}
	h.metrics = m
	return h, nil
}

func (h *Host) API() chain.AddressCodec { return h.api }
func (h *Host) ChainID() string         { return h.chainID }

// Now returns the current block time.
func (h *Host) Now() time.Time { return h.clock() }

// StoreCode registers contract code under name. Contracts are instantiated
// from a name so that the registry survives restarts.
func (h *Host) StoreCode(name string, c Contract) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.codes[name] = c
}

func (h *Host) code(name string) (Contract, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.codes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, name)
	}
	return c, nil
}

func (h *Host) contract(kv store.KV, address string) (Contract, error) {
	rec, err := contractRegistry.Load(kv, store.StringKey(address))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	return h.code(rec.Code)
}

// ContractAddress is the address a contract instantiated with label gets.
func (h *Host) ContractAddress(label string) string {
	return h.api.Derive("contract/" + label)
}

// Contracts lists every instantiated contract by address.
func (h *Host) Contracts(ctx context.Context) (map[string]ContractRecord, error) {
	out := make(map[string]ContractRecord)
	err := h.db.View(func(kv store.KV) error {
		return contractRegistry.Range(kv, nil, func(k []byte, rec ContractRecord) bool {
			out[string(k[2:])] = rec
			return true
		})
	})
	return out, err
}

// Instantiate creates a contract from code at the address derived from label.
func (h *Host) Instantiate(ctx context.Context, sender, code, label string, msg any, funds chain.Coins) (string, *Result, error) {
	address := h.ContractAddress(label)
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	res, err := h.transact(ctx, "instantiate", func(r *run, kv store.KV) error {
		c, err := h.code(code)
		if err != nil {
			return err
		}
		exists, err := contractRegistry.Has(kv, store.StringKey(address))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrContractExists, address)
		}
		if err := contractRegistry.Save(kv, store.StringKey(address), ContractRecord{Code: code, Label: label, Creator: sender}); err != nil {
			return err
		}
		if err := bankSend(kv, sender, address, funds); err != nil {
			return err
		}
		inst, ok := c.(Instantiater)
		if !ok {
			return nil
		}
		resp, err := inst.Instantiate(r.ctx, r.deps(kv, address), r.env(address), chain.Info{Sender: sender, Funds: funds}, raw)
		if err != nil {
			return fmt.Errorf("instantiate %s: %w", label, err)
		}
		data, events, err := r.handleResponse(kv, address, resp, 0)
		if err != nil {
			return err
		}
		r.events = append(r.events, wasmEvents("instantiate", address, resp)...)
		r.events = append(r.events, events...)
		r.data = data
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return address, res, nil
}

// Execute runs msg on contract as sender with funds attached.
func (h *Host) Execute(ctx context.Context, sender, contract string, msg any, funds chain.Coins) (*Result, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	return h.transact(ctx, "execute", func(r *run, kv store.KV) error {
		if err := h.api.Validate(sender); err != nil {
			return err
		}
		data, events, err := r.executeContract(kv, sender, contract, funds, raw, 0)
		r.events = append(r.events, events...)
		r.data = data
		return err
	})
}

// Query runs a smart query against the latest committed state.
func (h *Host) Query(ctx context.Context, contract string, msg any) (json.RawMessage, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	var out json.RawMessage
	err = h.db.View(func(kv store.KV) error {
		r := h.newRun(ctx, "", 0)
		out, err = r.query(kv, contract, raw)
		return err
	})
	return out, err
}

// QueryInto is Query decoding the response into out.
func (h *Host) QueryInto(ctx context.Context, contract string, msg any, out any) error {
	raw, err := h.Query(ctx, contract, msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Mint credits coins to an account. It exists for genesis and tests.
func (h *Host) Mint(ctx context.Context, to string, coins ...chain.Coin) error {
	_, err := h.transact(ctx, "mint", func(r *run, kv store.KV) error {
		if err := h.api.Validate(to); err != nil {
			return err
		}
		return bankMint(kv, to, coins)
	})
	return err
}

func (h *Host) Balance(ctx context.Context, address, denom string) (chain.Coin, error) {
	var amount chain.Amount
	err := h.db.View(func(kv store.KV) error {
		var err error
		amount, err = bankBalance(kv, address, denom)
		return err
	})
	return chain.Coin{Denom: denom, Amount: amount}, err
}

func (h *Host) AllBalances(ctx context.Context, address string) (chain.Coins, error) {
	var coins chain.Coins
	err := h.db.View(func(kv store.KV) error {
		var err error
		coins, err = bankAllBalances(kv, address)
		return err
	})
	return coins, err
}

// transact runs fn in one database transaction at a fresh block height.
func (h *Host) transact(ctx context.Context, op string, fn func(r *run, kv store.KV) error) (*Result, error) {
	runID := uuid.NewString()
	ctx, span := h.tracer.Start(ctx, "host."+op, trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("chain_id", h.chainID),
	))
	defer span.End()

	h.txMu.Lock()
	defer h.txMu.Unlock()

	start := time.Now()
	var res *Result
	err := h.db.Update(func(kv store.KV) error {
		height, _, err := blockHeight.MayLoad(kv)
		if err != nil {
			return err
		}
		height++
		if err := blockHeight.Save(kv, height); err != nil {
			return err
		}
		r := h.newRun(ctx, runID, height)
		if err := fn(r, kv); err != nil {
			return err
		}
		res = &Result{RunID: runID, Height: height, Events: r.events, Messages: r.trace, Data: r.data}
		return nil
	})

	outcome := "committed"
	if err != nil {
		outcome = "reverted"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	h.metrics.txs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
	h.metrics.txDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("op", op)))

	ev := Logger.Debug()
	if err != nil {
		ev = Logger.Warn().Err(err)
	}
	ev.Str("run_id", runID).Str("op", op).Str("outcome", outcome).Dur("took", time.Since(start)).Msg("transaction finished")

	if err != nil {
		return nil, err
	}
	return res, nil
}
