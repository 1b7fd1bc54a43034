// Package ibcadapter sends the pipeline's outbound IBC transfers and keeps
// the table that ties each packet back to the address its funds return to.
package ibcadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/memo"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

const CodeName = "ibc-transfer-adapter"

// TransferReplyID is the sub-message id of the outbound transfer.
const TransferReplyID uint64 = 1

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTransferInFlight    = errors.New("an ibc transfer is already in flight")
	ErrMissingResponseData = errors.New("transfer reply carries no response data")
	ErrTransferNotFound    = errors.New("in progress ibc transfer not found")
	ErrNoFundsToRefund     = errors.New("no funds to refund")
	ErrUnknownOutcome      = errors.New("unknown ibc lifecycle outcome")
	ErrReplyID             = errors.New("unknown reply id")
)

// AckIDAlreadyExistsError is returned when a packet key is already tracked.
type AckIDAlreadyExistsError struct {
	ChannelID  string
	SequenceID uint64
}

func (e *AckIDAlreadyExistsError) Error() string {
	return fmt.Sprintf("ack id already exists for channel %s sequence %d", e.ChannelID, e.SequenceID)
}

var Logger zerolog.Logger

var resolutions metric.Int64Counter

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "ibcadapter").Logger()

	var err error
	resolutions, err = otel.Meter("github.com/Cogwheel-Validator/spectra-entry-point/ibcadapter").Int64Counter(
		"ibcadapter.resolutions",
		metric.WithDescription("Settled IBC transfers by outcome"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		Logger.Error().Err(err).Msg("failed to create resolution counter")
	}
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

var (
	entryPointContractAddress = store.NewItem[string]("entry_point_contract_address")
	inFlightTransfer          = store.NewItem[models.InProgressIbcTransfer]("in_flight_transfer")
	inProgressTransfers       = store.NewMap[models.InProgressIbcTransfer]("in_progress_ibc_transfers")
)

func transferKey(channel string, sequence uint64) []byte {
	return store.JoinKey(store.StringKey(channel), store.Uint64Key(sequence))
}

// Adapter is the IBC transfer adapter contract.
type Adapter struct{}

var (
	_ host.Contract     = Adapter{}
	_ host.Instantiater = Adapter{}
	_ host.Queryable    = Adapter{}
	_ host.Replier      = Adapter{}
	_ host.Sudoer       = Adapter{}
)

func (Adapter) Instantiate(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.IbcAdapterInstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	if err := deps.API.Validate(msg.EntryPointContractAddress); err != nil {
		return nil, err
	}
	if err := entryPointContractAddress.Save(deps.Storage, msg.EntryPointContractAddress); err != nil {
		return nil, err
	}
	return chain.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("entry_point_contract_address", msg.EntryPointContractAddress), nil
}

func (Adapter) Execute(ctx context.Context, deps host.Deps, env chain.Env, info chain.Info, raw json.RawMessage) (*chain.Response, error) {
	var msg models.IbcAdapterExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	if msg.IbcTransfer == nil {
		return nil, models.ErrUnknownMsg
	}
	return ibcTransfer(deps, env, info, *msg.IbcTransfer)
}

func ibcTransfer(deps host.Deps, env chain.Env, info chain.Info, msg models.IbcTransferMsg) (*chain.Response, error) {
	entryPoint, err := entryPointContractAddress.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != entryPoint {
		return nil, ErrUnauthorized
	}
	busy, err := inFlightTransfer.Exists(deps.Storage)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrTransferInFlight
	}

	memoWithCallback, err := memo.InjectCallback(msg.Info.Memo, env.Contract.Address)
	if err != nil {
		return nil, err
	}
	var fee *chain.PacketFee
	if msg.Info.Fee != nil {
		if _, err := msg.Info.Fee.OneCoin(); err != nil {
			return nil, err
		}
		pf := msg.Info.Fee.PacketFee()
		fee = &pf
	}

	if err := inFlightTransfer.Save(deps.Storage, models.InProgressIbcTransfer{
		RecoverAddress: msg.Info.RecoverAddress,
		ChannelID:      msg.Info.SourceChannel,
		Coin:           msg.Coin,
	}); err != nil {
		return nil, err
	}

	transfer := chain.Msg{IbcTransfer: &chain.IbcTransfer{
		SourceChannel:    msg.Info.SourceChannel,
		Sender:           env.Contract.Address,
		Receiver:         msg.Info.Receiver,
		Token:            msg.Coin,
		Memo:             memoWithCallback,
		TimeoutTimestamp: msg.TimeoutTimestamp,
		Fee:              fee,
	}}
	return chain.NewResponse().
		AddAttribute("action", "execute_ibc_transfer").
		AddSubMessage(chain.StageTransfer, TransferReplyID, transfer, chain.ReplySuccess), nil
}

// Reply moves the in-flight record under the packet key the transfer got.
func (Adapter) Reply(ctx context.Context, deps host.Deps, env chain.Env, reply chain.Reply) (*chain.Response, error) {
	if reply.ID != TransferReplyID {
		return nil, fmt.Errorf("%w: %d", ErrReplyID, reply.ID)
	}
	if reply.Result.Ok == nil || len(reply.Result.Ok.Data) == 0 {
		return nil, ErrMissingResponseData
	}
	var transfer chain.MsgTransferResponse
	if err := json.Unmarshal(reply.Result.Ok.Data, &transfer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingResponseData, err)
	}

	record, err := inFlightTransfer.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if err := inFlightTransfer.Remove(deps.Storage); err != nil {
		return nil, err
	}

	key := transferKey(record.ChannelID, transfer.Sequence)
	exists, err := inProgressTransfers.Has(deps.Storage, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &AckIDAlreadyExistsError{ChannelID: record.ChannelID, SequenceID: transfer.Sequence}
	}
	if err := inProgressTransfers.Save(deps.Storage, key, record); err != nil {
		return nil, err
	}

	Logger.Debug().
		Str("channel", record.ChannelID).
		Uint64("sequence", transfer.Sequence).
		Str("recover_address", record.RecoverAddress).
		Msg("tracking ibc transfer")
	return chain.NewResponse().
		AddAttribute("action", "ibc_transfer_reply").
		AddAttribute("channel_id", record.ChannelID).
		AddAttribute("sequence_id", fmt.Sprint(transfer.Sequence)), nil
}

// Sudo settles a tracked transfer once its ack or timeout arrives.
func (Adapter) Sudo(ctx context.Context, deps host.Deps, env chain.Env, msg chain.SudoMsg) (*chain.Response, error) {
	if msg.IbcLifecycleComplete == nil {
		return nil, models.ErrUnknownMsg
	}
	channel, sequence, outcome, err := outcomeOf(*msg.IbcLifecycleComplete)
	if err != nil {
		return nil, err
	}

	key := transferKey(channel, sequence)
	var record *models.InProgressIbcTransfer
	rec, err := inProgressTransfers.Load(deps.Storage, key)
	switch {
	case err == nil:
		record = &rec
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	var balance chain.Coins
	if outcome != AckSuccess {
		if balance, err = deps.Querier.AllBalances(env.Contract.Address); err != nil {
			return nil, err
		}
	}
	res, err := Resolve(record, outcome, balance)
	if err != nil {
		return nil, err
	}
	if err := inProgressTransfers.Remove(deps.Storage, key); err != nil {
		return nil, err
	}

	resp := chain.NewResponse().AddAttribute("action", res.Action)
	if len(res.Refund) > 0 {
		resp.AddMessage(chain.StageRecover, chain.NewBankSend(res.To, res.Refund...))
	}
	if resolutions != nil {
		resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}
	Logger.Info().
		Str("channel", channel).
		Uint64("sequence", sequence).
		Str("outcome", outcome.String()).
		Str("refund", res.Refund.String()).
		Msg("ibc transfer settled")
	return resp, nil
}

func (Adapter) Query(ctx context.Context, deps host.Deps, env chain.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg models.IbcAdapterQueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnknownMsg, err)
	}
	switch {
	case msg.InProgressIbcTransfer != nil:
		q := msg.InProgressIbcTransfer
		rec, err := inProgressTransfers.Load(deps.Storage, transferKey(q.ChannelID, q.SequenceID))
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%d", ErrTransferNotFound, q.ChannelID, q.SequenceID)
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(rec)
	case msg.InFlightTransfer != nil:
		rec, ok, err := inFlightTransfer.MayLoad(deps.Storage)
		if err != nil {
			return nil, err
		}
		if !ok {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(rec)
	default:
		return nil, models.ErrUnknownMsg
	}
}
