package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/asset"
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/entrypoint"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/ibcadapter"
	"github.com/Cogwheel-Validator/spectra-entry-point/memo"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
	"github.com/Cogwheel-Validator/spectra-entry-point/venue/pool"
)

const ServiceName = "entrypoint.v1.EntryPointService"

const (
	ExecuteProcedure        = "/" + ServiceName + "/Execute"
	QueryProcedure          = "/" + ServiceName + "/Query"
	DeliverAckProcedure     = "/" + ServiceName + "/DeliverAck"
	DeliverTimeoutProcedure = "/" + ServiceName + "/DeliverTimeout"
	BalanceProcedure        = "/" + ServiceName + "/Balance"
	SimulateProcedure       = "/" + ServiceName + "/Simulate"
	PendingPacketsProcedure = "/" + ServiceName + "/PendingPackets"
)

// ExecuteRequest runs Msg on Contract as Sender. An empty Contract targets
// the entry point.
type ExecuteRequest struct {
	Sender   string          `json:"sender"`
	Contract string          `json:"contract,omitempty"`
	Msg      json.RawMessage `json:"msg"`
	Funds    chain.Coins     `json:"funds,omitempty"`
}

type QueryRequest struct {
	Contract string          `json:"contract,omitempty"`
	Msg      json.RawMessage `json:"msg"`
}

type QueryResponse struct {
	Data json.RawMessage `json:"data"`
}

// DeliverAckRequest acknowledges a pending packet. A failed ack carries
// Error as its reason.
type DeliverAckRequest struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type DeliverTimeoutRequest struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
}

// BalanceRequest returns one denom or, with Denom empty, every balance.
type BalanceRequest struct {
	Address string `json:"address"`
	Denom   string `json:"denom,omitempty"`
}

type BalanceResponse struct {
	Balances chain.Coins `json:"balances"`
}

// SimulateRequest quotes an exact-in swap on a deployed venue.
type SimulateRequest struct {
	Venue      string                 `json:"venue"`
	AssetIn    asset.Asset            `json:"asset_in"`
	Operations []models.SwapOperation `json:"operations"`
}

type PendingPacketsRequest struct{}

type PendingPacketsResponse struct {
	Packets []host.Packet `json:"packets"`
}

// EntryPointServer serves the node over connect.
type EntryPointServer struct {
	node *app.Node
}

func NewEntryPointServer(node *app.Node) *EntryPointServer {
	return &EntryPointServer{node: node}
}

func (s *EntryPointServer) Execute(ctx context.Context, req *connect.Request[ExecuteRequest]) (*connect.Response[host.Result], error) {
	contract := req.Msg.Contract
	if contract == "" {
		contract = s.node.EntryPoint
	}
	if isEmptyMsg(req.Msg.Msg) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("msg is required"))
	}
	res, err := s.node.Host.Execute(ctx, req.Msg.Sender, contract, req.Msg.Msg, req.Msg.Funds)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *EntryPointServer) Query(ctx context.Context, req *connect.Request[QueryRequest]) (*connect.Response[QueryResponse], error) {
	contract := req.Msg.Contract
	if contract == "" {
		contract = s.node.EntryPoint
	}
	if isEmptyMsg(req.Msg.Msg) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("msg is required"))
	}
	data, err := s.node.Host.Query(ctx, contract, req.Msg.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&QueryResponse{Data: data}), nil
}

func (s *EntryPointServer) DeliverAck(ctx context.Context, req *connect.Request[DeliverAckRequest]) (*connect.Response[host.Result], error) {
	ack := chain.SuccessAck
	if !req.Msg.Success {
		reason := req.Msg.Error
		if reason == "" {
			reason = "acknowledgement error"
		}
		ack = chain.ErrorAck(reason)
	}
	res, err := s.node.Host.AcknowledgePacket(ctx, req.Msg.Channel, req.Msg.Sequence, ack)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *EntryPointServer) DeliverTimeout(ctx context.Context, req *connect.Request[DeliverTimeoutRequest]) (*connect.Response[host.Result], error) {
	res, err := s.node.Host.TimeoutPacket(ctx, req.Msg.Channel, req.Msg.Sequence)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *EntryPointServer) Balance(ctx context.Context, req *connect.Request[BalanceRequest]) (*connect.Response[BalanceResponse], error) {
	if err := s.node.Host.API().Validate(req.Msg.Address); err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.Denom != "" {
		c, err := s.node.Host.Balance(ctx, req.Msg.Address, req.Msg.Denom)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&BalanceResponse{Balances: chain.Coins{c}}), nil
	}
	coins, err := s.node.Host.AllBalances(ctx, req.Msg.Address)
	if err != nil {
		return nil, toConnectError(err)
	}
	if coins == nil {
		coins = chain.Coins{}
	}
	return connect.NewResponse(&BalanceResponse{Balances: coins}), nil
}

func (s *EntryPointServer) Simulate(ctx context.Context, req *connect.Request[SimulateRequest]) (*connect.Response[models.SimulateSwapExactAssetInResponse], error) {
	venue, ok := s.node.Venues[req.Msg.Venue]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %s", entrypoint.ErrSwapVenueNotFound, req.Msg.Venue))
	}
	var out models.SimulateSwapExactAssetInResponse
	err := s.node.Host.QueryInto(ctx, venue, models.VenueQueryMsg{
		SimulateSwapExactAssetInWithMetadata: &models.SimulateSwapExactAssetInMeta{
			AssetIn:          req.Msg.AssetIn,
			SwapOperations:   req.Msg.Operations,
			IncludeSpotPrice: true,
		},
	}, &out)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&out), nil
}

func (s *EntryPointServer) PendingPackets(ctx context.Context, req *connect.Request[PendingPacketsRequest]) (*connect.Response[PendingPacketsResponse], error) {
	packets, err := s.node.Host.PendingPackets(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if packets == nil {
		packets = []host.Packet{}
	}
	return connect.NewResponse(&PendingPacketsResponse{Packets: packets}), nil
}

var (
	invalidArgument = []error{
		host.ErrInvalidMsg,
		models.ErrUnknownMsg,
		models.ErrInvalidSwap,
		models.ErrInvalidAction,
		models.ErrRoutesEmpty,
		models.ErrSwapOperationsEmpty,
		models.ErrSwapOperationsAssetInDenomMismatch,
		models.ErrSwapOperationsAssetOutDenomMismatch,
		models.ErrIbcFeesNotOneCoin,
		chain.ErrInvalidAddress,
		chain.ErrInvalidDenom,
		chain.ErrInvalidAmount,
		asset.ErrInvalidFunds,
		asset.ErrInvalidAsset,
		asset.ErrFundsMismatch,
		entrypoint.ErrNoMinAssetProvided,
		entrypoint.ErrNoRefundAddress,
		entrypoint.ErrNoCw20ReceiveMsg,
		entrypoint.ErrDuplicateSwapVenue,
		host.ErrInvalidIbcTransfer,
		memo.ErrInvalidMemo,
	}
	notFound = []error{
		host.ErrContractNotFound,
		host.ErrPacketNotFound,
		entrypoint.ErrSwapVenueNotFound,
		ibcadapter.ErrTransferNotFound,
		pool.ErrPoolNotFound,
	}
	failedPrecondition = []error{
		host.ErrInsufficientFunds,
		host.ErrPacketNotTimedOut,
		host.ErrPacketTimeout,
		host.ErrCallbackNotSender,
		entrypoint.ErrUnauthorized,
		entrypoint.ErrTimeout,
		entrypoint.ErrRecoveryInProgress,
		entrypoint.ErrNonNativeIbcTransfer,
		entrypoint.ErrIBCFeeDenomDiffersFromAssetReceived,
		entrypoint.ErrFeeSwapWithoutIbcFees,
		entrypoint.ErrFeeSwapAssetInDenomMismatch,
		entrypoint.ErrUserSwapAssetInDenomMismatch,
		entrypoint.ErrReceivedLessAssetFromSwapsThanMinAsset,
		entrypoint.ErrContractCallAddressBlocked,
		entrypoint.ErrActionDenomMismatch,
		entrypoint.ErrRemainingAssetLessThanMinAsset,
		ibcadapter.ErrUnauthorized,
		ibcadapter.ErrTransferInFlight,
		ibcadapter.ErrNoFundsToRefund,
		pool.ErrUnauthorized,
		pool.ErrInsufficientLiquidity,
		pool.ErrZeroOutput,
		pool.ErrDenomNotInPool,
		pool.ErrInvalidPool,
		pool.ErrCw20Unsupported,
		chain.ErrUnderflow,
	}
)

// toConnectError maps input errors to InvalidArgument, missing objects to
// NotFound and policy or integrity rejections to FailedPrecondition.
// Anything else is Internal.
func toConnectError(err error) error {
	var dup *ibcadapter.AckIDAlreadyExistsError
	switch {
	case matches(err, invalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case matches(err, notFound):
		return connect.NewError(connect.CodeNotFound, err)
	case matches(err, failedPrecondition), errors.As(err, &dup):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func isEmptyMsg(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
