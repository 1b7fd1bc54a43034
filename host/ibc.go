package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/memo"
	"github.com/Cogwheel-Validator/spectra-entry-point/store"
)

var (
	ErrPacketNotFound     = errors.New("packet not found")
	ErrPacketNotTimedOut  = errors.New("packet has not timed out yet")
	ErrPacketTimeout      = errors.New("packet timeout is in the past")
	ErrCallbackNotSender  = errors.New("ibc callback contract must be the packet sender")
	ErrInvalidIbcTransfer = errors.New("invalid ibc transfer")
)

// Packet is an outbound transfer waiting for its acknowledgement or timeout.
type Packet struct {
	Channel          string      `json:"channel"`
	Sequence         uint64      `json:"sequence"`
	Sender           string      `json:"sender"`
	Receiver         string      `json:"receiver"`
	Token            chain.Coin  `json:"token"`
	Memo             string      `json:"memo"`
	TimeoutTimestamp uint64      `json:"timeout_timestamp"`
	Fee              chain.Coins `json:"fee,omitempty"`
}

var (
	packets   = store.NewMap[Packet]("ibc/packets")
	sequences = store.NewMap[uint64]("ibc/sequences")
)

func packetKey(channel string, sequence uint64) []byte {
	return store.JoinKey(store.StringKey(channel), store.Uint64Key(sequence))
}

// EscrowAddress holds the tokens of every in-flight packet sent over channel.
func (h *Host) EscrowAddress(channel string) string {
	return h.api.Derive("ibc-escrow/" + channel)
}

// FeePoolAddress collects relayer fees paid with transfers.
func (h *Host) FeePoolAddress() string {
	return h.api.Derive("ibc-fee-pool")
}

func nextSequence(kv store.KV, channel string) (uint64, error) {
	seq, err := sequences.Load(kv, store.StringKey(channel))
	if errors.Is(err, store.ErrNotFound) {
		seq = 1
	} else if err != nil {
		return 0, err
	}
	if err := sequences.Save(kv, store.StringKey(channel), seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

// ibcSend escrows the token of an outbound transfer and records the packet.
// The response data is the JSON encoded MsgTransferResponse.
func (r *run) ibcSend(kv store.KV, sender string, t chain.IbcTransfer) ([]byte, []chain.Event, error) {
	if t.SourceChannel == "" {
		return nil, nil, fmt.Errorf("%w: missing source channel", ErrInvalidIbcTransfer)
	}
	if t.Receiver == "" {
		return nil, nil, fmt.Errorf("%w: missing receiver", ErrInvalidIbcTransfer)
	}
	if err := t.Token.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidIbcTransfer, err)
	}
	if t.Token.Amount.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero token amount", ErrInvalidIbcTransfer)
	}
	if t.TimeoutTimestamp <= r.block.Time {
		return nil, nil, fmt.Errorf("%w: %d <= %d", ErrPacketTimeout, t.TimeoutTimestamp, r.block.Time)
	}
	if cb, ok := memo.CallbackContract(t.Memo); ok && cb != sender {
		return nil, nil, fmt.Errorf("%w: callback %s, sender %s", ErrCallbackNotSender, cb, sender)
	}

	escrow := r.h.EscrowAddress(t.SourceChannel)
	token := chain.Coins{t.Token}
	if err := bankSend(kv, sender, escrow, token); err != nil {
		return nil, nil, err
	}
	events := []chain.Event{transferEvent(sender, escrow, token)}

	var fee chain.Coins
	if t.Fee != nil {
		total, err := t.Fee.Total()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidIbcTransfer, err)
		}
		if !total.IsZero() {
			pool := r.h.FeePoolAddress()
			if err := bankSend(kv, sender, pool, total); err != nil {
				return nil, nil, err
			}
			events = append(events, transferEvent(sender, pool, total))
			fee = total
		}
	}

	seq, err := nextSequence(kv, t.SourceChannel)
	if err != nil {
		return nil, nil, err
	}
	p := Packet{
		Channel:          t.SourceChannel,
		Sequence:         seq,
		Sender:           sender,
		Receiver:         t.Receiver,
		Token:            t.Token,
		Memo:             t.Memo,
		TimeoutTimestamp: t.TimeoutTimestamp,
		Fee:              fee,
	}
	if err := packets.Save(kv, packetKey(p.Channel, p.Sequence), p); err != nil {
		return nil, nil, err
	}

	data, err := json.Marshal(chain.MsgTransferResponse{Sequence: seq})
	if err != nil {
		return nil, nil, err
	}
	events = append(events, chain.Event{Type: "send_packet", Attributes: []chain.Attribute{
		{Key: "packet_src_channel", Value: p.Channel},
		{Key: "packet_sequence", Value: strconv.FormatUint(seq, 10)},
		{Key: "packet_sender", Value: sender},
		{Key: "packet_receiver", Value: p.Receiver},
		{Key: "packet_amount", Value: p.Token.String()},
		{Key: "packet_timeout_timestamp", Value: strconv.FormatUint(p.TimeoutTimestamp, 10)},
	}})
	r.h.metrics.packets.Add(r.ctx, 1, metric.WithAttributes(attribute.String("kind", "send")))
	Logger.Info().
		Str("run_id", r.id).
		Str("channel", p.Channel).
		Uint64("sequence", seq).
		Str("sender", sender).
		Str("token", p.Token.String()).
		Msg("ibc packet sent")
	return data, events, nil
}

func takePacket(kv store.KV, channel string, sequence uint64) (Packet, error) {
	p, err := packets.Load(kv, packetKey(channel, sequence))
	if errors.Is(err, store.ErrNotFound) {
		return Packet{}, fmt.Errorf("%w: %s/%d", ErrPacketNotFound, channel, sequence)
	}
	if err != nil {
		return Packet{}, err
	}
	return p, packets.Remove(kv, packetKey(channel, sequence))
}

func (r *run) refundPacket(kv store.KV, p Packet) error {
	escrow := r.h.EscrowAddress(p.Channel)
	token := chain.Coins{p.Token}
	if err := bankSend(kv, escrow, p.Sender, token); err != nil {
		return err
	}
	r.events = append(r.events, transferEvent(escrow, p.Sender, token))
	return nil
}

// AcknowledgePacket delivers the counterparty acknowledgement for a sent
// packet. An error acknowledgement releases the escrow back to the sender.
// If the packet memo names an ibc_callback contract it receives the outcome
// through Sudo in the same transaction.
func (h *Host) AcknowledgePacket(ctx context.Context, channel string, sequence uint64, ack []byte) (*Result, error) {
	return h.transact(ctx, "acknowledge_packet", func(r *run, kv store.KV) error {
		p, err := takePacket(kv, channel, sequence)
		if err != nil {
			return err
		}
		success := chain.IsSuccessAck(ack)
		if !success {
			if err := r.refundPacket(kv, p); err != nil {
				return err
			}
		}
		r.events = append(r.events, chain.Event{Type: "acknowledge_packet", Attributes: []chain.Attribute{
			{Key: "packet_src_channel", Value: channel},
			{Key: "packet_sequence", Value: strconv.FormatUint(sequence, 10)},
			{Key: "success", Value: strconv.FormatBool(success)},
		}})
		r.h.metrics.packets.Add(r.ctx, 1, metric.WithAttributes(
			attribute.String("kind", "ack"),
			attribute.Bool("success", success),
		))
		Logger.Info().
			Str("run_id", r.id).
			Str("channel", channel).
			Uint64("sequence", sequence).
			Bool("success", success).
			Msg("ibc packet acknowledged")

		contract, ok := memo.CallbackContract(p.Memo)
		if !ok {
			return nil
		}
		return r.sudo(kv, contract, chain.SudoMsg{IbcLifecycleComplete: &chain.IbcLifecycleComplete{
			IbcAck: &chain.IbcAck{Channel: channel, Sequence: sequence, Ack: string(ack), Success: success},
		}})
	})
}

// TimeoutPacket delivers a timeout for a sent packet. It is rejected while the
// block time is before the packet timeout.
func (h *Host) TimeoutPacket(ctx context.Context, channel string, sequence uint64) (*Result, error) {
	return h.transact(ctx, "timeout_packet", func(r *run, kv store.KV) error {
		p, err := packets.Load(kv, packetKey(channel, sequence))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s/%d", ErrPacketNotFound, channel, sequence)
		}
		if err != nil {
			return err
		}
		if r.block.Time < p.TimeoutTimestamp {
			return fmt.Errorf("%w: %s/%d times out at %d", ErrPacketNotTimedOut, channel, sequence, p.TimeoutTimestamp)
		}
		if err := packets.Remove(kv, packetKey(channel, sequence)); err != nil {
			return err
		}
		if err := r.refundPacket(kv, p); err != nil {
			return err
		}
		r.events = append(r.events, chain.Event{Type: "timeout_packet", Attributes: []chain.Attribute{
			{Key: "packet_src_channel", Value: channel},
			{Key: "packet_sequence", Value: strconv.FormatUint(sequence, 10)},
		}})
		r.h.metrics.packets.Add(r.ctx, 1, metric.WithAttributes(attribute.String("kind", "timeout")))
		Logger.Info().Str("run_id", r.id).Str("channel", channel).Uint64("sequence", sequence).Msg("ibc packet timed out")

		contract, ok := memo.CallbackContract(p.Memo)
		if !ok {
			return nil
		}
		return r.sudo(kv, contract, chain.SudoMsg{IbcLifecycleComplete: &chain.IbcLifecycleComplete{
			IbcTimeout: &chain.IbcTimeout{Channel: channel, Sequence: sequence},
		}})
	})
}

// Packet returns a pending packet.
func (h *Host) Packet(ctx context.Context, channel string, sequence uint64) (Packet, error) {
	var p Packet
	err := h.db.View(func(kv store.KV) error {
		var err error
		p, err = packets.Load(kv, packetKey(channel, sequence))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s/%d", ErrPacketNotFound, channel, sequence)
		}
		return err
	})
	return p, err
}

// PendingPackets lists every packet still waiting for an ack or timeout,
// ordered by channel then sequence.
func (h *Host) PendingPackets(ctx context.Context) ([]Packet, error) {
	var out []Packet
	err := h.db.View(func(kv store.KV) error {
		return packets.Range(kv, nil, func(_ []byte, p Packet) bool {
			out = append(out, p)
			return true
		})
	})
	return out, err
}
