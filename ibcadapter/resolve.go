package ibcadapter

import (
	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/models"
)

// Outcome is how a tracked transfer ended on the counterparty.
type Outcome int

const (
	AckSuccess Outcome = iota
	AckError
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case AckSuccess:
		return "ack_success"
	case AckError:
		return "ack_error"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Resolution is what the adapter does once a transfer is settled. Refund is
// empty for a successful ack.
type Resolution struct {
	Action string
	To     string
	Refund chain.Coins
}

// Resolve settles record. A nil record means the transfer was already
// resolved or never tracked. A failed transfer refunds the whole balance to
// the record's recover address.
func Resolve(record *models.InProgressIbcTransfer, outcome Outcome, balance chain.Coins) (Resolution, error) {
	if record == nil {
		return Resolution{}, ErrTransferNotFound
	}
	var action string
	switch outcome {
	case AckSuccess:
		return Resolution{Action: "sudo_ack_success"}, nil
	case AckError:
		action = "sudo_ack_error_and_bank_send"
	case Timeout:
		action = "sudo_timeout_and_bank_send"
	default:
		return Resolution{}, ErrUnknownOutcome
	}

	refund, err := balance.NonZero()
	if err != nil {
		return Resolution{}, err
	}
	if len(refund) == 0 {
		return Resolution{}, ErrNoFundsToRefund
	}
	return Resolution{Action: action, To: record.RecoverAddress, Refund: refund}, nil
}

// outcomeOf decodes a lifecycle callback into the packet it concerns and
// how it ended.
func outcomeOf(msg chain.IbcLifecycleComplete) (string, uint64, Outcome, error) {
	switch {
	case msg.IbcAck != nil:
		ack := msg.IbcAck
		if ack.Success || chain.IsSuccessAck([]byte(ack.Ack)) {
			return ack.Channel, ack.Sequence, AckSuccess, nil
		}
		return ack.Channel, ack.Sequence, AckError, nil
	case msg.IbcTimeout != nil:
		return msg.IbcTimeout.Channel, msg.IbcTimeout.Sequence, Timeout, nil
	default:
		return "", 0, 0, ErrUnknownOutcome
	}
}
