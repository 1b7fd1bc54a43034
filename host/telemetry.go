package host

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Cogwheel-Validator/spectra-entry-point/host"

type instruments struct {
	txs        metric.Int64Counter
	txDuration metric.Float64Histogram
	messages   metric.Int64Counter
	packets    metric.Int64Counter
}

func newTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// newInstruments registers the host instruments on the global meter provider.
// When no provider is installed the otel no-op meter is used.
func newInstruments() (instruments, error) {
	meter := otel.Meter(instrumentationName)
	var (
		m   instruments
		err error
	)
	m.txs, err = meter.Int64Counter("host.transactions",
		metric.WithDescription("Transactions run by the host, by operation and outcome"),
		metric.WithUnit("{transaction}"))
	if err != nil {
		return m, err
	}
	m.txDuration, err = meter.Float64Histogram("host.transaction.duration",
		metric.WithDescription("Time spent running a transaction"),
		metric.WithUnit("s"))
	if err != nil {
		return m, err
	}
	m.messages, err = meter.Int64Counter("host.messages",
		metric.WithDescription("Messages dispatched, by pipeline stage and kind"),
		metric.WithUnit("{message}"))
	if err != nil {
		return m, err
	}
	m.packets, err = meter.Int64Counter("host.ibc.packets",
		metric.WithDescription("IBC packet lifecycle events, by kind"),
		metric.WithUnit("{packet}"))
	return m, err
}
