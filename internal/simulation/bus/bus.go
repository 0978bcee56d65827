// Package bus implements the simulator's event bus: every protocol
// message and lifecycle transition is reported to an injected Sink so
// scenarios can observe the simulation without the core logic knowing
// whether anyone is listening.
package bus

import "go.uber.org/zap"

// Event is one record published to the bus.
type Event struct {
	Topic        string
	Time         float64
	ConnectionID string // empty if not associated with a connection
	Message      string
	Aux          any // optional structured payload (message, error, etc.)
}

// Sink receives published events. Implementations must not block the
// caller for any meaningful amount of (wall-clock) time, since Publish
// is called from the hot path of every simulated connection.
type Sink interface {
	Publish(e Event)
}

// Discard is a Sink that drops everything; it is the default when no
// observability is requested, so the simulation core never has to
// special-case "nobody is listening".
type Discard struct{}

// Publish implements Sink.
func (Discard) Publish(Event) {}

// ZapSink logs every event as a structured zap entry, for --verbose
// runs and for debugging scenario failures.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink wraps log as a Sink.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

// Publish implements Sink.
func (z *ZapSink) Publish(e Event) {
	fields := []zap.Field{
		zap.Float64("t", e.Time),
		zap.String("topic", e.Topic),
	}
	if e.ConnectionID != "" {
		fields = append(fields, zap.String("conn", e.ConnectionID))
	}
	if e.Aux != nil {
		fields = append(fields, zap.Any("aux", e.Aux))
	}
	z.log.Info(e.Message, fields...)
}

// Multi fans a single Publish out to every sink in order.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// Well-known topic names, kept centralized so producers and any future
// consumers agree on spelling.
const (
	TopicConnection = "connection"
	TopicStratumV1  = "stratum.v1"
	TopicStratumV2  = "stratum.v2"
	TopicShare      = "share"
	TopicVardiff    = "vardiff"
	TopicJob        = "job"
	TopicTranslator = "translator"
	TopicPool       = "pool"
)
