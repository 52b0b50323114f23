package channel

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
	"github.com/tuftsceeo/smartmotor/internal/protocol"
)

// EventKind classifies what came out of an inbound frame
type EventKind int

const (
	// EventIgnored means the frame carried nothing usable: not text, not
	// JSON, or not an envelope type we know. Never an error.
	EventIgnored EventKind = iota
	// EventWelcome is the relay's connection-ready signal
	EventWelcome
	// EventTopic is an application message routed by topic
	EventTopic
)

// String returns a human-readable name for the event kind
func (k EventKind) String() string {
	switch k {
	case EventIgnored:
		return "ignored"
	case EventWelcome:
		return "welcome"
	case EventTopic:
		return "topic"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// TopicEvent is the unit the sync layer consumes and produces
type TopicEvent struct {
	Topic string `json:"topic"`
	Value any    `json:"value"`
}

// Event is the result of unwrapping one inbound frame
type Event struct {
	Kind     EventKind
	Topic    TopicEvent // valid when Kind == EventTopic
	ClientID string     // set on welcome when the relay assigns one
}

// envelope is the relay's outer wrapper. For type "data" the payload field
// holds a JSON document encoded as a string, so it has to be parsed twice.
type envelope struct {
	Type     string `json:"type"`
	Payload  string `json:"payload"`
	ClientID string `json:"client_id"`
}

// Unwrap peels the relay's two-level JSON out of a frame. Only text frames
// are interpreted. Malformed JSON at either level yields an Ignored event:
// the relay and half-received frames can both produce partial text and the
// device must shrug it off rather than drop the connection.
func Unwrap(frame protocol.Frame) Event {
	if frame.Opcode != protocol.OpcodeText {
		return Event{Kind: EventIgnored}
	}

	var outer envelope
	if err := json.Unmarshal(frame.Payload, &outer); err != nil {
		logging.Debug("Skipping unparseable envelope",
			zap.Int("length", len(frame.Payload)),
			zap.Error(err),
		)
		return Event{Kind: EventIgnored}
	}

	switch outer.Type {
	case "welcome":
		return Event{Kind: EventWelcome, ClientID: outer.ClientID}

	case "data":
		var inner TopicEvent
		if err := json.Unmarshal([]byte(outer.Payload), &inner); err != nil {
			logging.Debug("Skipping unparseable data payload",
				zap.Int("length", len(outer.Payload)),
				zap.Error(err),
			)
			return Event{Kind: EventIgnored}
		}
		return Event{Kind: EventTopic, Topic: inner}

	default:
		logging.Debug("Skipping envelope with unknown type",
			zap.String("type", outer.Type),
		)
		return Event{Kind: EventIgnored}
	}
}

// Wrap produces the outbound publish payload. Outbound messages are a
// single-level {topic, value} document: only inbound relay broadcasts carry
// the extra envelope.
func Wrap(topic string, value any) ([]byte, error) {
	payload, err := json.Marshal(TopicEvent{Topic: topic, Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode topic message: %w", err)
	}
	return payload, nil
}

// NumericValue extracts a float64 from a topic event value. JSON numbers
// decode as float64; everything else (the "heartbeat" string, objects,
// null) reports false.
func NumericValue(value any) (float64, bool) {
	f, ok := value.(float64)
	return f, ok
}
