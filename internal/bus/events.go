// Package bus publishes structural pipeline events (new fractals, strokes,
// segments) over Redis pub/sub so downstream consumers (zs/bsp services,
// dashboards) can react without polling the engine directly. Grounded on the
// teacher market-data service's Redis event bus.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type constants for the channels this bus publishes.
const (
	EventFractalDetected = "fractal_detected"
	EventStrokeFormed    = "stroke_formed"
	EventSegmentFormed   = "segment_formed"
	EventEngineError     = "engine_error"
)

// Event is one message flowing through the structural-pipeline bus.
type Event struct {
	EventType     string         `json:"event_type"`
	Symbol        string         `json:"symbol"`
	Payload       map[string]any `json:"payload"`
	Source        string         `json:"source"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
}

// NewEvent builds an Event, minting a fresh correlation ID so a caller's
// Publish calls across a replay can be traced without threading an ID
// through every layer by hand.
func NewEvent(eventType, symbol, source string, payload map[string]any) *Event {
	return &Event{
		EventType:     eventType,
		Symbol:        symbol,
		Payload:       payload,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}

// Marshal serializes an event to JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshalling event JSON: %w", err)
	}
	return &e, nil
}
