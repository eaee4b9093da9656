package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SpecVersion is the envelope version stamped on every event.
const SpecVersion = "1.0"

// Event is a change notification in CloudEvents structured JSON form.
// Subject identifies the changed record and doubles as the partition key.
type Event struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject"`
	Time            time.Time       `json:"time"`
	SpecVersion     string          `json:"specversion"`
	DataContentType string          `json:"datacontenttype"`
	CorrelationID   string          `json:"correlationid,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event of the given type about subject, encoding data as
// its JSON payload.
func NewEvent(eventType, source, subject string, data any) (*Event, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		Time:            time.Now().UTC(),
		SpecVersion:     SpecVersion,
		DataContentType: "application/json",
		Data:            payload,
	}, nil
}

// WithCorrelationID sets the request correlation ID and returns the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// Marshal encodes the event envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
