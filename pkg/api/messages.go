package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attributes carries envelope metadata that travels with the payload.
type Attributes struct {
	SenderID      string `json:"senderId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Envelope is the unit exchanged on the wire. The wire format is the JSON
// text of this struct.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Attributes    Attributes      `json:"attributes"`
}

// Correlation returns the correlation id from the top-level field or the
// nested attribute, whichever is set. Replies may carry it in either place
// depending on how they were produced.
func (e *Envelope) Correlation() string {
	if e == nil {
		return ""
	}
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	return e.Attributes.CorrelationID
}

// Message is a decoded envelope tagged with the subject it arrived on.
// When Err is set the payload could not be decoded; Raw preserves the
// original bytes and Envelope is nil.
type Message struct {
	Subject  string
	Envelope *Envelope
	Raw      []byte
	Err      error
}

// Correlation returns the message's correlation id, or "" for a message that
// failed to decode.
func (m *Message) Correlation() string {
	return m.Envelope.Correlation()
}

// SenderID returns the producing instance's identity, or "" for a message
// that failed to decode.
func (m *Message) SenderID() string {
	if m.Envelope == nil {
		return ""
	}
	return m.Envelope.Attributes.SenderID
}

// StreamSpec describes the durable stream a broker provisions on Start.
// Zero-value option fields fall back to the provisioning defaults.
type StreamSpec struct {
	Name      string
	Subjects  []string
	Retention string
	Storage   string
	MaxMsgs   int64
	MaxBytes  int64
}

// Send describes a single publish. MessageID is optional; leaving it empty
// assigns a fresh id. Reusing an id is deliberate (idempotent retries).
type Send struct {
	Subject       string
	Type          string
	Data          any
	MessageID     string
	CorrelationID string
}

// Request describes a request/reply round trip. Timeout zero falls back to
// the broker's configured default. CorrelationID empty assigns a fresh one.
type Request struct {
	Subject         string
	ResponseSubject string
	Type            string
	Data            any
	Timeout         time.Duration
	IgnoreSelf      bool
	CorrelationID   string
}

// ListenOptions filters a listener view derived from the broadcast hub.
// Empty Subjects matches every subject. IgnoreSelf drops messages produced
// by the owning broker instance.
type ListenOptions struct {
	Subjects   []string
	IgnoreSelf bool
}

// NewID returns a fresh opaque message id.
func NewID() string {
	return uuid.NewString()
}
