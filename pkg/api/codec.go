package api

import (
	"encoding/json"
	"fmt"
)

// NewEnvelope builds an envelope around caller data. It fails when data is
// not representable in the wire format.
func NewEnvelope(msgType string, data any, senderID, messageID, correlationID string) (*Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("serialize payload: %w", err)
		}
		raw = b
	}
	if messageID == "" {
		messageID = NewID()
	}
	return &Envelope{
		ID:   messageID,
		Type: msgType,
		Data: raw,
		Attributes: Attributes{
			SenderID:      senderID,
			CorrelationID: correlationID,
		},
	}, nil
}

// EncodeEnvelope serializes an envelope to its wire bytes.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}
	return b, nil
}

// DecodeMessage turns wire bytes into a Message tagged with the subject they
// arrived on. It never fails outward: malformed bytes become a message
// carrying the raw payload and a *DecodeError, still delivered downstream so
// a single bad message cannot drop or crash a consume loop.
func DecodeMessage(subject string, raw []byte) *Message {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return &Message{
			Subject: subject,
			Raw:     raw,
			Err:     &DecodeError{Subject: subject, Raw: raw, Err: err},
		}
	}
	return &Message{Subject: subject, Envelope: &e}
}
