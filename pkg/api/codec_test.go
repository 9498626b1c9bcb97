package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Arrange
	env, err := NewEnvelope("greeting", map[string]any{"v": 1}, "sender-1", "msg-1", "corr-1")
	require.NoError(t, err)

	// Act
	data, err := EncodeEnvelope(env)
	require.NoError(t, err)
	msg := DecodeMessage("X.1", data)

	// Assert
	assert.NoError(t, msg.Err)
	assert.Equal(t, "X.1", msg.Subject)
	assert.Equal(t, env, msg.Envelope)
}

func TestNewEnvelopeAssignsID(t *testing.T) {
	// Act
	env, err := NewEnvelope("greeting", nil, "sender-1", "", "")

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
}

func TestNewEnvelopeReusesCallerID(t *testing.T) {
	// Act
	env, err := NewEnvelope("greeting", nil, "sender-1", "retry-7", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "retry-7", env.ID)
}

func TestNewEnvelopeRejectsUnserializablePayload(t *testing.T) {
	// Act
	_, err := NewEnvelope("greeting", make(chan int), "sender-1", "", "")

	// Assert
	assert.Error(t, err)
}

func TestDecodeMessageNeverFails(t *testing.T) {
	// Arrange
	raw := []byte("{not json")

	// Act
	msg := DecodeMessage("X.1", raw)

	// Assert
	require.NotNil(t, msg)
	assert.Equal(t, "X.1", msg.Subject)
	assert.Equal(t, raw, msg.Raw)
	var decodeErr *DecodeError
	require.ErrorAs(t, msg.Err, &decodeErr)
	assert.Equal(t, "X.1", decodeErr.Subject)
	assert.Equal(t, raw, decodeErr.Raw)
}

func TestCorrelationTopLevel(t *testing.T) {
	// Arrange
	env := &Envelope{CorrelationID: "c1"}

	// Assert
	assert.Equal(t, "c1", env.Correlation())
}

func TestCorrelationFromAttributes(t *testing.T) {
	// Arrange
	env := &Envelope{Attributes: Attributes{CorrelationID: "c2"}}

	// Assert
	assert.Equal(t, "c2", env.Correlation())
}

func TestCorrelationOfMalformedMessage(t *testing.T) {
	// Arrange
	msg := DecodeMessage("X.1", []byte("nope"))

	// Assert
	assert.Empty(t, msg.Correlation())
	assert.Empty(t, msg.SenderID())
}
