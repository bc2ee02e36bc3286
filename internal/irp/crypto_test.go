package irp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sek := make([]byte, 32)
	for i := range sek {
		sek[i] = byte(i)
	}
	plaintext := []byte(`{"DocDtls":{"No":"INV-001"}}`)

	encoded, err := EncryptPayload(plaintext, sek)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "INV-001")

	decoded, err := DecryptPayload(encoded, sek)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	sek := make([]byte, 32)
	other := make([]byte, 32)
	other[0] = 1

	encoded, err := EncryptPayload([]byte("secret"), sek)
	require.NoError(t, err)

	_, err = DecryptPayload(encoded, other)
	assert.Error(t, err)
}

func TestSealEnvelopeShape(t *testing.T) {
	sek := make([]byte, 32)
	invoice := []byte(`{"Version":"1.1"}`)

	sealed, err := SealEnvelope(invoice, sek)
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(sealed, &envelope))
	assert.NotEmpty(t, envelope.Data)

	decoded, err := DecryptPayload(envelope.Data, sek)
	require.NoError(t, err)
	assert.Equal(t, invoice, decoded)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := EncryptPayload([]byte("x"), make([]byte, 7))
	assert.Error(t, err)
}
