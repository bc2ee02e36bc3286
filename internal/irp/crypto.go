package irp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// The IRP contract requires the invoice JSON to travel encrypted under
// the session key. The scheme here is AES-256-GCM with a random nonce
// prefixed to the ciphertext, the whole blob base64 encoded and carried
// in the envelope's Data field.

// Envelope wraps the encrypted invoice payload for transport
type Envelope struct {
	Data string `json:"Data"`
}

// EncryptPayload encrypts plaintext under the session key and returns
// the base64 blob.
func EncryptPayload(plaintext, sek []byte) (string, error) {
	gcm, err := newGCM(sek)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPayload reverses EncryptPayload
func DecryptPayload(encoded string, sek []byte) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("payload is not valid base64: %w", err)
	}

	gcm, err := newGCM(sek)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("payload shorter than nonce")
	}

	plaintext, err := gcm.Open(nil, blob[:gcm.NonceSize()], blob[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("payload decryption failed: %w", err)
	}
	return plaintext, nil
}

// SealEnvelope encrypts an invoice document and wraps it for transport
func SealEnvelope(invoiceJSON, sek []byte) ([]byte, error) {
	data, err := EncryptPayload(invoiceJSON, sek)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Data: data})
}

func newGCM(sek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(sek)
	if err != nil {
		return nil, fmt.Errorf("invalid session key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to construct GCM: %w", err)
	}
	return gcm, nil
}
