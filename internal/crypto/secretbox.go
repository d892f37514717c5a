// Package crypto implements the optional encryption adapter a sync
// engine applies to values before they leave the local process.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Adapter is an authenticated symmetric encryption adapter. Decrypt must
// fail closed: a tampered or truncated ciphertext returns an error, it
// never returns a best-effort partial plaintext.
type Adapter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	KeyID() string
}

const nonceSize = 24

// SecretboxAdapter encrypts values with NaCl secretbox (XSalsa20-Poly1305),
// laying a fresh random nonce ahead of each sealed box: nonce(24) ||
// tag(16) || ciphertext. The tag comes before the ciphertext, as
// secretbox.Seal writes it, not after it.
type SecretboxAdapter struct {
	key   [32]byte
	keyID string
}

// NewSecretboxAdapter creates an adapter from a 32-byte symmetric key.
func NewSecretboxAdapter(key []byte) (*SecretboxAdapter, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: key must be 32 bytes, got %d", len(key))
	}

	a := &SecretboxAdapter{}
	copy(a.key[:], key)

	sum := sha256.Sum256(key)
	a.keyID = hex.EncodeToString(sum[:8])

	return a, nil
}

// Encrypt seals plaintext under a freshly generated nonce.
func (a *SecretboxAdapter) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	out := make([]byte, nonceSize, nonceSize+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	out = secretbox.Seal(out, plaintext, &nonce, &a.key)
	return out, nil
}

// Decrypt opens a ciphertext produced by Encrypt, failing closed on any
// tampering, truncation, or key mismatch.
func (a *SecretboxAdapter) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+secretbox.Overhead {
		return nil, errors.New("crypto: ciphertext too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &a.key)
	if !ok {
		return nil, errors.New("crypto: decryption failed (tampered ciphertext or wrong key)")
	}
	return plaintext, nil
}

// KeyID returns a stable identifier for this adapter's key, derived
// from the key itself so peers can detect a key mismatch without
// exchanging the key.
func (a *SecretboxAdapter) KeyID() string {
	return a.keyID
}
