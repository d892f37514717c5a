package crypto

import (
	"bytes"
	"testing"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestSecretboxAdapter_RoundTrip(t *testing.T) {
	adapter, err := NewSecretboxAdapter(testKey(0x01))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	plaintext := []byte("the quick brown fox")
	ciphertext, err := adapter.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	decrypted, err := adapter.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestSecretboxAdapter_FreshNoncePerCall(t *testing.T) {
	adapter, _ := NewSecretboxAdapter(testKey(0x02))

	a, _ := adapter.Encrypt([]byte("same message"))
	b, _ := adapter.Encrypt([]byte("same message"))

	if bytes.Equal(a, b) {
		t.Error("expected distinct ciphertexts for repeated encryption of the same plaintext")
	}
}

func TestSecretboxAdapter_TamperedCiphertextFailsClosed(t *testing.T) {
	adapter, _ := NewSecretboxAdapter(testKey(0x03))

	ciphertext, _ := adapter.Encrypt([]byte("integrity matters"))
	ciphertext[len(ciphertext)-1] ^= 0xff

	if _, err := adapter.Decrypt(ciphertext); err == nil {
		t.Error("expected tampered ciphertext to fail decryption")
	}
}

func TestSecretboxAdapter_WrongKeyFailsClosed(t *testing.T) {
	encryptor, _ := NewSecretboxAdapter(testKey(0x04))
	decryptor, _ := NewSecretboxAdapter(testKey(0x05))

	ciphertext, _ := encryptor.Encrypt([]byte("secret"))
	if _, err := decryptor.Decrypt(ciphertext); err == nil {
		t.Error("expected decryption with the wrong key to fail")
	}
}

func TestSecretboxAdapter_TruncatedCiphertext(t *testing.T) {
	adapter, _ := NewSecretboxAdapter(testKey(0x06))

	if _, err := adapter.Decrypt([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error decrypting a too-short ciphertext")
	}
}

func TestSecretboxAdapter_KeyIDStableAndKeyDependent(t *testing.T) {
	a, _ := NewSecretboxAdapter(testKey(0x07))
	b, _ := NewSecretboxAdapter(testKey(0x07))
	c, _ := NewSecretboxAdapter(testKey(0x08))

	if a.KeyID() != b.KeyID() {
		t.Error("expected the same key to produce the same key id")
	}
	if a.KeyID() == c.KeyID() {
		t.Error("expected different keys to produce different key ids")
	}
}

func TestNewSecretboxAdapter_RejectsWrongKeyLength(t *testing.T) {
	if _, err := NewSecretboxAdapter([]byte("too short")); err == nil {
		t.Error("expected error constructing adapter with a non-32-byte key")
	}
}
