// Package crypto seals datasource secrets so they can sit in .env files and
// CI variables without appearing in plain text.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SealedPrefix marks a value produced by Box.Seal.
const SealedPrefix = "enc:v1:"

var (
	// ErrMissingKey is returned when a sealed value is found but no key is set.
	ErrMissingKey = errors.New("sealed secret requires a key")
	// ErrOpenFailed is returned for malformed sealed values or a wrong key.
	ErrOpenFailed = errors.New("cannot open sealed secret")
)

// Box seals and opens secrets with AES-256-GCM.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from key. A base64 string decoding to 32 bytes
// (openssl rand -base64 32) is used as is; anything else is treated as a
// passphrase and hashed with SHA-256.
func NewBox(key string) (*Box, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 32 {
		sum := sha256.Sum256([]byte(key))
		raw = sum[:]
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal returns SealedPrefix followed by base64(nonce || ciphertext || tag).
func (b *Box) Seal(secret string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(secret), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without SealedPrefix are returned unchanged.
func (b *Box) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrOpenFailed)
	}
	n := b.aead.NonceSize()
	if len(data) < n+b.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrOpenFailed)
	}
	plain, err := b.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or tampered value", ErrOpenFailed)
	}
	return string(plain), nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// OpenValue opens value with key when it is sealed and returns it unchanged
// otherwise. A sealed value with an empty key fails with ErrMissingKey.
func OpenValue(value, key string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	box, err := NewBox(key)
	if err != nil {
		return "", err
	}
	return box.Open(value)
}
