package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// SealedPrefix marks values written by Seal, so stored plaintext is never
// mistaken for ciphertext.
const SealedPrefix = "sealed:"

// IsSealed reports whether v was written by Seal.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, SealedPrefix)
}

// ErrUnsealFailed is returned when a sealed value was tampered with or sealed under another key.
var ErrUnsealFailed = errors.New("failed to unseal value")

// Sealer encrypts secrets (API keys, session credentials) before they are persisted.
type Sealer struct {
	key [keySize]byte
}

// NewSealer creates a Sealer from a base64-encoded 32-byte key.
func NewSealer(encodedKey string) (*Sealer, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid sealing key encoding: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got: %d", keySize, len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// GenerateSealingKey returns a fresh random key in the encoding NewSealer expects.
func GenerateSealingKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate sealing key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Seal encrypts plaintext and returns SealedPrefix followed by base64. Empty
// input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values sealed before the prefix
// was introduced are accepted without it.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(opened), nil
}
