// Package cryptoutil seals secrets, such as refresh tokens, before they are
// written to shared storage.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sealer encrypts and decrypts small secrets into printable strings.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

const (
	// Versioned prefix so the key or algorithm can rotate without rewriting stored values.
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"
	keySize        = 32
)

// ErrUnsealed is returned by an AES sealer asked to open a value it did not seal.
var ErrUnsealed = errors.New("value is not sealed with a known version")

// AESGCMSealer implements Sealer with AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

var _ Sealer = (*AESGCMSealer)(nil)

// NewAESGCMSealer creates a sealer from a 32-byte key.
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &AESGCMSealer{aead: aead}, nil
}

// ParseKey decodes a 32-byte key given as hex or standard base64.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if b, err := hex.DecodeString(raw); err == nil && len(b) == keySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == keySize {
		return b, nil
	}
	return nil, fmt.Errorf("encryption key must be %d bytes encoded as hex or base64", keySize)
}

// Seal encrypts plaintext under a random nonce.
func (s *AESGCMSealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	// nonce||ciphertext
	out := s.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *AESGCMSealer) Open(sealed string) ([]byte, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefixV1)
	if !ok {
		return nil, ErrUnsealed
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("sealed value too short")
	}
	pt, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return pt, nil
}

// PlainSealer only marks values. It keeps development stacks readable.
type PlainSealer struct{}

var _ Sealer = PlainSealer{}

func (PlainSealer) Seal(plaintext []byte) (string, error) {
	return plainPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (PlainSealer) Open(sealed string) ([]byte, error) {
	body, ok := strings.CutPrefix(sealed, plainPrefix)
	if !ok {
		return nil, errors.New("invalid plain value")
	}
	return base64.StdEncoding.DecodeString(body)
}
