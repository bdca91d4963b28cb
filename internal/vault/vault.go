// Package vault encrypts social account credentials for storage at rest
// using AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/calebms/postbridge/internal/apperr"
)

const (
	keySize = 32
	tagSize = 16
)

// Vault holds the process-wide credential key. The key is immutable after
// construction; rotating it invalidates every stored credential.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from either raw 32-byte key material or its base64
// encoding (std or url, padded or not). Anything else fails here, not at
// first use.
func New(key string) (*Vault, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, apperr.Config("vault key rejected by cipher: %v", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Config("vault cipher mode: %v", err)
	}

	return &Vault{aead: aead}, nil
}

func decodeKey(key string) ([]byte, error) {
	if len(key) == keySize {
		return []byte(key), nil
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(key)
		if err == nil && len(raw) == keySize {
			return raw, nil
		}
	}

	return nil, apperr.Config("vault key must be 32 bytes raw or base64, got %d chars", len(key))
}

// Encrypt seals plaintext under a fresh random 96-bit nonce and returns the
// stored form: base64(nonce).base64(tag).base64(ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag after the ciphertext.
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ct),
	}, "."), nil
}

// Decrypt reverses Encrypt. A payload that is not exactly three non-empty
// base64 segments yields ErrCipherFormat; a failed tag check yields
// ErrCipherIntegrity.
func (v *Vault) Decrypt(stored string) (string, error) {
	parts := strings.Split(stored, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: want 3 segments, got %d", apperr.ErrCipherFormat, len(parts))
	}

	enc := base64.StdEncoding
	segs := make([][]byte, 3)
	for i, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: empty segment", apperr.ErrCipherFormat)
		}
		raw, err := enc.DecodeString(p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", apperr.ErrCipherFormat, err)
		}
		segs[i] = raw
	}

	nonce, tag, ct := segs[0], segs[1], segs[2]
	if len(nonce) != v.aead.NonceSize() || len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad segment length", apperr.ErrCipherFormat)
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", apperr.ErrCipherIntegrity
	}

	return string(plaintext), nil
}
