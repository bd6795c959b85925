package session

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealInfo binds derived keys to this use so the configured secret can be
// shared with other tooling without key reuse.
const sealInfo = "admin-console session storage v1"

// SealedStorage encrypts every value with XChaCha20-Poly1305 before handing
// it to the inner Storage. The entry key is used as associated data, so a
// ciphertext moved to another key fails to open.
//
// Entries that fail to open (wrong secret, tampering) are treated as absent;
// the next write replaces them.
type SealedStorage struct {
	inner Storage
	aead  cipher.AEAD
}

// NewSealedStorage derives a 256-bit key from secret with HKDF-SHA256 and
// wraps inner.
func NewSealedStorage(inner Storage, secret string) (*SealedStorage, error) {
	if len(secret) < chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidKey, chacha20poly1305.KeySize)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("%w: deriving key: %w", ErrInvalidKey, err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &SealedStorage{inner: inner, aead: aead}, nil
}

// Load implements Storage.
func (s *SealedStorage) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	sealed, err := s.inner.Load(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(sealed))
	for k, v := range sealed {
		plain, err := s.open(k, v)
		if err != nil {
			continue
		}
		out[k] = plain
	}
	return out, nil
}

// Save implements Storage.
func (s *SealedStorage) Save(ctx context.Context, entries map[string]string) error {
	sealed := make(map[string]string, len(entries))
	for k, v := range entries {
		ct, err := s.seal(k, v)
		if err != nil {
			return err
		}
		sealed[k] = ct
	}
	return s.inner.Save(ctx, sealed)
}

// Delete implements Storage.
func (s *SealedStorage) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

func (s *SealedStorage) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %w", ErrStorageUnavailable, err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *SealedStorage) open(key, encoded string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntryCorrupt, err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrEntryCorrupt
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntryCorrupt, err)
	}
	return string(plain), nil
}
