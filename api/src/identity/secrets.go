package identity

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const minKeyMaterial = 32

var errShortKey = fmt.Errorf("key material must be at least %d bytes", minKeyMaterial)

// DecodeKeyMaterial accepts hex (with or without 0x) and falls back to the raw string bytes.
func DecodeKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(raw) >= minKeyMaterial {
		return raw, nil
	}
	if len(s) < minKeyMaterial {
		return nil, errShortKey
	}
	return []byte(s), nil
}

// Keys are the per-purpose keys expanded from the identity master key.
type Keys struct {
	Encryption []byte
	Seed       []byte
}

func DeriveKeys(master []byte) (Keys, error) {
	if len(master) < minKeyMaterial {
		return Keys{}, errShortKey
	}
	expand := func(info string) ([]byte, error) {
		out := make([]byte, 32)
		_, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out)
		return out, err
	}

	enc, err := expand("rikuy/identity/encryption/v1")
	if err != nil {
		return Keys{}, err
	}
	seed, err := expand("rikuy/identity/seed/v1")
	if err != nil {
		return Keys{}, err
	}
	return Keys{Encryption: enc, Seed: seed}, nil
}

// SecretBox encrypts identity secrets at rest with XChaCha20-Poly1305. The owner key is
// bound as associated data so a ciphertext cannot be moved to another record.
type SecretBox struct {
	aead cipher.AEAD
}

func NewSecretBox(key []byte) (*SecretBox, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

func (b *SecretBox) Seal(ownerKey, secret string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(secret)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := b.aead.Seal(nonce, nonce, []byte(secret), []byte(ownerKey))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (b *SecretBox) Open(ownerKey, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < b.aead.NonceSize() {
		return "", errors.New("sealed secret too short")
	}
	nonce, ct := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ct, []byte(ownerKey))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// DocumentHasher keys the document hash with a server pepper so small CI ranges cannot be
// enumerated from a leaked table.
type DocumentHasher struct {
	pepper []byte
}

func NewDocumentHasher(pepper []byte) (*DocumentHasher, error) {
	if len(pepper) < minKeyMaterial {
		return nil, errShortKey
	}
	return &DocumentHasher{pepper: pepper}, nil
}

func (h *DocumentHasher) Hash(normalizedNumber string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(normalizedNumber))
	return hex.EncodeToString(mac.Sum(nil))
}
