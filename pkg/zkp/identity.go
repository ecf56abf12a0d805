package zkp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// Identity is a Semaphore identity: a Baby Jubjub key whose public point hashes to the commitment.
type Identity struct {
	privateKey babyjub.PrivateKey
	Commitment *big.Int
}

// DeriveIdentity mixes server-held key material and fresh randomness with the owner and
// document so the secret cannot be recomputed from public data alone.
func DeriveIdentity(serverKey []byte, ownerKey, documentHash string, random io.Reader) (*Identity, error) {
	if len(serverKey) == 0 {
		return nil, errors.New("server key material required")
	}
	if random == nil {
		random = rand.Reader
	}

	nonce := make([]byte, 32)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}

	mac := hmac.New(sha256.New, serverKey)
	mac.Write([]byte(ownerKey))
	mac.Write([]byte{0})
	mac.Write([]byte(documentHash))
	mac.Write([]byte{0})
	mac.Write(nonce)

	var pk babyjub.PrivateKey
	copy(pk[:], mac.Sum(nil))
	return identityFromKey(pk)
}

// ImportIdentity restores an identity from its exported secret.
func ImportIdentity(secret string) (*Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("invalid identity secret")
	}
	var pk babyjub.PrivateKey
	copy(pk[:], raw)
	return identityFromKey(pk)
}

func identityFromKey(pk babyjub.PrivateKey) (*Identity, error) {
	pub := pk.Public()
	commitment, err := poseidon.Hash([]*big.Int{pub.X, pub.Y})
	if err != nil {
		return nil, fmt.Errorf("hash public key: %w", err)
	}
	return &Identity{privateKey: pk, Commitment: commitment}, nil
}

// Secret is the exportable private key, base64 encoded.
func (id *Identity) Secret() string {
	return base64.StdEncoding.EncodeToString(id.privateKey[:])
}

func (id *Identity) PublicKey() *babyjub.PublicKey {
	return id.privateKey.Public()
}
