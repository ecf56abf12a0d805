package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeyMaterial(t *testing.T) {
	hexKey := "0x" + strings.Repeat("ab", 32)
	raw, err := DecodeKeyMaterial(hexKey)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, byte(0xab), raw[0])

	passphrase := "a passphrase that is long enough for keys"
	raw, err = DecodeKeyMaterial(passphrase)
	require.NoError(t, err)
	assert.Equal(t, []byte(passphrase), raw)

	_, err = DecodeKeyMaterial("short")
	assert.Error(t, err)
}

func TestDeriveKeysSeparatesPurposes(t *testing.T) {
	master := []byte(strings.Repeat("k", 32))
	keys, err := DeriveKeys(master)
	require.NoError(t, err)
	assert.Len(t, keys.Encryption, 32)
	assert.NotEqual(t, keys.Encryption, keys.Seed)

	again, err := DeriveKeys(master)
	require.NoError(t, err)
	assert.Equal(t, keys, again)

	_, err = DeriveKeys([]byte("short"))
	assert.Error(t, err)
}

func TestSecretBox(t *testing.T) {
	keys, err := DeriveKeys([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	box, err := NewSecretBox(keys.Encryption)
	require.NoError(t, err)

	owner := "0x1111111111111111111111111111111111111111"
	sealed, err := box.Seal(owner, "secret-material")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret-material")

	other, err := box.Seal(owner, "secret-material")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "fresh nonce per seal")

	plain, err := box.Open(owner, sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret-material", plain)

	_, err = box.Open("0x2222222222222222222222222222222222222222", sealed)
	assert.Error(t, err, "ciphertext is bound to its owner")

	_, err = box.Open(owner, "AAAA")
	assert.Error(t, err)
}

func TestDocumentHasher(t *testing.T) {
	_, err := NewDocumentHasher([]byte("short"))
	assert.Error(t, err)

	a, err := NewDocumentHasher([]byte(strings.Repeat("p", 32)))
	require.NoError(t, err)
	b, err := NewDocumentHasher([]byte(strings.Repeat("q", 32)))
	require.NoError(t, err)

	assert.Equal(t, a.Hash("1234567"), a.Hash("1234567"))
	assert.NotEqual(t, a.Hash("1234567"), a.Hash("1234568"))
	assert.NotEqual(t, a.Hash("1234567"), b.Hash("1234567"))
	assert.Len(t, a.Hash("1234567"), 64)
}
