package zkp_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp/zkptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoots struct {
	known map[string]bool
	err   error
}

func (f fakeRoots) IsKnownRoot(_ context.Context, root *big.Int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[root.String()], nil
}

func TestEnforcingVerifierAcceptsValidProof(t *testing.T) {
	keys := zkptest.NewKeys()
	v := zkp.NewEnforcingVerifier(keys.VK, fakeRoots{known: map[string]bool{"42": true}}, nil)

	res := v.Verify(context.Background(), keys.Submission(1001, 42, 7, 9))

	assert.True(t, res.IsValid, res.Error)
	assert.Equal(t, int64(1001), res.Nullifier.Int64())
	assert.Equal(t, int64(42), res.MerkleRoot.Int64())
	assert.True(t, v.Enforcing())
}

func TestEnforcingVerifierRejections(t *testing.T) {
	keys := zkptest.NewKeys()
	roots := fakeRoots{known: map[string]bool{"42": true}}

	tampered := keys.Submission(1001, 42, 7, 9)
	tampered.Signals.Nullifier = big.NewInt(1002)

	swapped := keys.Submission(1001, 42, 7, 9)
	swapped.Proof[6], swapped.Proof[7] = swapped.Proof[7], swapped.Proof[6]

	zeros, err := zkp.ParseSubmission(zkptest.ZeroSubmissionJSON())
	require.NoError(t, err)

	outOfField := keys.Submission(1001, 42, 7, 9)
	outOfField.Proof[0] = new(big.Int).Lsh(big.NewInt(1), 300)

	tests := []struct {
		name  string
		sub   *zkp.Submission
		roots zkp.RootOracle
	}{
		{"tampered signal", tampered, roots},
		{"corrupted proof", swapped, roots},
		{"all-zero proof", zeros, roots},
		{"coordinate out of field", outOfField, roots},
		{"unknown root", keys.Submission(1001, 43, 7, 9), roots},
		{"root oracle failure", keys.Submission(1001, 42, 7, 9), fakeRoots{err: errors.New("rpc down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := zkp.NewEnforcingVerifier(keys.VK, tt.roots, nil)
			res := v.Verify(context.Background(), tt.sub)
			assert.False(t, res.IsValid)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestBypassVerifierAcceptsAnythingAndWarns(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New().WithOutput(&buf)

	v, err := zkp.NewVerifier(true, nil, nil, log)
	require.NoError(t, err)
	assert.False(t, v.Enforcing())

	zeros, err := zkp.ParseSubmission(zkptest.ZeroSubmissionJSON())
	require.NoError(t, err)

	res := v.Verify(context.Background(), zeros)
	assert.True(t, res.IsValid)
	assert.Equal(t, int64(1), res.Nullifier.Int64())
	assert.Contains(t, buf.String(), `"securityBypassed":true`)
	assert.GreaterOrEqual(t, strings.Count(buf.String(), `"level":"warn"`), 2)
}

func TestNewVerifierRequiresKeyWhenEnforcing(t *testing.T) {
	_, err := zkp.NewVerifier(false, nil, nil, nil)
	assert.Error(t, err)

	v, err := zkp.NewVerifier(false, zkptest.NewKeys().VK, nil, nil)
	require.NoError(t, err)
	assert.True(t, v.Enforcing())
}

func TestVerifyingKeyRoundTripThroughFile(t *testing.T) {
	keys := zkptest.NewKeys()
	vk, err := zkp.LoadVerifyingKey(keys.WriteFile(t))
	require.NoError(t, err)

	v := zkp.NewEnforcingVerifier(vk, nil, nil)
	sub, err := zkp.ParseSubmission(zkptest.SubmissionJSON(keys.Submission(5, 6, 7, 8)))
	require.NoError(t, err)

	res := v.Verify(context.Background(), sub)
	assert.True(t, res.IsValid, res.Error)
}

func TestParseVerifyingKeyErrors(t *testing.T) {
	_, err := zkp.ParseVerifyingKey([]byte(`{"protocol":"plonk"}`))
	assert.Error(t, err)

	_, err = zkp.ParseVerifyingKey([]byte(`{"vk_alpha_1":["1","2","1"]}`))
	assert.Error(t, err)

	_, err = zkp.LoadVerifyingKey("does-not-exist.json")
	assert.Error(t, err)
}

func TestHashToFieldFitsScalarField(t *testing.T) {
	h := zkp.HashToField(big.NewInt(12345))
	assert.Less(t, h.BitLen(), 249)
	assert.Equal(t, h.String(), zkp.HashToField(big.NewInt(12345)).String())
	assert.NotEqual(t, h.String(), zkp.HashToField(big.NewInt(12346)).String())
}
