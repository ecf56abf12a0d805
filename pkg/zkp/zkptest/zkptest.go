// Package zkptest builds Groth16 verifying keys with a known trapdoor so tests can mint
// proofs that satisfy the pairing equation for arbitrary public signals.
package zkptest

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// Keys holds a verifying key with gamma = delta = g2.
type Keys struct {
	VK *zkp.VerifyingKey
}

func NewKeys() *Keys {
	_, _, g1, g2 := bn254.Generators()

	vk := &zkp.VerifyingKey{Gamma: g2, Delta: g2}
	vk.Alpha.ScalarMultiplication(&g1, big.NewInt(7))
	vk.Beta.ScalarMultiplication(&g2, big.NewInt(11))
	for i := 0; i <= zkp.PublicSignalCount; i++ {
		var ic bn254.G1Affine
		ic.ScalarMultiplication(&g1, big.NewInt(int64(13+i)))
		vk.IC = append(vk.IC, ic)
	}
	return &Keys{VK: vk}
}

// Prove returns a packed proof valid for signals under k.VK: A = α, B = β, C = -vkX.
func (k *Keys) Prove(signals zkp.PublicSignals) [zkp.ProofElements]*big.Int {
	inputs := zkp.CircuitInputs(signals)

	var vkX bn254.G1Jac
	vkX.FromAffine(&k.VK.IC[0])
	for i, in := range inputs {
		var term bn254.G1Jac
		term.FromAffine(&k.VK.IC[i+1])
		term.ScalarMultiplication(&term, in)
		vkX.AddAssign(&term)
	}
	var c bn254.G1Affine
	c.FromJacobian(&vkX)
	c.Neg(&c)

	return zkp.PackProof(&k.VK.Alpha, &k.VK.Beta, &c)
}

// Submission builds a valid submission for the given signal values.
func (k *Keys) Submission(nullifier, root, message, scope int64) *zkp.Submission {
	signals := zkp.PublicSignals{
		Nullifier:  big.NewInt(nullifier),
		MerkleRoot: big.NewInt(root),
		Message:    big.NewInt(message),
		Scope:      big.NewInt(scope),
	}
	return &zkp.Submission{Proof: k.Prove(signals), Signals: signals}
}

// WriteFile stores the key as snarkjs JSON under t.TempDir and returns the path.
func (k *Keys) WriteFile(t testing.TB) string {
	t.Helper()
	content, err := json.Marshal(k.VK)
	if err != nil {
		t.Fatalf("marshal verifying key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "verification_key.json")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write verifying key: %v", err)
	}
	return path
}

// SubmissionJSON renders a submission the way clients send it, signals as an array.
func SubmissionJSON(sub *zkp.Submission) []byte {
	proof := make([]string, 0, zkp.ProofElements)
	for _, p := range sub.Proof {
		proof = append(proof, p.String())
	}
	signals := sub.Signals.Strings()
	out, _ := json.Marshal(map[string]any{
		"proof":         proof,
		"publicSignals": signals[:],
	})
	return out
}

// ZeroSubmissionJSON is a well-formed but cryptographically invalid submission.
func ZeroSubmissionJSON() []byte {
	return []byte(`{"proof":["0","0","0","0","0","0","0","0"],"publicSignals":["1","2","3","4"]}`)
}
