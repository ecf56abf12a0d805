package zkp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var (
	errInvalidProof = errors.New("pairing check failed")
	errInputOrder   = errors.New("public input is not in the scalar field")
)

// VerifyingKey is a Groth16 verifying key over BN254.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    []bn254.G1Affine
}

// snarkjs verification_key.json layout
type vkJson struct {
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
	NPublic  int        `json:"nPublic"`
	Alpha    []string   `json:"vk_alpha_1"`
	Beta     [][]string `json:"vk_beta_2"`
	Gamma    [][]string `json:"vk_gamma_2"`
	Delta    [][]string `json:"vk_delta_2"`
	IC       [][]string `json:"IC"`
}

func LoadVerifyingKey(path string) (*VerifyingKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return ParseVerifyingKey(content)
}

func ParseVerifyingKey(content []byte) (*VerifyingKey, error) {
	var vj vkJson
	if err := json.Unmarshal(content, &vj); err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	if vj.Protocol != "" && vj.Protocol != "groth16" {
		return nil, fmt.Errorf("unsupported protocol %q", vj.Protocol)
	}

	var vk VerifyingKey
	var err error
	if vk.Alpha, err = g1FromStrings(vj.Alpha); err != nil {
		return nil, fmt.Errorf("vk_alpha_1: %w", err)
	}
	if vk.Beta, err = g2FromStrings(vj.Beta); err != nil {
		return nil, fmt.Errorf("vk_beta_2: %w", err)
	}
	if vk.Gamma, err = g2FromStrings(vj.Gamma); err != nil {
		return nil, fmt.Errorf("vk_gamma_2: %w", err)
	}
	if vk.Delta, err = g2FromStrings(vj.Delta); err != nil {
		return nil, fmt.Errorf("vk_delta_2: %w", err)
	}
	for i, s := range vj.IC {
		p, err := g1FromStrings(s)
		if err != nil {
			return nil, fmt.Errorf("IC[%d]: %w", i, err)
		}
		vk.IC = append(vk.IC, p)
	}

	if vj.NPublic != 0 && vj.NPublic+1 != len(vk.IC) {
		return nil, fmt.Errorf("nPublic %d does not match %d IC points", vj.NPublic, len(vk.IC))
	}
	if len(vk.IC) != PublicSignalCount+1 {
		return nil, fmt.Errorf("verifying key has %d public inputs, want %d", len(vk.IC)-1, PublicSignalCount)
	}

	return &vk, nil
}

// MarshalJSON writes the key in snarkjs layout.
func (vk *VerifyingKey) MarshalJSON() ([]byte, error) {
	vj := vkJson{
		Protocol: "groth16",
		Curve:    "bn128",
		NPublic:  len(vk.IC) - 1,
		Alpha:    g1ToStrings(&vk.Alpha),
		Beta:     g2ToStrings(&vk.Beta),
		Gamma:    g2ToStrings(&vk.Gamma),
		Delta:    g2ToStrings(&vk.Delta),
	}
	for i := range vk.IC {
		vj.IC = append(vj.IC, g1ToStrings(&vk.IC[i]))
	}
	return json.Marshal(vj)
}

type proofPoints struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// unpackProof reads the packed contract layout [A.x, A.y, B.x1, B.x0, B.y1, B.y0, C.x, C.y].
func unpackProof(p [ProofElements]*big.Int) (proofPoints, error) {
	var pp proofPoints
	var err error
	if pp.A, err = g1FromInts(p[0], p[1]); err != nil {
		return pp, fmt.Errorf("A: %w", err)
	}
	if pp.B, err = g2FromInts(p[3], p[2], p[5], p[4]); err != nil {
		return pp, fmt.Errorf("B: %w", err)
	}
	if pp.C, err = g1FromInts(p[6], p[7]); err != nil {
		return pp, fmt.Errorf("C: %w", err)
	}
	return pp, nil
}

// PackProof is the inverse of unpackProof.
func PackProof(a *bn254.G1Affine, b *bn254.G2Affine, c *bn254.G1Affine) [ProofElements]*big.Int {
	return [ProofElements]*big.Int{
		a.X.BigInt(new(big.Int)), a.Y.BigInt(new(big.Int)),
		b.X.A1.BigInt(new(big.Int)), b.X.A0.BigInt(new(big.Int)),
		b.Y.A1.BigInt(new(big.Int)), b.Y.A0.BigInt(new(big.Int)),
		c.X.BigInt(new(big.Int)), c.Y.BigInt(new(big.Int)),
	}
}

// verifyGroth16 checks e(-A,B)·e(α,β)·e(vkX,γ)·e(C,δ) == 1.
func verifyGroth16(vk *VerifyingKey, proof proofPoints, inputs []*big.Int) error {
	if len(inputs)+1 != len(vk.IC) {
		return fmt.Errorf("expected %d public inputs, got %d", len(vk.IC)-1, len(inputs))
	}

	var vkX bn254.G1Jac
	vkX.FromAffine(&vk.IC[0])
	for i, in := range inputs {
		if in.Cmp(fr.Modulus()) >= 0 {
			return errInputOrder
		}
		var term bn254.G1Jac
		term.FromAffine(&vk.IC[i+1])
		term.ScalarMultiplication(&term, in)
		vkX.AddAssign(&term)
	}
	var vkXAff bn254.G1Affine
	vkXAff.FromJacobian(&vkX)

	var negA bn254.G1Affine
	negA.Neg(&proof.A)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{negA, vk.Alpha, vkXAff, proof.C},
		[]bn254.G2Affine{proof.B, vk.Beta, vk.Gamma, vk.Delta},
	)
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidProof
	}
	return nil
}

func setFp(dst *fp.Element, v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return errors.New("coordinate out of range")
	}
	dst.SetBigInt(v)
	return nil
}

func g1FromInts(x, y *big.Int) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if err := setFp(&p.X, x); err != nil {
		return p, err
	}
	if err := setFp(&p.Y, y); err != nil {
		return p, err
	}
	if p.IsInfinity() {
		return p, errors.New("point at infinity")
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, errors.New("point not on curve")
	}
	return p, nil
}

func g2FromInts(x0, x1, y0, y1 *big.Int) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	for _, c := range []struct {
		dst *fp.Element
		v   *big.Int
	}{{&p.X.A0, x0}, {&p.X.A1, x1}, {&p.Y.A0, y0}, {&p.Y.A1, y1}} {
		if err := setFp(c.dst, c.v); err != nil {
			return p, err
		}
	}
	if p.IsInfinity() {
		return p, errors.New("point at infinity")
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, errors.New("point not on curve")
	}
	return p, nil
}

func g1FromStrings(s []string) (bn254.G1Affine, error) {
	if len(s) < 2 {
		return bn254.G1Affine{}, errors.New("G1 point needs 2 coordinates")
	}
	ints, err := parseAll(s[:2])
	if err != nil {
		return bn254.G1Affine{}, err
	}
	return g1FromInts(ints[0], ints[1])
}

func g2FromStrings(s [][]string) (bn254.G2Affine, error) {
	if len(s) < 2 || len(s[0]) != 2 || len(s[1]) != 2 {
		return bn254.G2Affine{}, errors.New("G2 point needs 2x2 coordinates")
	}
	ints, err := parseAll([]string{s[0][0], s[0][1], s[1][0], s[1][1]})
	if err != nil {
		return bn254.G2Affine{}, err
	}
	return g2FromInts(ints[0], ints[1], ints[2], ints[3])
}

func parseAll(s []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(s))
	for i := range s {
		v, err := ParseFieldString(s[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func g1ToStrings(p *bn254.G1Affine) []string {
	return []string{p.X.String(), p.Y.String(), "1"}
}

func g2ToStrings(p *bn254.G2Affine) [][]string {
	return [][]string{
		{p.X.A0.String(), p.X.A1.String()},
		{p.Y.A0.String(), p.Y.A1.String()},
		{"1", "0"},
	}
}
