package zkp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Result is the outcome of a verification. Verify never returns an error; failures
// set IsValid=false and Error.
type Result struct {
	IsValid    bool
	Nullifier  *big.Int
	MerkleRoot *big.Int
	Message    *big.Int
	Scope      *big.Int
	Error      string
}

// RootOracle answers whether a Merkle root belongs to the membership group.
type RootOracle interface {
	IsKnownRoot(ctx context.Context, root *big.Int) (bool, error)
}

// Verifier is implemented by exactly two strategies, picked once at startup by NewVerifier.
type Verifier interface {
	Verify(ctx context.Context, sub *Submission) Result
	Enforcing() bool
}

func NewVerifier(devMode bool, vk *VerifyingKey, roots RootOracle, log *logger.Logger) (Verifier, error) {
	if devMode {
		return NewBypassVerifier(log), nil
	}
	if vk == nil {
		return nil, fmt.Errorf("verifying key required when devMode is off")
	}
	return NewEnforcingVerifier(vk, roots, log), nil
}

// HashToField is the Semaphore message/scope hash: keccak256(uint256) >> 8.
func HashToField(v *big.Int) *big.Int {
	h := crypto.Keccak256(common.LeftPadBytes(v.Bytes(), 32))
	return new(big.Int).Rsh(new(big.Int).SetBytes(h), 8)
}

// CircuitInputs orders the signals as the circuit expects them:
// [merkleRoot, nullifier, hash(message), hash(scope)].
func CircuitInputs(s PublicSignals) []*big.Int {
	return []*big.Int{s.MerkleRoot, s.Nullifier, HashToField(s.Message), HashToField(s.Scope)}
}

type EnforcingVerifier struct {
	vk    *VerifyingKey
	roots RootOracle
	log   *logger.Logger
}

func NewEnforcingVerifier(vk *VerifyingKey, roots RootOracle, log *logger.Logger) *EnforcingVerifier {
	if log == nil {
		log = logger.Nop()
	}
	return &EnforcingVerifier{vk: vk, roots: roots, log: log.Named("zkp-verifier")}
}

func (v *EnforcingVerifier) Enforcing() bool { return true }

func (v *EnforcingVerifier) Verify(ctx context.Context, sub *Submission) Result {
	res := resultFrom(sub)
	if err := sub.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}
	if sub.Signals.Message.Cmp(maxUint256) > 0 || sub.Signals.Scope.Cmp(maxUint256) > 0 {
		res.Error = "message or scope exceeds uint256"
		return res
	}

	points, err := unpackProof(sub.Proof)
	if err != nil {
		res.Error = fmt.Sprintf("invalid proof encoding: %v", err)
		return res
	}

	if err := verifyGroth16(v.vk, points, CircuitInputs(sub.Signals)); err != nil {
		res.Error = err.Error()
		return res
	}

	if v.roots != nil {
		known, err := v.roots.IsKnownRoot(ctx, sub.Signals.MerkleRoot)
		if err != nil {
			v.log.Error(err, "Could not resolve membership root")
			res.Error = "membership root could not be checked"
			return res
		}
		if !known {
			res.Error = "merkle root is not a group root"
			return res
		}
	}

	res.IsValid = true
	return res
}

// BypassVerifier accepts every submission. It is only reachable through deployment config.
type BypassVerifier struct {
	log *logger.Logger
}

func NewBypassVerifier(log *logger.Logger) *BypassVerifier {
	if log == nil {
		log = logger.Nop()
	}
	bv := &BypassVerifier{log: log.Named("zkp-verifier")}
	bv.log.Fields(map[string]any{"devMode": true, "securityBypassed": true}).
		Warn("DEV MODE: zero-knowledge proof verification is DISABLED")
	return bv
}

func (v *BypassVerifier) Enforcing() bool { return false }

func (v *BypassVerifier) Verify(_ context.Context, sub *Submission) Result {
	res := resultFrom(sub)
	fields := map[string]any{"devMode": true, "securityBypassed": true}
	if sub != nil && sub.Signals.Nullifier != nil {
		fields["nullifier"] = sub.Signals.Nullifier.String()
	}
	v.log.Fields(fields).Warn("DEV MODE: accepting proof without verification")
	res.IsValid = true
	return res
}

func resultFrom(sub *Submission) Result {
	if sub == nil {
		return Result{}
	}
	return Result{
		Nullifier:  sub.Signals.Nullifier,
		MerkleRoot: sub.Signals.MerkleRoot,
		Message:    sub.Signals.Message,
		Scope:      sub.Signals.Scope,
	}
}
