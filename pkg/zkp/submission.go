package zkp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

const (
	// ProofElements is the packed Groth16 proof length: A(2) B(4) C(2).
	ProofElements = 8
	// PublicSignalCount is the Semaphore public signal arity.
	PublicSignalCount = 4
)

type PublicSignals struct {
	Nullifier  *big.Int
	MerkleRoot *big.Int
	Message    *big.Int
	Scope      *big.Int
}

type Submission struct {
	Proof   [ProofElements]*big.Int
	Signals PublicSignals
}

type submissionJson struct {
	Proof         []json.RawMessage `json:"proof"`
	PublicSignals json.RawMessage   `json:"publicSignals"`
}

type namedSignalsJson struct {
	Nullifier      json.RawMessage `json:"nullifier"`
	MerkleTreeRoot json.RawMessage `json:"merkleTreeRoot"`
	MerkleRoot     json.RawMessage `json:"merkleRoot"`
	Message        json.RawMessage `json:"message"`
	Scope          json.RawMessage `json:"scope"`
}

// ParseSubmission decodes {proof, publicSignals}. publicSignals may be the ordered array
// [nullifier, merkleRoot, message, scope] or the equivalent named object.
// Every failure is a MalformedProof error.
func ParseSubmission(raw []byte) (*Submission, error) {
	var sj submissionJson
	if err := json.Unmarshal(raw, &sj); err != nil {
		return nil, apperror.MalformedProof("zkProof no es un JSON válido")
	}

	if len(sj.Proof) != ProofElements {
		return nil, apperror.MalformedProof(
			fmt.Sprintf("la prueba debe tener %d elementos, recibidos %d", ProofElements, len(sj.Proof)))
	}

	var sub Submission
	for i, el := range sj.Proof {
		v, err := decodeFieldValue(el)
		if err != nil {
			return nil, apperror.MalformedProof(fmt.Sprintf("proof[%d]: %v", i, err))
		}
		sub.Proof[i] = v
	}

	signals, err := parseSignals(sj.PublicSignals)
	if err != nil {
		return nil, err
	}
	sub.Signals = signals

	return &sub, nil
}

func parseSignals(raw json.RawMessage) (PublicSignals, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return PublicSignals{}, apperror.MalformedProof("faltan publicSignals")
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return PublicSignals{}, apperror.MalformedProof("publicSignals inválido")
		}
		if len(arr) != PublicSignalCount {
			return PublicSignals{}, apperror.MalformedProof(
				fmt.Sprintf("publicSignals debe tener %d elementos, recibidos %d", PublicSignalCount, len(arr)))
		}
		return decodeSignals(arr[0], arr[1], arr[2], arr[3])
	}

	var named namedSignalsJson
	if err := json.Unmarshal(trimmed, &named); err != nil {
		return PublicSignals{}, apperror.MalformedProof("publicSignals inválido")
	}
	root := named.MerkleTreeRoot
	if len(root) == 0 {
		root = named.MerkleRoot
	}
	return decodeSignals(named.Nullifier, root, named.Message, named.Scope)
}

func decodeSignals(nullifier, root, message, scope json.RawMessage) (PublicSignals, error) {
	names := []string{"nullifier", "merkleRoot", "message", "scope"}
	values := make([]*big.Int, PublicSignalCount)
	for i, el := range []json.RawMessage{nullifier, root, message, scope} {
		if len(el) == 0 {
			return PublicSignals{}, apperror.MalformedProof("falta publicSignals." + names[i])
		}
		v, err := decodeFieldValue(el)
		if err != nil {
			return PublicSignals{}, apperror.MalformedProof(fmt.Sprintf("publicSignals.%s: %v", names[i], err))
		}
		values[i] = v
	}

	return PublicSignals{
		Nullifier:  values[0],
		MerkleRoot: values[1],
		Message:    values[2],
		Scope:      values[3],
	}, nil
}

// decodeFieldValue accepts a JSON string (decimal or 0x-hex) or a JSON integer.
func decodeFieldValue(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("valor no numérico")
		}
		s = n.String()
	}
	return ParseFieldString(s)
}

// ParseFieldString parses a non-negative integer in decimal or 0x-prefixed hex.
func ParseFieldString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || s == "" {
		return nil, fmt.Errorf("entero inválido %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("valor negativo")
	}
	return v, nil
}

// Strings renders the signals as decimal strings in array order.
func (p PublicSignals) Strings() [PublicSignalCount]string {
	return [PublicSignalCount]string{
		p.Nullifier.String(),
		p.MerkleRoot.String(),
		p.Message.String(),
		p.Scope.String(),
	}
}

// ContractSignals is the uint256[4] payload in on-chain order [nullifier, merkleRoot, message, scope].
func (s *Submission) ContractSignals() [PublicSignalCount]*big.Int {
	return [PublicSignalCount]*big.Int{s.Signals.Nullifier, s.Signals.MerkleRoot, s.Signals.Message, s.Signals.Scope}
}

func (s *Submission) ContractProof() [ProofElements]*big.Int {
	return s.Proof
}

// Validate re-checks arity and presence on an already built submission.
func (s *Submission) Validate() error {
	if s == nil {
		return apperror.MalformedProof("prueba ausente")
	}
	for i, v := range s.Proof {
		if v == nil {
			return apperror.MalformedProof(fmt.Sprintf("proof[%d] ausente", i))
		}
	}
	if s.Signals.Nullifier == nil || s.Signals.MerkleRoot == nil || s.Signals.Message == nil || s.Signals.Scope == nil {
		return apperror.MalformedProof("publicSignals incompleto")
	}
	return nil
}
