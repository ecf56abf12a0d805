package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/crypto"
)

// BlockchainCaller is the read-only slice of an RPC client.
type BlockchainCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type GroupRootReader struct {
	caller BlockchainCaller
	desc   Descriptor
}

func NewGroupRootReader(caller BlockchainCaller, desc Descriptor) *GroupRootReader {
	return &GroupRootReader{caller: caller, desc: desc}
}

// MerkleTreeRoot reads the current root of the configured group.
func (r *GroupRootReader) MerkleTreeRoot(ctx context.Context) (*big.Int, error) {
	data, err := SemaphoreABI.Pack("getMerkleTreeRoot", r.desc.GroupId)
	if err != nil {
		return nil, err
	}

	to := r.desc.Semaphore
	res, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	out, err := SemaphoreABI.Unpack("getMerkleTreeRoot", res)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected getMerkleTreeRoot output length %d", len(out))
	}
	root, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getMerkleTreeRoot output type %T", out[0])
	}
	return root, nil
}

func keccak(b []byte) []byte { return crypto.Keccak256(b) }
