package zkp

import (
	"errors"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

var ErrLeafNotFound = errors.New("leaf not found")

// LeanIMT is an incremental Merkle tree where a node without a right sibling is carried up
// unchanged. Removed leaves are set to zero and keep their index.
type LeanIMT struct {
	leaves []*big.Int
	index  map[string]int
	levels [][]*big.Int
}

func NewLeanIMT() *LeanIMT {
	return &LeanIMT{index: map[string]int{}}
}

func (t *LeanIMT) Size() int { return len(t.leaves) }

func (t *LeanIMT) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// Root is zero for an empty tree.
func (t *LeanIMT) Root() *big.Int {
	if len(t.levels) == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.levels[len(t.levels)-1][0])
}

func (t *LeanIMT) Has(leaf *big.Int) bool {
	_, ok := t.index[leaf.String()]
	return ok
}

func (t *LeanIMT) IndexOf(leaf *big.Int) (int, bool) {
	i, ok := t.index[leaf.String()]
	return i, ok
}

func (t *LeanIMT) Insert(leaf *big.Int) (int, error) {
	if leaf.Sign() == 0 {
		return 0, errors.New("zero leaf not allowed")
	}
	if t.Has(leaf) {
		return 0, errors.New("leaf already exists")
	}
	idx := len(t.leaves)
	t.leaves = append(t.leaves, new(big.Int).Set(leaf))
	t.index[leaf.String()] = idx
	return idx, t.rebuild()
}

// Remove zeroes the leaf in place.
func (t *LeanIMT) Remove(leaf *big.Int) error {
	idx, ok := t.IndexOf(leaf)
	if !ok {
		return ErrLeafNotFound
	}
	t.leaves[idx] = big.NewInt(0)
	delete(t.index, leaf.String())
	return t.rebuild()
}

// Siblings returns the sibling nodes of leaf bottom-up, skipping levels where the node has none.
func (t *LeanIMT) Siblings(leaf *big.Int) ([]*big.Int, int, error) {
	idx, ok := t.IndexOf(leaf)
	if !ok {
		return nil, 0, ErrLeafNotFound
	}

	var siblings []*big.Int
	pos := idx
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sib := pos ^ 1
		if sib < len(nodes) {
			siblings = append(siblings, new(big.Int).Set(nodes[sib]))
		}
		pos >>= 1
	}
	return siblings, idx, nil
}

func (t *LeanIMT) rebuild() error {
	if len(t.leaves) == 0 {
		t.levels = nil
		return nil
	}

	levels := [][]*big.Int{t.leaves}
	current := t.leaves
	for len(current) > 1 {
		next := make([]*big.Int, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			h, err := poseidon.Hash([]*big.Int{current[i], current[i+1]})
			if err != nil {
				return err
			}
			next = append(next, h)
		}
		levels = append(levels, next)
		current = next
	}
	t.levels = levels
	return nil
}

func (t *LeanIMT) Clone() *LeanIMT {
	c := &LeanIMT{index: make(map[string]int, len(t.index))}
	for k, v := range t.index {
		c.index[k] = v
	}
	for _, level := range t.levels {
		cp := make([]*big.Int, len(level))
		for i, n := range level {
			cp[i] = new(big.Int).Set(n)
		}
		c.levels = append(c.levels, cp)
	}
	if len(c.levels) > 0 {
		c.leaves = c.levels[0]
	}
	return c
}
