// Package group mirrors the on-chain Semaphore group. The service is the group admin, so
// every membership change goes through here and the local tree tracks the contract's.
package group

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
)

// DefaultRootValidity matches the contract's default merkle tree duration.
const DefaultRootValidity = time.Hour

type Relayer interface {
	Submit(ctx context.Context, intent chain.Intent) (*relay.SubmitResult, error)
}

type Leaf struct {
	Commitment *big.Int
	Index      int
	Removed    bool
}

type historicRoot struct {
	root       *big.Int
	replacedAt time.Time
}

type Group struct {
	desc   chain.Descriptor
	relay  Relayer
	log    *logger.Logger
	oracle *RootOracle

	validity time.Duration
	now      func() time.Time

	// mu serializes membership changes so leaf indexes follow on-chain order
	mu      sync.Mutex
	tree    *zkp.LeanIMT
	history []historicRoot
}

func New(desc chain.Descriptor, relayer Relayer, oracle *RootOracle, log *logger.Logger) *Group {
	if log == nil {
		log = logger.Nop()
	}
	return &Group{
		desc:     desc,
		relay:    relayer,
		oracle:   oracle,
		log:      log.Named("group"),
		validity: DefaultRootValidity,
		now:      time.Now,
		tree:     zkp.NewLeanIMT(),
	}
}

// Load rebuilds the mirror from stored leaves, which must be ordered by index with no gaps.
func (g *Group) Load(leaves []Leaf) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tree := zkp.NewLeanIMT()
	for i, l := range leaves {
		if l.Index != i {
			return fmt.Errorf("membership leaves out of order: expected index %d, got %d", i, l.Index)
		}
		if _, err := tree.Insert(l.Commitment); err != nil {
			return fmt.Errorf("leaf %d: %w", i, err)
		}
		if l.Removed {
			if err := tree.Remove(l.Commitment); err != nil {
				return fmt.Errorf("leaf %d: %w", i, err)
			}
		}
	}

	g.tree = tree
	g.history = nil
	g.log.Infof("Loaded membership group with %d leaves, root %s", tree.Size(), tree.Root())
	return nil
}

type MembershipChange struct {
	Index  int
	Root   *big.Int
	Result *relay.SubmitResult
}

// AddMember registers commitment on chain through the relay, then in the mirror.
func (g *Group) AddMember(ctx context.Context, commitment *big.Int) (*MembershipChange, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tree.Has(commitment) {
		return nil, apperror.DuplicateCredential()
	}

	intent, err := chain.NewAddMemberIntent(g.desc, commitment)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	res, err := g.relay.Submit(ctx, intent)
	if err != nil {
		return nil, err
	}

	previous := g.tree.Root()
	index, err := g.tree.Insert(commitment)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	g.recordReplaced(previous)

	return &MembershipChange{Index: index, Root: g.tree.Root(), Result: res}, nil
}

// RemoveMember zeroes commitment on chain, then in the mirror. A failed transaction leaves
// the mirror untouched.
func (g *Group) RemoveMember(ctx context.Context, commitment *big.Int) (*MembershipChange, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	siblings, index, err := g.tree.Siblings(commitment)
	if err != nil {
		return nil, apperror.NotFound("commitment")
	}

	intent, err := chain.NewRemoveMemberIntent(g.desc, commitment, siblings)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	res, err := g.relay.Submit(ctx, intent)
	if err != nil {
		return nil, err
	}

	previous := g.tree.Root()
	if err := g.tree.Remove(commitment); err != nil {
		return nil, apperror.Internal(err)
	}
	g.recordReplaced(previous)
	if g.oracle != nil {
		g.oracle.Forget(previous)
	}

	return &MembershipChange{Index: index, Root: g.tree.Root(), Result: res}, nil
}

func (g *Group) recordReplaced(root *big.Int) {
	if root.Sign() == 0 {
		return
	}
	g.history = append(g.history, historicRoot{root: root, replacedAt: g.now()})

	cutoff := g.now().Add(-g.validity)
	keep := g.history[:0]
	for _, h := range g.history {
		if h.replacedAt.After(cutoff) {
			keep = append(keep, h)
		}
	}
	g.history = keep
}

func (g *Group) Root() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tree.Root()
}

func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tree.Size()
}

// IsKnownRoot accepts the current root and roots replaced within the validity window,
// falling back to the contract when the mirror does not know the root.
func (g *Group) IsKnownRoot(ctx context.Context, root *big.Int) (bool, error) {
	if g.isLocalRoot(root) {
		return true, nil
	}
	if g.oracle == nil {
		return false, nil
	}
	return g.oracle.IsCurrentRoot(ctx, root)
}

func (g *Group) isLocalRoot(root *big.Int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if root.Sign() == 0 {
		return false
	}
	if g.tree.Root().Cmp(root) == 0 {
		return true
	}
	cutoff := g.now().Add(-g.validity)
	for _, h := range g.history {
		if h.root.Cmp(root) == 0 && h.replacedAt.After(cutoff) {
			return true
		}
	}
	return false
}

// RootWith is the root the group would have after appending commitment.
func (g *Group) RootWith(commitment *big.Int) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	preview := g.tree.Clone()
	if _, err := preview.Insert(commitment); err != nil {
		return nil, err
	}
	return preview.Root(), nil
}

// Adopt appends a commitment that is already a member on chain.
func (g *Group) Adopt(commitment *big.Int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	previous := g.tree.Root()
	index, err := g.tree.Insert(commitment)
	if err != nil {
		return 0, err
	}
	g.recordReplaced(previous)
	return index, nil
}

// OnChainRoot reads the contract's current root, bypassing the cache.
func (g *Group) OnChainRoot(ctx context.Context) (*big.Int, error) {
	if g.oracle == nil {
		return nil, fmt.Errorf("no root reader configured")
	}
	return g.oracle.reader.MerkleTreeRoot(ctx)
}
