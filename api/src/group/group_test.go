package group

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu     sync.Mutex
	labels []string
	err    error
}

func (f *fakeRelay) Submit(_ context.Context, intent chain.Intent) (*relay.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.labels = append(f.labels, intent.Label)
	return &relay.SubmitResult{TxHash: "0xabc", BlockNumber: 10}, nil
}

type fakeReader struct {
	root  *big.Int
	err   error
	calls int
}

func (f *fakeReader) MerkleTreeRoot(context.Context) (*big.Int, error) {
	f.calls++
	return f.root, f.err
}

func testDescriptor() chain.Descriptor {
	return chain.Descriptor{
		ChainId:   big.NewInt(534351),
		RpcUrl:    "http://localhost:8545",
		RikuyCore: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Semaphore: common.HexToAddress("0x2000000000000000000000000000000000000002"),
		GroupId:   big.NewInt(1),
	}
}

func TestAddMemberUpdatesMirrorAfterRelay(t *testing.T) {
	r := &fakeRelay{}
	g := New(testDescriptor(), r, nil, nil)

	change, err := g.AddMember(context.Background(), big.NewInt(11))
	require.NoError(t, err)
	assert.Equal(t, 0, change.Index)
	assert.Equal(t, "0xabc", change.Result.TxHash)

	change, err = g.AddMember(context.Background(), big.NewInt(22))
	require.NoError(t, err)
	assert.Equal(t, 1, change.Index)
	assert.Equal(t, []string{"addMember", "addMember"}, r.labels)
	assert.Equal(t, 2, g.Size())

	_, err = g.AddMember(context.Background(), big.NewInt(11))
	assert.True(t, apperror.Is(err, apperror.KindDuplicateCredential))
}

func TestAddMemberRelayFailureLeavesMirror(t *testing.T) {
	r := &fakeRelay{err: apperror.TransactionFailed(errors.New("reverted"))}
	g := New(testDescriptor(), r, nil, nil)

	_, err := g.AddMember(context.Background(), big.NewInt(11))
	assert.True(t, apperror.Is(err, apperror.KindTransactionFailed))
	assert.Equal(t, 0, g.Size())
	assert.Equal(t, int64(0), g.Root().Int64())
}

func TestRemoveMember(t *testing.T) {
	r := &fakeRelay{}
	g := New(testDescriptor(), r, nil, nil)
	ctx := context.Background()

	_, err := g.AddMember(ctx, big.NewInt(11))
	require.NoError(t, err)
	_, err = g.AddMember(ctx, big.NewInt(22))
	require.NoError(t, err)
	before := g.Root()

	change, err := g.RemoveMember(ctx, big.NewInt(11))
	require.NoError(t, err)
	assert.Equal(t, 0, change.Index)
	assert.NotEqual(t, before.String(), change.Root.String())
	assert.Equal(t, "removeMember", r.labels[len(r.labels)-1])

	_, err = g.RemoveMember(ctx, big.NewInt(11))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestLoadMatchesIncrementalHistory(t *testing.T) {
	ctx := context.Background()
	live := New(testDescriptor(), &fakeRelay{}, nil, nil)
	for _, c := range []int64{5, 6, 7} {
		_, err := live.AddMember(ctx, big.NewInt(c))
		require.NoError(t, err)
	}
	_, err := live.RemoveMember(ctx, big.NewInt(6))
	require.NoError(t, err)

	restored := New(testDescriptor(), &fakeRelay{}, nil, nil)
	require.NoError(t, restored.Load([]Leaf{
		{Commitment: big.NewInt(5), Index: 0},
		{Commitment: big.NewInt(6), Index: 1, Removed: true},
		{Commitment: big.NewInt(7), Index: 2},
	}))
	assert.Equal(t, live.Root().String(), restored.Root().String())
	assert.Equal(t, 3, restored.Size())

	err = restored.Load([]Leaf{{Commitment: big.NewInt(5), Index: 1}})
	assert.Error(t, err)
}

func TestIsKnownRootHistoryWindow(t *testing.T) {
	ctx := context.Background()
	g := New(testDescriptor(), &fakeRelay{}, nil, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	_, err := g.AddMember(ctx, big.NewInt(11))
	require.NoError(t, err)
	first := g.Root()
	_, err = g.AddMember(ctx, big.NewInt(22))
	require.NoError(t, err)

	ok, err := g.IsKnownRoot(ctx, g.Root())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.IsKnownRoot(ctx, first)
	assert.True(t, ok)

	clock = clock.Add(DefaultRootValidity + time.Second)
	ok, _ = g.IsKnownRoot(ctx, first)
	assert.False(t, ok)

	ok, _ = g.IsKnownRoot(ctx, big.NewInt(0))
	assert.False(t, ok)
}

func TestIsKnownRootFallsBackToContract(t *testing.T) {
	ctx := context.Background()
	onChain := zkp.NewLeanIMT()
	_, err := onChain.Insert(big.NewInt(99))
	require.NoError(t, err)

	reader := &fakeReader{root: onChain.Root()}
	oracle := NewRootOracle(reader)
	defer oracle.Stop()
	g := New(testDescriptor(), &fakeRelay{}, oracle, nil)

	ok, err := g.IsKnownRoot(ctx, onChain.Root())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsKnownRoot(ctx, onChain.Root())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, reader.calls)

	ok, err = g.IsKnownRoot(ctx, big.NewInt(1234))
	require.NoError(t, err)
	assert.False(t, ok)

	reader.err = errors.New("rpc down")
	_, err = g.IsKnownRoot(ctx, big.NewInt(4321))
	assert.Error(t, err)
}

func TestRootWithAndAdopt(t *testing.T) {
	g := New(testDescriptor(), &fakeRelay{}, nil, nil)
	_, err := g.AddMember(context.Background(), big.NewInt(11))
	require.NoError(t, err)

	preview, err := g.RootWith(big.NewInt(22))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Size())

	index, err := g.Adopt(big.NewInt(22))
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, preview.String(), g.Root().String())

	_, err = g.OnChainRoot(context.Background())
	assert.Error(t, err)
}
