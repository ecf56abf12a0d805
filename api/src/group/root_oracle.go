package group

import (
	"context"
	"math/big"
	"time"

	"github.com/karlseguin/ccache/v3"
)

const (
	rootCacheSize = 256
	rootCacheTTL  = 30 * time.Second
)

type RootReader interface {
	MerkleTreeRoot(ctx context.Context) (*big.Int, error)
}

// RootOracle asks the contract for the current root and caches positive answers briefly.
type RootOracle struct {
	reader RootReader
	cache  *ccache.Cache[bool]
	ttl    time.Duration
}

func NewRootOracle(reader RootReader) *RootOracle {
	return &RootOracle{
		reader: reader,
		cache:  ccache.New(ccache.Configure[bool]().MaxSize(rootCacheSize)),
		ttl:    rootCacheTTL,
	}
}

func (o *RootOracle) IsCurrentRoot(ctx context.Context, root *big.Int) (bool, error) {
	key := root.String()
	if item := o.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	current, err := o.reader.MerkleTreeRoot(ctx)
	if err != nil {
		return false, err
	}
	o.cache.Set(current.String(), true, o.ttl)
	return current.Cmp(root) == 0, nil
}

func (o *RootOracle) Forget(root *big.Int) {
	o.cache.Delete(root.String())
}

func (o *RootOracle) Stop() {
	o.cache.Stop()
}
