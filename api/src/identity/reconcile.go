package identity

import (
	"context"
	"math/big"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/group"
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
)

type GroupMirror interface {
	Load(leaves []group.Leaf) error
	Root() *big.Int
	RootWith(commitment *big.Int) (*big.Int, error)
	Adopt(commitment *big.Int) (int, error)
	OnChainRoot(ctx context.Context) (*big.Int, error)
}

// Reconcile rebuilds the group mirror from stored credentials at startup. A PENDING row
// left by an interrupted issuance is promoted when the contract root shows its commitment
// was added, and dropped otherwise.
func Reconcile(ctx context.Context, repo Repository, mirror GroupMirror, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}

	members, err := repo.Members(ctx)
	if err != nil {
		return err
	}
	leaves := make([]group.Leaf, 0, len(members))
	for _, m := range members {
		c, ok := new(big.Int).SetString(m.Commitment, 10)
		if !ok {
			log.Warnf("Skipping credential %d with malformed commitment", m.Id)
			continue
		}
		leaves = append(leaves, group.Leaf{
			Commitment: c,
			Index:      m.GroupIndex,
			Removed:    m.Status == model.CredentialRevoked,
		})
	}
	if err := mirror.Load(leaves); err != nil {
		return err
	}

	onChain, err := mirror.OnChainRoot(ctx)
	if err != nil {
		log.Warnf("Could not read the on-chain group root, skipping reconciliation: %v", err)
		return nil
	}

	pending, err := repo.Pending(ctx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		c, ok := new(big.Int).SetString(p.Commitment, 10)
		if !ok {
			continue
		}
		candidate, err := mirror.RootWith(c)
		if err == nil && candidate.Cmp(onChain) == 0 {
			index, err := mirror.Adopt(c)
			if err != nil {
				return err
			}
			if err := repo.MarkVerified(ctx, p.Id, index, "", time.Now().UTC()); err != nil {
				return err
			}
			log.Infof("Promoted pending credential %d found on chain at index %d", p.Id, index)
			continue
		}
		if err := repo.DeletePending(ctx, p.Id); err != nil {
			return err
		}
		log.Infof("Dropped pending credential %d that never reached the group", p.Id)
	}

	if mirror.Root().Cmp(onChain) != 0 {
		log.Fields(map[string]any{
			"mirrorRoot":  mirror.Root().String(),
			"onChainRoot": onChain.String(),
		}).Warn("Group mirror differs from the contract root")
	}
	return nil
}

func (s *Service) Reconcile(ctx context.Context, mirror GroupMirror) error {
	return Reconcile(ctx, s.repo, mirror, s.log)
}
