package identity

import (
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"gorm.io/gorm"
)

type Settings struct {
	MasterKey     []byte
	Pepper        []byte
	MaxImageBytes int64
}

func Build(db *gorm.DB, members Membership, extractor DocumentExtractor, settings Settings, log *logger.Logger) (*Handler, *Service, error) {
	keys, err := DeriveKeys(settings.MasterKey)
	if err != nil {
		return nil, nil, err
	}
	hasher, err := NewDocumentHasher(settings.Pepper)
	if err != nil {
		return nil, nil, err
	}

	repo := NewRepository(db)
	service, err := NewService(repo, NewRateLimiter(repo), members, keys, hasher, extractor, log)
	if err != nil {
		return nil, nil, err
	}
	return NewHandler(service, settings.MaxImageBytes), service, nil
}
