package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	shell "github.com/ipfs/go-ipfs-api"
)

const DefaultGateway = "https://ipfs.io/ipfs/"

type BlobRef struct {
	Id          string
	Url         string
	ContentHash string
}

// IPFSBlobStore pins uploads on an IPFS node through its HTTP API.
type IPFSBlobStore struct {
	sh      *shell.Shell
	gateway string
}

func NewIPFSBlobStore(apiUrl, gatewayUrl string, timeout time.Duration) *IPFSBlobStore {
	sh := shell.NewShell(apiUrl)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}
	if gatewayUrl == "" {
		gatewayUrl = DefaultGateway
	}
	if !strings.HasSuffix(gatewayUrl, "/") {
		gatewayUrl += "/"
	}
	return &IPFSBlobStore{sh: sh, gateway: gatewayUrl}
}

func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload pins data and returns its CID and public gateway URL. The shell client has no
// context support, so the deadline comes from the configured timeout.
func (b *IPFSBlobStore) Upload(_ context.Context, data []byte, _ string) (*BlobRef, error) {
	cid, err := b.sh.Add(bytes.NewReader(data), shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return nil, apperror.ExternalService("ipfs", err)
	}
	return &BlobRef{Id: cid, Url: b.Url(cid), ContentHash: ContentHash(data)}, nil
}

func (b *IPFSBlobStore) Url(cid string) string {
	return b.gateway + cid
}
