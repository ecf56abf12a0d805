// Package chain describes the single EVM network the service talks to and encodes the
// contract calls it makes there.
package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Descriptor is resolved once at startup. Nothing downstream branches on which network it is.
type Descriptor struct {
	Name        string
	ChainId     *big.Int
	RpcUrl      string
	ExplorerUrl string
	RikuyCore   common.Address
	Semaphore   common.Address
	GroupId     *big.Int
}

func (d Descriptor) Validate() error {
	if d.ChainId == nil || d.ChainId.Sign() <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if d.RpcUrl == "" {
		return fmt.Errorf("rpc url required")
	}
	if d.RikuyCore == (common.Address{}) {
		return fmt.Errorf("rikuy core contract address required")
	}
	if d.Semaphore == (common.Address{}) {
		return fmt.Errorf("semaphore contract address required")
	}
	if d.GroupId == nil {
		return fmt.Errorf("group id required")
	}
	return nil
}

func (d Descriptor) TxUrl(txHash string) string {
	if d.ExplorerUrl == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", d.ExplorerUrl, txHash)
}

// PublicView is the part of the descriptor safe to expose over HTTP.
type PublicView struct {
	Name        string `json:"name"`
	ChainId     string `json:"chainId"`
	ExplorerUrl string `json:"explorerUrl"`
	Contracts   struct {
		RikuyCore string `json:"rikuyCore"`
		Semaphore string `json:"semaphore"`
	} `json:"contracts"`
	GroupId string `json:"groupId"`
}

func (d Descriptor) Public() PublicView {
	var v PublicView
	v.Name = d.Name
	v.ChainId = d.ChainId.String()
	v.ExplorerUrl = d.ExplorerUrl
	v.Contracts.RikuyCore = d.RikuyCore.Hex()
	v.Contracts.Semaphore = d.Semaphore.Hex()
	if d.GroupId != nil {
		v.GroupId = d.GroupId.String()
	}
	return v
}
