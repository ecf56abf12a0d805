package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Intent is an unsigned contract call the relay signs and pays for.
type Intent struct {
	Label string
	To    common.Address
	Data  []byte
	Value *big.Int
}

func NewCreateReportIntent(d Descriptor, recordRef [32]byte, category uint8, proof [8]*big.Int, signals [4]*big.Int) (Intent, error) {
	data, err := RikuyCoreABI.Pack("createReport", recordRef, category, proof, signals)
	if err != nil {
		return Intent{}, fmt.Errorf("pack createReport: %w", err)
	}
	return Intent{Label: "createReport", To: d.RikuyCore, Data: data}, nil
}

func NewAddMemberIntent(d Descriptor, commitment *big.Int) (Intent, error) {
	data, err := SemaphoreABI.Pack("addMember", d.GroupId, commitment)
	if err != nil {
		return Intent{}, fmt.Errorf("pack addMember: %w", err)
	}
	return Intent{Label: "addMember", To: d.Semaphore, Data: data}, nil
}

func NewRemoveMemberIntent(d Descriptor, commitment *big.Int, siblings []*big.Int) (Intent, error) {
	if siblings == nil {
		siblings = []*big.Int{}
	}
	data, err := SemaphoreABI.Pack("removeMember", d.GroupId, commitment, siblings)
	if err != nil {
		return Intent{}, fmt.Errorf("pack removeMember: %w", err)
	}
	return Intent{Label: "removeMember", To: d.Semaphore, Data: data}, nil
}

// ReportIdFromReceipt returns the on-chain report id from the ReportCreated log.
func ReportIdFromReceipt(d Descriptor, receipt *types.Receipt) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	eventId := RikuyCoreABI.Events["ReportCreated"].ID
	for _, l := range receipt.Logs {
		if l.Address != d.RikuyCore || len(l.Topics) < 2 || l.Topics[0] != eventId {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()), true
	}
	return nil, false
}

// RecordRef turns an immutable-store reference into the bytes32 anchor stored on chain.
func RecordRef(reference string) [32]byte {
	var out [32]byte
	if h := common.FromHex(reference); len(h) == 32 && has0x(reference) {
		copy(out[:], h)
		return out
	}
	copy(out[:], keccak([]byte(reference)))
	return out
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
