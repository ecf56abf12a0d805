package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const rikuyCoreAbiJson = `[
  {"type":"function","name":"createReport","stateMutability":"nonpayable",
   "inputs":[
     {"name":"arkivTxId","type":"bytes32"},
     {"name":"categoryId","type":"uint8"},
     {"name":"proof","type":"uint256[8]"},
     {"name":"publicSignals","type":"uint256[4]"}],
   "outputs":[{"name":"reportId","type":"uint256"}]},
  {"type":"event","name":"ReportCreated","anonymous":false,
   "inputs":[
     {"name":"reportId","type":"uint256","indexed":true},
     {"name":"arkivTxId","type":"bytes32","indexed":false},
     {"name":"categoryId","type":"uint8","indexed":false},
     {"name":"nullifierHash","type":"uint256","indexed":false}]}
]`

const semaphoreAbiJson = `[
  {"type":"function","name":"addMember","stateMutability":"nonpayable",
   "inputs":[{"name":"groupId","type":"uint256"},{"name":"identityCommitment","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"removeMember","stateMutability":"nonpayable",
   "inputs":[
     {"name":"groupId","type":"uint256"},
     {"name":"identityCommitment","type":"uint256"},
     {"name":"merkleProofSiblings","type":"uint256[]"}],
   "outputs":[]},
  {"type":"function","name":"getMerkleTreeRoot","stateMutability":"view",
   "inputs":[{"name":"groupId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	RikuyCoreABI = mustParseAbi(rikuyCoreAbiJson)
	SemaphoreABI = mustParseAbi(semaphoreAbiJson)
)

func mustParseAbi(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
