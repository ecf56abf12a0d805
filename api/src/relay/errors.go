package relay

import (
	"strings"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

// mapChainError translates provider and revert errors. Raw provider errors stay as causes.
func mapChainError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return apperror.InsufficientFunds(err)
	case strings.Contains(msg, "same nullifier"), strings.Contains(msg, "nullifier already"):
		return apperror.NullifierReused()
	case strings.Contains(msg, "invalid proof"), strings.Contains(msg, "invalid zk proof"), strings.Contains(msg, "invalidproof"):
		return apperror.InvalidProof("rechazada en la blockchain")
	default:
		return apperror.TransactionFailed(err)
	}
}

func isNonceConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "invalid nonce")
}

// isAlreadyKnown means the node already holds this exact signed transaction.
func isAlreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}
