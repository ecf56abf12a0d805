package reasoncodes

type ReasonCode string

const (
	ErrValidation          ReasonCode = "VALIDATION_ERROR"
	ErrInvalidProofFormat  ReasonCode = "INVALID_PROOF_FORMAT"
	ErrDuplicateCredential ReasonCode = "DUPLICATE_CREDENTIAL"
	ErrDuplicateImage      ReasonCode = "DUPLICATE_IMAGE"
	ErrInvalidZkProof      ReasonCode = "INVALID_ZK_PROOF"
	ErrNullifierUsed       ReasonCode = "NULLIFIER_ALREADY_USED"
	ErrGeofence            ReasonCode = "GEOFENCE_ERROR"
	ErrContentModeration   ReasonCode = "CONTENT_MODERATION_ERROR"
	ErrRateLimitExceeded   ReasonCode = "RATE_LIMIT_EXCEEDED"
	ErrRelayerFunds        ReasonCode = "RELAYER_INSUFFICIENT_FUNDS"
	ErrExternalService     ReasonCode = "EXTERNAL_SERVICE_ERROR"
	ErrBlockchainTxFailed  ReasonCode = "BLOCKCHAIN_TX_FAILED"
	ErrNotFound            ReasonCode = "NOT_FOUND"
	ErrUnauthorized        ReasonCode = "UNAUTHORIZED"
	ErrInternal            ReasonCode = "INTERNAL_ERROR"
)
