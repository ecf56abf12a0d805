package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	reasoncodes "github.com/RIKUY-ORG/Rikuy/pkg/reason_codes"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatusMapping(t *testing.T) {
	tests := []struct {
		err    *apperror.Error
		status int
	}{
		{apperror.Validation("bad", nil), http.StatusBadRequest},
		{apperror.MalformedProof("short"), http.StatusBadRequest},
		{apperror.Geofence(), http.StatusBadRequest},
		{apperror.ContentModeration(), http.StatusBadRequest},
		{apperror.Unauthorized("no token"), http.StatusUnauthorized},
		{apperror.InvalidProof("pairing"), http.StatusForbidden},
		{apperror.NullifierReused(), http.StatusForbidden},
		{apperror.NotFound("report"), http.StatusNotFound},
		{apperror.DuplicateCredential(), http.StatusConflict},
		{apperror.DuplicateContent(), http.StatusConflict},
		{apperror.RateLimit(60), http.StatusTooManyRequests},
		{apperror.ExternalService("ipfs", errors.New("down")), http.StatusBadGateway},
		{apperror.TransactionFailed(errors.New("reverted")), http.StatusBadGateway},
		{apperror.InsufficientFunds(nil), http.StatusServiceUnavailable},
		{apperror.Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status())
		})
	}
}

func TestWrappedErrorsAreClassified(t *testing.T) {
	inner := apperror.NullifierReused()
	wrapped := fmt.Errorf("admission: %w", inner)

	assert.True(t, apperror.Is(wrapped, apperror.KindNullifierReused))
	assert.Equal(t, apperror.KindNullifierReused, apperror.KindOf(wrapped))
	assert.False(t, apperror.Is(nil, apperror.KindNullifierReused))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(errors.New("plain")))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, apperror.Normalize(nil))

	known := apperror.Geofence()
	assert.Same(t, known, apperror.Normalize(known))

	cause := errors.New("disk full")
	normalized := apperror.Normalize(cause)
	require.NotNil(t, normalized)
	assert.Equal(t, apperror.KindInternal, normalized.Kind)
	assert.Equal(t, reasoncodes.ErrInternal, normalized.Code)
	assert.ErrorIs(t, normalized, cause)
}

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	original := apperror.RateLimit(30)
	withHint := original.WithDetail("attempts", 3)

	assert.Equal(t, 3, withHint.Details["attempts"])
	assert.Equal(t, int64(30), withHint.Details["retryAfterSeconds"])
	_, present := original.Details["attempts"]
	assert.False(t, present)
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := apperror.ExternalService("moderation", errors.New("timeout"))
	assert.Contains(t, err.Error(), "ExternalServiceError")
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, "moderation", err.Details["service"])
}

func TestFromBinding(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
		Age  int    `validate:"min=18"`
	}
	err := validator.New().Struct(form{Age: 3})
	appErr := apperror.FromBinding(err)

	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	fields := appErr.Details["fields"].(map[string]any)
	assert.Equal(t, "required", fields["Name"])
	assert.Equal(t, "min", fields["Age"])

	plain := apperror.FromBinding(errors.New("EOF"))
	assert.Equal(t, apperror.KindValidation, plain.Kind)
	assert.Nil(t, plain.Details)
}
