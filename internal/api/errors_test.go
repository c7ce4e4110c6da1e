package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeError_InsufficientBalance(t *testing.T) {
	body := []byte(`{"error":"点数不足","requiredPoints":10,"currentPoints":3}`)

	apiErr := decodeError(403, body)

	assert.Equal(t, ErrInsufficientBalance, apiErr.Kind)
	assert.Equal(t, 10, apiErr.RequiredPoints)
	assert.Equal(t, 3, apiErr.CurrentPoints)
	assert.Contains(t, apiErr.Error(), "10")
	assert.Contains(t, apiErr.Error(), "3")
}

func TestDecodeError_QuotaExceeded(t *testing.T) {
	body := []byte(`{"dailyLimit":5,"usedUnits":5,"costUnits":1,"usageDate":"2025-01-01"}`)

	apiErr := decodeError(429, body)

	assert.Equal(t, ErrQuotaExceeded, apiErr.Kind)
	assert.Equal(t, 5, apiErr.DailyLimit)
	assert.Equal(t, 5, apiErr.UsedUnits)
	assert.Equal(t, 1, apiErr.CostUnits)
	assert.Contains(t, apiErr.Error(), "5/5")
	assert.Contains(t, apiErr.Error(), "2025-01-01")
	assert.Contains(t, apiErr.Error(), "1")
}

func TestDecodeError_ForbiddenWithoutBalancePayload(t *testing.T) {
	// A plain 403 has no balance marker and must stay generic.
	apiErr := decodeError(403, []byte(`{"message":"forbidden"}`))

	assert.Equal(t, ErrValidation, apiErr.Kind)
	assert.Equal(t, "forbidden", apiErr.Error())
}

func TestDecodeError_StatusKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected ErrorKind
	}{
		{
			name:     "401 unauthorized",
			status:   401,
			body:     `{"message":"token missing"}`,
			expected: ErrUnauthorized,
		},
		{
			name:     "404 not found",
			status:   404,
			body:     `{"error":"task not found"}`,
			expected: ErrNotFound,
		},
		{
			name:     "422 validation",
			status:   422,
			body:     `{"error":"keyword is required"}`,
			expected: ErrValidation,
		},
		{
			name:     "500 with empty body",
			status:   500,
			body:     ``,
			expected: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.expected, apiErr.Kind)
		})
	}
}

func TestDecodeError_MessageRendering(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "error string wins over message",
			body:     `{"error":"bad request","message":"ignored"}`,
			expected: "bad request",
		},
		{
			name:     "message used when error absent",
			body:     `{"message":"something broke"}`,
			expected: "something broke",
		},
		{
			name:     "structured error serialized as JSON",
			body:     `{"error":{"field":"keyword","code":"required"}}`,
			expected: `{"field":"keyword","code":"required"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeError(400, []byte(tt.body))
			assert.Equal(t, tt.expected, apiErr.Message)
			assert.Equal(t, tt.expected, apiErr.Error())
		})
	}
}

func TestErrorKindHelpers(t *testing.T) {
	unauthorized := decodeError(401, nil)
	notFound := decodeError(404, nil)

	assert.True(t, IsUnauthorized(unauthorized))
	assert.False(t, IsUnauthorized(notFound))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(unauthorized))

	// Wrapped errors still classify.
	wrapped := fmt.Errorf("get task t1: %w", notFound)
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsUnauthorized(fmt.Errorf("plain error")))
	assert.False(t, IsNotFound(nil))
}
