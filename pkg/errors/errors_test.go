package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found helper", NotFound("x"), http.StatusNotFound},
		{"wrapped entry not found", fmt.Errorf("lookup: %w", ErrEntryNotFound), http.StatusNotFound},
		{"level not found", ErrLevelNotFound, http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error status wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestNotFoundUnwraps(t *testing.T) {
	err := NotFound("concept-frailty-sarcopenia")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "concept-frailty-sarcopenia")
	assert.False(t, IsNotFound(ErrDuplicateEntry))
}
