package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{ErrTripNotFound, CodeTripNotFound, http.StatusNotFound},
		{fmt.Errorf("verify start: %w", ErrInvalidOTP), CodeInvalidOTP, http.StatusBadRequest},
		{fmt.Errorf("complete: %w", ErrInvalidState), CodeInvalidState, http.StatusConflict},
		{ErrNotAuthorized, CodeNotAuthorized, http.StatusForbidden},
		{ErrRouteUnavailable, CodeRouteUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.wantCode {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.wantCode)
		}
		if got := HTTPStatus(tt.err); got != tt.wantStatus {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.wantStatus)
		}
	}
}
