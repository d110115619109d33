package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/podium/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// statusFor maps error kinds to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInputValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotEligible):
		return http.StatusForbidden, "not_eligible"
	case errors.Is(err, model.ErrAlreadyGranted):
		return http.StatusConflict, "already_granted"
	case errors.Is(err, model.ErrScoreRowMissing):
		return http.StatusNotFound, "score_row_missing"
	case errors.Is(err, model.ErrDataSource), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "data_source_unavailable"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
