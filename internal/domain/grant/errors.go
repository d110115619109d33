package grant

import "errors"

// Validation causes, wrapped with model.ErrInputValidation.
var (
	ErrMissingPlayer    = errors.New("playerId is required")
	ErrMissingSession   = errors.New("sessionId is required")
	ErrUnknownStream    = errors.New("unknown streamId")
	ErrNonPositiveBonus = errors.New("bonus amount must be positive")
)
