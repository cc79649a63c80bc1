package memory

import "errors"

var (
	// ErrBackendUnavailable is returned when one backend is unreachable or
	// timed out after retries. Recoverable: callers degrade to the other
	// backend's results.
	ErrBackendUnavailable = errors.New("memory backend unavailable")

	// ErrWriteFailed is returned when every backend write for a turn
	// failed. The caller should retry the whole turn; duplicated writes
	// are absorbed by consolidation.
	ErrWriteFailed = errors.New("memory write failed")

	// ErrUnavailable is returned when both backends are unreachable on a
	// read. The caller decides whether to proceed without memory context.
	ErrUnavailable = errors.New("memory unavailable")

	// ErrConsolidationConflict is returned when similarity scoring is too
	// ambiguous to pick a canonical record. The pair is skipped and
	// retried next cycle.
	ErrConsolidationConflict = errors.New("consolidation conflict")

	// ErrInvalidTurn is returned for turns missing a user id, text, or a
	// recognized role.
	ErrInvalidTurn = errors.New("invalid conversation turn")
)
