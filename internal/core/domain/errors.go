package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing or invalid credentials/endpoints.
	// Raised before any network I/O and surfaced verbatim to the user.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport marks network failures, timeouts and non-2xx
	// responses from collaborators.
	ErrTransport = errors.New("transport error")

	// ErrParse marks an AI response that is not valid JSON or is
	// missing required fields after cleanup.
	ErrParse = errors.New("parse error")

	// ErrValidation marks malformed caller input, rejected before any
	// async work begins.
	ErrValidation = errors.New("invalid input")

	// ErrReconciliation marks a bookmark that persisted while its
	// downstream enrichment failed; the persistence is not unwound.
	ErrReconciliation = errors.New("reconciliation error")

	ErrTaskNotFound = errors.New("task not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
