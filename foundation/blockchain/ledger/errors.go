package ledger

import (
	"errors"
	"fmt"
)

// Reason codes reported to callers when a transaction or block is rejected.
// These travel across the API boundary so peers can react distinctly.
const (
	ReasonInvalidBlockData = "invalid_block_data"
	ReasonStaleBlock       = "stale_block"
	ReasonMissingBlocks    = "missing_blocks"
	ReasonIsolatedNode     = "isolated_node"
	ReasonDoubleSpend      = "double_spend"
)

// ValidationError is returned by every validation function so callers can
// handle each rejection reason distinctly. Validation failures are always
// rejected locally and never retried.
type ValidationError struct {
	Reason string
	Err    error
}

// NewValidationError constructs a ValidationError for a reason code.
func NewValidationError(reason string, format string, args ...any) error {
	return &ValidationError{
		Reason: reason,
		Err:    fmt.Errorf(format, args...),
	}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Reason, ve.Err)
}

// Unwrap exposes the underlying cause.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// ReasonFor extracts the reason code from an error chain. Errors that are
// not validation errors report invalid_block_data.
func ReasonFor(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ReasonInvalidBlockData
}
