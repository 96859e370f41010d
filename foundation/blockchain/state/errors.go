package state

import (
	"errors"
	"fmt"
)

// FutureBlockError is returned when a submitted block claims a height
// beyond the next slot. It is a need-more-data signal, not a verdict on
// the block: the caller should sync the gap from peers and resubmit.
type FutureBlockError struct {
	Number      uint64
	ChainLength uint64
}

// Error implements the error interface.
func (e *FutureBlockError) Error() string {
	return fmt.Sprintf("block number %d is ahead of the chain length %d, sync required", e.Number, e.ChainLength)
}

// IsFutureBlock reports whether the error chain contains the
// need-more-data signal.
func IsFutureBlock(err error) bool {
	var fbe *FutureBlockError
	return errors.As(err, &fbe)
}
