package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for cross-layer signaling. Services wrap these with
// context via fmt.Errorf("...: %w", ...); transport adapters match them
// with errors.Is to pick a status code.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrOverAllocation = errors.New("over-allocation")
)

// OverAllocationError reports which cap an allocation would breach: the
// receipt's unallocated remainder or the invoice's pending balance. It
// unwraps to ErrOverAllocation.
type OverAllocationError struct {
	Side      string
	ID        int
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("allocation of %s exceeds %s %d remaining balance %s",
		e.Requested.StringFixed(2), e.Side, e.ID, e.Remaining.StringFixed(2))
}

func (e *OverAllocationError) Unwrap() error { return ErrOverAllocation }
