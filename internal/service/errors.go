package service

import (
	"errors"
	"fmt"

	"go-inventory-cost/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrNoCostAvailable      = errors.New("no cost available")
	ErrNoAssemblyDefinition = errors.New("no assembly definition")
	ErrCircularBom          = errors.New("circular BOM detected")
	ErrDuplicateLotCode     = errors.New("duplicate lot code")
	ErrUnknownItem          = errors.New("unknown item")
	ErrUnknownLot           = errors.New("unknown lot")
	ErrInvalidInput         = errors.New("invalid input")
	ErrItemNotTracked       = errors.New("item is not lot-tracked")
)

// PropagationError reports a revaluation whose direct change committed but
// whose downstream propagation stopped at FailedLotID. Lots in Updated were
// revalued before the failure; lots after it were not touched.
type PropagationError struct {
	RootLotID   uuid.UUID
	FailedLotID uuid.UUID
	Updated     []uuid.UUID
	Err         error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("revaluation of lot %s committed but propagation failed at lot %s after %d update(s): %v",
		e.RootLotID, e.FailedLotID, len(e.Updated), e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

func validate(input interface{}) error {
	if errs := validator.ValidateStruct(input); len(errs) > 0 {
		firstErr := errs[0]
		return fmt.Errorf("%w: field '%s' failed on tag '%s'", ErrInvalidInput, firstErr.FailedField, firstErr.Tag)
	}
	return nil
}
