package engine

import (
	"errors"
	"fmt"
)

// PreconditionError marks a missing entity the computation cannot proceed
// without. Callers must abort the workflow instead of defaulting.
type PreconditionError struct {
	Entity string
	ID     string
}

func (e *PreconditionError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
