package cflist

import (
	"errors"
	"fmt"
)

// ErrDoubleDelete is matched by every InvariantError.
var ErrDoubleDelete = errors.New("node is already marked as deleted")

// InvariantError is the panic value raised when a node's deletion marker is set
// a second time. It means the locking protocol is broken, never that the caller
// passed bad input, so it is not returned as an ordinary error.
type InvariantError struct {
	// Op is the list operation that found the broken invariant.
	Op string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cflist: %s: %v", e.Op, ErrDoubleDelete)
}

func (e *InvariantError) Unwrap() error {
	return ErrDoubleDelete
}
