package oxidb

import (
	"errors"
	"fmt"
)

// Error is returned when the OxiDB server returns an error response.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s", e.Msg)
}

// TransactionConflictError is returned on an OCC version conflict. Unique
// index violations are reported by the server with the same wording.
type TransactionConflictError struct {
	Msg string
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("oxidb: transaction conflict: %s", e.Msg)
}

// IsConflict reports whether err is a server-side conflict.
func IsConflict(err error) bool {
	var conflict *TransactionConflictError
	return errors.As(err, &conflict)
}
