package coerce

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/relfilter/internal/ir"
)

// ErrCodeTypeCoercion is the code reported for values that cannot be parsed
// into their attribute's type.
const ErrCodeTypeCoercion = "TYPE_COERCION"

// Error reports a value that cannot be converted to an attribute type.
// It is a client-input error: the caller sent a value the schema rejects.
type Error struct {
	// Type is the target type of the failed conversion.
	Type ir.AttrType

	// Value is the offending raw value. For sequences it is the failing
	// element, not the whole sequence.
	Value any

	// Err is the underlying parse error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: cannot coerce %#v to %s: %v", ErrCodeTypeCoercion, e.Value, e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeTypeCoercion.
func (e *Error) Code() string {
	return ErrCodeTypeCoercion
}

// Status returns the HTTP status equivalent of the error.
func (e *Error) Status() int {
	return http.StatusBadRequest
}

// IsCoercionError returns true if err is or wraps a coercion Error.
func IsCoercionError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
