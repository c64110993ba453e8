package filter

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported by Error.Code.
const (
	// ErrCodeInvalidFieldPath indicates a field path that does not resolve
	// against the model or its relations.
	ErrCodeInvalidFieldPath = "INVALID_FIELD_PATH"

	// ErrCodeInvalidOperator indicates an operator outside the vocabulary.
	ErrCodeInvalidOperator = "INVALID_OPERATOR"

	// ErrCodeInvalidParameter indicates a malformed query parameter.
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
)

// Error is a client-input error raised while resolving or compiling a filter.
type Error struct {
	Code    string
	Model   string // UID of the model the path was resolved against
	Field   string // the offending field path or parameter name
	Message string
}

func (e *Error) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s: %s (model=%s, field=%s)", e.Code, e.Message, e.Model, e.Field)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status equivalent of the error.
func (e *Error) Status() int {
	return http.StatusBadRequest
}

// IsInvalidFieldPath returns true if err is an invalid field path error.
// Uses errors.As to handle wrapped errors.
func IsInvalidFieldPath(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeInvalidFieldPath
	}
	return false
}

// NewInvalidFieldPath creates an Error for a path that does not resolve.
func NewInvalidFieldPath(modelUID, field string) *Error {
	return &Error{
		Code:    ErrCodeInvalidFieldPath,
		Model:   modelUID,
		Field:   field,
		Message: fmt.Sprintf("your filters contain a field %q that doesn't appear on your model definition nor its relations", field),
	}
}
