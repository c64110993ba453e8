package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/relfilter/internal/coerce"
	"github.com/roach88/relfilter/internal/filter"
)

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeUnregisteredConnector indicates a model bound to a storage
	// engine no connector is registered for. This is a configuration fault:
	// it is never retried.
	ErrCodeUnregisteredConnector ErrorCode = "UNREGISTERED_CONNECTOR"

	// ErrCodeModelNotFound indicates a lookup for a model that does not exist.
	ErrCodeModelNotFound ErrorCode = "MODEL_NOT_FOUND"
)

// Error represents an error detected while dispatching a query.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Model identifies the affected model (UID, or the entity name looked up).
	Model string

	// Connector is the storage-engine key the model is bound to.
	Connector string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Connector != "" {
		return fmt.Sprintf("%s: %s (model=%s, connector=%s)", e.Code, e.Message, e.Model, e.Connector)
	}
	if e.Model != "" {
		return fmt.Sprintf("%s: %s (model=%s)", e.Code, e.Message, e.Model)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status equivalent of the error.
func (e *Error) Status() int {
	if e.Code == ErrCodeModelNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// IsUnregisteredConnector returns true if the error is an unregistered
// connector error.
// Uses errors.As to handle wrapped errors.
func IsUnregisteredConnector(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnregisteredConnector
	}
	return false
}

// IsModelNotFound returns true if the error is a model lookup failure.
func IsModelNotFound(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeModelNotFound
	}
	return false
}

// NewUnregisteredConnectorError creates an Error for a model whose storage
// engine has no connector.
func NewUnregisteredConnectorError(modelUID, connectorKey string) *Error {
	return &Error{
		Code:      ErrCodeUnregisteredConnector,
		Message:   fmt.Sprintf("the connector %s is not registered", connectorKey),
		Model:     modelUID,
		Connector: connectorKey,
	}
}

// NewModelNotFoundError creates an Error for an unknown model.
func NewModelNotFoundError(model string) *Error {
	return &Error{
		Code:    ErrCodeModelNotFound,
		Message: "the model is not defined",
		Model:   model,
	}
}

type statusError interface {
	Status() int
}

// StatusOf returns the HTTP status of the first error in err's chain that
// reports one, or 500 for anything else. A nil error is 200.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se statusError
	if errors.As(err, &se) {
		return se.Status()
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine-readable code carried by a filter, coercion or
// dispatch error, or "" when err carries none.
func CodeOf(err error) string {
	var fe *filter.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ce *coerce.Error
	if errors.As(err, &ce) {
		return ce.Code()
	}
	var ee *Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return ""
}
