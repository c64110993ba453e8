package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/relfilter/internal/schema"
)

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads the CUE models in dir. Every failure is a *LoadError
// carrying one of the ErrCode constants.
func LoadSchema(dir string) (*schema.LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := schema.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	result, err := schema.LoadDir(dir)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return result, nil
}

// convertSchemaError converts a schema error to a LoadError with position info.
func convertSchemaError(err error) *LoadError {
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}

	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) {
		msg := validationErr.Message
		if validationErr.Field != "" {
			msg = fmt.Sprintf("%s.%s: %s", validationErr.Model, validationErr.Field, msg)
		} else {
			msg = fmt.Sprintf("%s: %s", validationErr.Model, msg)
		}
		code := ErrCodeModelSet
		if validationErr.Field != "" {
			code = ErrCodeRelation
		}
		return &LoadError{Code: code, Message: msg, Pos: validationErr.Pos}
	}

	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadInput    = "E008" // Unreadable filter or seed file, malformed flag

	// Model definition errors
	ErrCodeNoModels      = "E101" // No model struct
	ErrCodeAttributes    = "E102" // Missing or malformed attributes
	ErrCodeAttrType      = "E103" // Unknown attribute type
	ErrCodeEnum          = "E104" // Enumeration without values, or enum on another type
	ErrCodeModelKind     = "E105" // Invalid kind or primary key type
	ErrCodeModelSet      = "E110" // Duplicate uid or collection name
	ErrCodeRelation      = "E111" // Invalid relation
	ErrCodeNotExecutable = "E120" // Query built for a backend exec cannot run
)

// MapFieldToErrorCode maps a schema compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "model":
		return ErrCodeNoModels
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "attributes":
		return ErrCodeAttributes
	case field == "kind", field == "primaryKeyType":
		return ErrCodeModelKind
	case strings.HasSuffix(field, ".type"):
		return ErrCodeAttrType
	case strings.HasSuffix(field, ".enum"):
		return ErrCodeEnum
	case strings.HasPrefix(field, "attributes."):
		return ErrCodeRelation
	default:
		return ErrCodeGeneric
	}
}

