package schema

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// ValidationError reports a problem that only shows up once every model is
// known: duplicate names, dangling relation targets, bad via references.
type ValidationError struct {
	Model   string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	subject := e.Model
	if e.Field != "" {
		subject += "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			subject, e.Message)
	}
	return fmt.Sprintf("%s: %s", subject, e.Message)
}
