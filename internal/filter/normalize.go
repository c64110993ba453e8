package filter

import (
	"strings"

	"github.com/roach88/relfilter/internal/ir"
)

// NormalizeField rewrites a trailing id segment to the primary key of the
// model that segment belongs to. terminal is the model the path resolves to
// (Resolution.Model); all preceding segments are left untouched.
//
//	author.id  ->  author.userId   (User.PrimaryKey == "userId")
//	title      ->  title
func NormalizeField(terminal *ir.Model, field string) string {
	parts := strings.Split(field, ".")
	last := len(parts) - 1
	if parts[last] != ir.DefaultPrimaryKey || terminal.PrimaryKey == "" {
		return field
	}
	parts[last] = terminal.PrimaryKey
	return strings.Join(parts, ".")
}
