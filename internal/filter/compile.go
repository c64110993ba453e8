package filter

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/roach88/relfilter/internal/coerce"
	"github.com/roach88/relfilter/internal/ir"
)

// Compiler normalizes where clauses against a model schema.
//
// A Compiler holds only the model provider and a logger; it is safe for
// concurrent use by any number of requests.
type Compiler struct {
	models ModelProvider
	logger *slog.Logger
}

// NewCompiler creates a Compiler. A nil logger uses slog.Default().
func NewCompiler(models ModelProvider, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{models: models, logger: logger}
}

// Compile returns a copy of f whose where clauses are resolved, coerced and
// normalized against model.
//
// Clauses with a nil value are dropped. Sort, Limit, Start and Options pass
// through unmodified. The first resolution or coercion error aborts
// compilation and is returned unchanged; no partial filter is produced.
// f itself is never mutated.
func (c *Compiler) Compile(model *ir.Model, f ir.Filter) (ir.Filter, error) {
	out := ir.Filter{
		Sort:    f.Sort,
		Limit:   f.Limit,
		Start:   f.Start,
		Options: f.Options,
	}
	if f.Where == nil {
		return out, nil
	}

	out.Where = make([]ir.WhereClause, 0, len(f.Where))
	for _, w := range f.Where {
		if isAbsent(w.Value) {
			continue
		}
		compiled, err := c.CompileClause(model, w)
		if err != nil {
			return ir.Filter{}, err
		}
		out.Where = append(out.Where, compiled)
	}
	return out, nil
}

// CompileClause resolves, coerces and normalizes a single where clause.
//
// A path crossing two or more relations logs one deep-filtering warning.
// A single hop such as author.id is an ordinary join and stays silent, even
// though it is dotted.
func (c *Compiler) CompileClause(model *ir.Model, w ir.WhereClause) (ir.WhereClause, error) {
	if _, err := ir.ParseOperator(string(w.Operator)); err != nil {
		return ir.WhereClause{}, &Error{
			Code:    ErrCodeInvalidOperator,
			Model:   model.UID,
			Field:   w.Field,
			Message: fmt.Sprintf("unknown operator %q", w.Operator),
		}
	}

	res, err := Resolve(c.models, model, w.Field)
	if err != nil {
		return ir.WhereClause{}, err
	}
	if res.Hops > 1 {
		c.logger.Warn("deep filtering queries should be used carefully, they can cause performance issues; prefer a custom route",
			"model", model.UID,
			"field", w.Field,
			"relations", res.Hops)
	}

	value, err := coerce.Input(attributeType(res), w.Value, w.Operator)
	if err != nil {
		return ir.WhereClause{}, err
	}

	return ir.WhereClause{
		Field:    NormalizeField(res.Model, w.Field),
		Operator: w.Operator,
		Value:    value,
	}, nil
}

// attributeType returns the type used to coerce a resolved clause.
// A path ending on a relation compares against the target's primary key.
func attributeType(res Resolution) ir.AttrType {
	if res.EndsOnRelation {
		return res.Model.AttributeType(res.Model.PrimaryKey)
	}
	return res.Model.AttributeType(res.Attribute)
}

// isAbsent reports whether a clause value means "no filter": a nil interface
// or a nil pointer.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
