package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/relfilter/internal/ir"
)

// Reserved query parameter names.
const (
	ParamSort  = "_sort"
	ParamLimit = "_limit"
	ParamStart = "_start"
)

// ParseParams converts REST-style query parameters into a filter description.
//
//	title_contains=news      -> {title, contains, "news"}
//	author.id=4              -> {author.id, eq, "4"}
//	id_in=1&id_in=2          -> {id, in, ["1","2"]}
//	_sort=title:ASC,id:DESC  -> Sort
//	_limit=10&_start=20      -> Limit, Start
//
// A key whose suffix after the last underscore is not an operator is taken
// whole as the field with the eq operator (created_at=...). Other keys
// starting with an underscore are copied into Options. Where clauses are
// emitted in sorted key order so the result is deterministic. Values stay
// strings; typing them is the compiler's job.
func ParseParams(values url.Values) (ir.Filter, error) {
	var f ir.Filter

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}

		switch key {
		case ParamSort:
			sortKeys, err := ir.ParseSort(strings.Join(vals, ","))
			if err != nil {
				return ir.Filter{}, invalidParam(key, err)
			}
			f.Sort = append(f.Sort, sortKeys...)
			continue
		case ParamLimit, ParamStart:
			n, err := strconv.Atoi(vals[len(vals)-1])
			if err != nil {
				return ir.Filter{}, invalidParam(key, err)
			}
			if key == ParamLimit {
				f.Limit = ir.Int(n)
			} else {
				if n < 0 {
					return ir.Filter{}, invalidParam(key, fmt.Errorf("must not be negative"))
				}
				f.Start = ir.Int(n)
			}
			continue
		}

		if strings.HasPrefix(key, "_") {
			if f.Options == nil {
				f.Options = make(map[string]any)
			}
			f.Options[strings.TrimPrefix(key, "_")] = vals[len(vals)-1]
			continue
		}

		field, op := splitOperator(key)
		f.Where = append(f.Where, ir.WhereClause{
			Field:    field,
			Operator: op,
			Value:    paramValue(op, vals),
		})
	}
	return f, nil
}

// splitOperator separates "field_op" into its parts, defaulting to eq.
func splitOperator(key string) (string, ir.Operator) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return key, ir.OpEq
	}
	op, err := ir.ParseOperator(key[idx+1:])
	if err != nil {
		return key, ir.OpEq
	}
	return key[:idx], op
}

func paramValue(op ir.Operator, vals []string) any {
	if op == ir.OpIn || op == ir.OpNin || len(vals) > 1 {
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out
	}
	return vals[0]
}

func invalidParam(key string, err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidParameter,
		Field:   key,
		Message: err.Error(),
	}
}
