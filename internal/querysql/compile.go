package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/queryir"
)

// Backend is the value Query.Backend reports.
const Backend = "sql"

// Query is a parameterized SQLite statement built from a compiled filter.
type Query struct {
	SQL    string
	Params []any
	Model  *ir.Model
}

// Backend implements connector.Query.
func (q *Query) Backend() string { return Backend }

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY with a primary-key tiebreaker for
// deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
//
// SQLCompiler implements connector.QueryBuilder and is safe for concurrent
// use.
type SQLCompiler struct {
	models filter.ModelProvider
}

// NewSQLCompiler creates a new SQLCompiler resolving relations against
// models.
func NewSQLCompiler(models filter.ModelProvider) *SQLCompiler {
	return &SQLCompiler{models: models}
}

// BuildQuery plans and compiles the request's filter. Request options are not
// used by this connector.
func (c *SQLCompiler) BuildQuery(req connector.Request) (connector.Query, error) {
	sel, err := queryir.Plan(c.models, req.Model, req.Filter)
	if err != nil {
		return nil, err
	}
	sql, params, err := c.Compile(sel)
	if err != nil {
		return nil, err
	}
	return &Query{SQL: sql, Params: params, Model: req.Model}, nil
}

// Compile converts a query plan to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(sel *queryir.Select) (string, []any, error) {
	if sel == nil || sel.Root == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	root := QuoteIdent(sel.Root.CollectionName)

	var b strings.Builder
	b.WriteString("SELECT ")
	if sel.Distinct() {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(root)
	b.WriteString(".* FROM ")
	b.WriteString(root)

	for _, j := range sel.Joins {
		b.WriteString(c.compileJoin(sel, j))
	}

	var params []any
	if sel.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(sel, sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if filterSQL != "" {
			b.WriteString(" WHERE ")
			b.WriteString(filterSQL)
			params = filterParams
		}
	}

	// MANDATORY: Always add ORDER BY
	b.WriteString(" ORDER BY ")
	b.WriteString(c.orderBy(sel))

	limitSQL, limitParams := compileLimit(sel.Limit, sel.Offset)
	b.WriteString(limitSQL)
	params = append(params, limitParams...)

	return b.String(), params, nil
}

// compileJoin emits the LEFT JOIN clauses for one relation hop.
//
// Owning sides (oneWay, oneToOne, manyToOne) store the target key in a
// column named after the alias. oneToMany reads the via column on the
// target. manyWay and manyToMany go through their join table.
func (c *SQLCompiler) compileJoin(sel *queryir.Select, j queryir.Join) string {
	parent := c.tableRef(sel, j.Parent)
	alias := QuoteIdent(j.Alias)
	target := QuoteIdent(j.Target.CollectionName)
	assoc := j.Association

	switch assoc.Nature {
	case ir.NatureOneToMany:
		return fmt.Sprintf(" LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			target, alias,
			alias, QuoteIdent(assoc.Via),
			parent, QuoteIdent(j.Source.PrimaryKey))
	case ir.NatureManyWay, ir.NatureManyToMany:
		link := QuoteIdent(j.Alias + "_link")
		return fmt.Sprintf(" LEFT JOIN %s AS %s ON %s.%s = %s.%s LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			QuoteIdent(assoc.JoinTable), link,
			link, QuoteIdent(assoc.JoinSourceColumn),
			parent, QuoteIdent(j.Source.PrimaryKey),
			target, alias,
			alias, QuoteIdent(j.Target.PrimaryKey),
			link, QuoteIdent(assoc.JoinTargetColumn))
	default:
		return fmt.Sprintf(" LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			target, alias,
			alias, QuoteIdent(j.Target.PrimaryKey),
			parent, QuoteIdent(assoc.Alias))
	}
}

// tableRef returns the quoted name a column of alias is qualified with.
func (c *SQLCompiler) tableRef(sel *queryir.Select, alias string) string {
	if alias == "" {
		return QuoteIdent(sel.Root.CollectionName)
	}
	return QuoteIdent(alias)
}

func (c *SQLCompiler) columnRef(sel *queryir.Select, ref queryir.ColumnRef) string {
	return c.tableRef(sel, ref.Alias) + "." + QuoteIdent(ref.Column)
}

// orderBy returns the ORDER BY clause for a query.
// MANDATORY: the root primary key always closes the list.
// Uses COLLATE BINARY for deterministic text ordering.
func (c *SQLCompiler) orderBy(sel *queryir.Select) string {
	parts := make([]string, 0, len(sel.Order)+1)
	for _, o := range sel.Order {
		dir := "ASC"
		if o.Order == ir.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, c.columnRef(sel, o.Ref)+" "+dir)
	}
	pk := c.columnRef(sel, queryir.ColumnRef{Column: sel.Root.PrimaryKey})
	parts = append(parts, pk+" ASC COLLATE BINARY")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// Returns (sql, params, error).
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(sel *queryir.Select, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return c.compileCompare(sel, pred)
	case *queryir.Compare:
		return c.compileCompare(sel, *pred)
	case queryir.And:
		return c.compileAnd(sel, pred)
	case *queryir.And:
		return c.compileAnd(sel, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileAnd compiles an And predicate to conjunction with AND.
func (c *SQLCompiler) compileAnd(sel *queryir.Select, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(sel, pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

func (c *SQLCompiler) compileCompare(sel *queryir.Select, cmp queryir.Compare) (string, []any, error) {
	col := c.columnRef(sel, cmp.Ref)
	values, isList := cmp.Value.([]any)

	switch cmp.Op {
	case ir.OpEq, ir.OpNe:
		if isList {
			return compileIn(col, cmp.Op == ir.OpNe, values)
		}
		param, err := ToParam(cmp.Value)
		if err != nil {
			return "", nil, err
		}
		op := "="
		if cmp.Op == ir.OpNe {
			op = "!="
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{param}, nil

	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		if isList {
			return "", nil, fmt.Errorf("operator %s on %s expects a single value", cmp.Op, cmp.Ref.Column)
		}
		param, err := ToParam(cmp.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", col, rangeOps[cmp.Op]), []any{param}, nil

	case ir.OpIn, ir.OpNin:
		if !isList {
			values = []any{cmp.Value}
		}
		return compileIn(col, cmp.Op == ir.OpNin, values)

	case ir.OpContains, ir.OpNcontains, ir.OpContainss, ir.OpNcontainss:
		if !isList {
			values = []any{cmp.Value}
		}
		return compileSubstring(col, cmp.Op, values)

	case ir.OpNull:
		isNull, ok := cmp.Value.(bool)
		if !ok {
			return "", nil, fmt.Errorf("operator null on %s expects a boolean, got %T", cmp.Ref.Column, cmp.Value)
		}
		if isNull {
			return col + " IS NULL", nil, nil
		}
		return col + " IS NOT NULL", nil, nil

	default:
		return "", nil, fmt.Errorf("unsupported operator: %s", cmp.Op)
	}
}

var rangeOps = map[ir.Operator]string{
	ir.OpLt:  "<",
	ir.OpLte: "<=",
	ir.OpGt:  ">",
	ir.OpGte: ">=",
}

// compileIn emits col IN (?, ...). An empty list matches nothing for IN and
// everything for NOT IN.
func compileIn(col string, negate bool, values []any) (string, []any, error) {
	if len(values) == 0 {
		if negate {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}

	params := make([]any, len(values))
	for i, v := range values {
		p, err := ToParam(v)
		if err != nil {
			return "", nil, err
		}
		params[i] = p
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, op, placeholders), params, nil
}

// compileSubstring emits one match per value, OR-ed for the positive
// operators and AND-ed for the negated ones. contains and ncontains fold
// case; containss and ncontainss do not.
func compileSubstring(col string, op ir.Operator, values []any) (string, []any, error) {
	if len(values) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, len(values))
	params := make([]any, len(values))
	for i, v := range values {
		s := fmt.Sprint(v)
		switch op {
		case ir.OpContains:
			parts[i] = fmt.Sprintf(`LOWER(%s) LIKE LOWER(?) ESCAPE '\'`, col)
			params[i] = "%" + escapeLike(s) + "%"
		case ir.OpNcontains:
			parts[i] = fmt.Sprintf(`LOWER(%s) NOT LIKE LOWER(?) ESCAPE '\'`, col)
			params[i] = "%" + escapeLike(s) + "%"
		case ir.OpContainss:
			parts[i] = fmt.Sprintf("instr(%s, ?) > 0", col)
			params[i] = s
		case ir.OpNcontainss:
			parts[i] = fmt.Sprintf("instr(%s, ?) = 0", col)
			params[i] = s
		}
	}

	if len(parts) == 1 {
		return parts[0], params, nil
	}
	joiner := " OR "
	if op == ir.OpNcontains || op == ir.OpNcontainss {
		joiner = " AND "
	}
	return "(" + strings.Join(parts, joiner) + ")", params, nil
}

// compileLimit emits LIMIT/OFFSET. SQLite needs a LIMIT before OFFSET, so an
// offset alone is paired with LIMIT -1.
func compileLimit(limit, offset *int) (string, []any) {
	hasOffset := offset != nil && *offset > 0
	if limit == nil && !hasOffset {
		return "", nil
	}

	n := -1
	if limit != nil && *limit >= 0 {
		n = *limit
	}
	if !hasOffset {
		return " LIMIT ?", []any{n}
	}
	return " LIMIT ? OFFSET ?", []any{n, *offset}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
