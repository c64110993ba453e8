package queryir

import "github.com/roach88/relfilter/internal/ir"

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// Connectors switch over the concrete types exhaustively.
//
// Predicate types:
//   - Compare: column <op> literal
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select is a read of one root model plus the relations its filter and sort
// reach.
//
// Semantics:
//
//	SELECT <root>.* FROM <root> <joins> WHERE <filter> ORDER BY <order>
//
// Example (conceptual SQL translation):
//
//	Select{
//	  Root: article,
//	  Joins: []Join{{Path: "author", Alias: "author", ...}},
//	  Filter: &And{Predicates: []Predicate{
//	    &Compare{Ref: ColumnRef{Alias: "author", Column: "userId"}, Op: ir.OpEq, Value: int64(42)},
//	  }},
//	}
//
// Translates to SQL:
//
//	SELECT "articles".* FROM "articles"
//	LEFT JOIN "users-permissions_user" AS "author" ON "author"."userId" = "articles"."author"
//	WHERE "author"."userId" = ?
//
// Every join is an outer join: a row whose relation is empty still matches
// predicates such as null=true on that relation.
type Select struct {
	Root   *ir.Model
	Joins  []Join    // Ordered so a join's parent always precedes it
	Filter Predicate // nil = no filter
	Order  []Order
	Limit  *int // nil or negative = unbounded
	Offset *int
}

// Distinct reports whether a join can multiply root rows, which happens as
// soon as any hop is to-many.
func (s *Select) Distinct() bool {
	for _, j := range s.Joins {
		if j.Association.Nature.ToMany() {
			return true
		}
	}
	return false
}

// Join is one relation hop.
//
// Alias is unique within a Select and derived from the relation path
// ("author.company" -> "author__company"). Parent is the alias of the hop
// this one starts from, empty for the root model.
type Join struct {
	Path        string
	Alias       string
	Parent      string
	Association ir.Association
	Source      *ir.Model
	Target      *ir.Model
}

// ColumnRef names a column of the root model (Alias == "") or of a join.
type ColumnRef struct {
	Alias  string
	Column string
	Type   ir.AttrType
}

// Order is one ORDER BY key.
type Order struct {
	Ref   ColumnRef
	Order ir.SortOrder
}

// Compare represents a column-operator-literal predicate.
//
// Value holds the coerced value: a scalar, or a []any for in and nin. For
// the null operator Value is a bool selecting IS NULL (true) or IS NOT NULL.
type Compare struct {
	Ref   ColumnRef
	Op    ir.Operator
	Value any
}

func (Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
//
// An empty Predicates slice is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
