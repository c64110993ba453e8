package querydoc

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/apd/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/queryir"
)

// Backend is the value Query.Backend reports.
const Backend = "document"

// IDField is the document key holding the primary key.
const IDField = "_id"

// lookupPrefix marks fields added by $lookup so they can be removed before
// documents are returned.
const lookupPrefix = "__"

// Pipeline is an aggregation pipeline, the same shape mongo.Pipeline has.
type Pipeline []bson.D

// Query is an aggregation over one collection.
type Query struct {
	Collection string
	Pipeline   Pipeline
	Model      *ir.Model
}

// Backend implements connector.Query.
func (q *Query) Backend() string { return Backend }

// Command returns the query as an aggregate command document.
func (q *Query) Command() bson.D {
	return bson.D{
		{Key: "aggregate", Value: q.Collection},
		{Key: "pipeline", Value: q.Pipeline},
	}
}

// ExtJSON renders the aggregate command as relaxed extended JSON.
func (q *Query) ExtJSON() (string, error) {
	b, err := bson.MarshalExtJSON(q.Command(), false, false)
	if err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}
	return string(b), nil
}

// PipelineBuilder compiles query plans into aggregation pipelines.
//
// Every relation hop is a $lookup into a "__"-prefixed field; the match
// reads through those fields and a final $unset drops them. Primary keys
// live in _id.
//
// PipelineBuilder implements connector.QueryBuilder and is safe for
// concurrent use.
type PipelineBuilder struct {
	models filter.ModelProvider
}

// NewPipelineBuilder creates a PipelineBuilder resolving relations against
// models.
func NewPipelineBuilder(models filter.ModelProvider) *PipelineBuilder {
	return &PipelineBuilder{models: models}
}

// BuildQuery plans and compiles the request's filter. Request options are not
// used by this connector.
func (b *PipelineBuilder) BuildQuery(req connector.Request) (connector.Query, error) {
	sel, err := queryir.Plan(b.models, req.Model, req.Filter)
	if err != nil {
		return nil, err
	}
	pipeline, err := b.Compile(sel)
	if err != nil {
		return nil, err
	}
	return &Query{Collection: req.Model.CollectionName, Pipeline: pipeline, Model: req.Model}, nil
}

// Compile converts a query plan to an aggregation pipeline.
func (b *PipelineBuilder) Compile(sel *queryir.Select) (Pipeline, error) {
	if sel == nil || sel.Root == nil {
		return nil, fmt.Errorf("cannot compile nil query")
	}

	var p Pipeline
	for _, j := range sel.Joins {
		p = append(p, lookupStage(j))
	}

	sc := newScope(sel)
	if sel.Filter != nil {
		match, err := compilePredicate(sc, sel.Filter)
		if err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
		if len(match) > 0 {
			p = append(p, bson.D{{Key: "$match", Value: match}})
		}
	}

	p = append(p, bson.D{{Key: "$sort", Value: sortSpec(sel, sc)}})

	if sel.Offset != nil && *sel.Offset > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: int64(*sel.Offset)}})
	}
	if sel.Limit != nil && *sel.Limit >= 0 {
		if *sel.Limit == 0 {
			// $limit must be positive.
			p = append(p, bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: false}}}})
		} else {
			p = append(p, bson.D{{Key: "$limit", Value: int64(*sel.Limit)}})
		}
	}

	if len(sel.Joins) > 0 {
		fields := make(bson.A, len(sel.Joins))
		for i, j := range sel.Joins {
			fields[i] = lookupPrefix + j.Alias
		}
		p = append(p, bson.D{{Key: "$unset", Value: fields}})
	}

	return p, nil
}

// lookupStage joins one relation hop. Owning sides and to-many sides without
// a foreign key on the target store target ids under the alias; oneToMany
// reads the via field on the target.
func lookupStage(j queryir.Join) bson.D {
	local := fieldPath(j.Parent, j.Association.Alias)
	foreign := IDField
	if j.Association.Nature == ir.NatureOneToMany {
		local = fieldPath(j.Parent, IDField)
		foreign = j.Association.Via
	}

	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: j.Target.CollectionName},
		{Key: "localField", Value: local},
		{Key: "foreignField", Value: foreign},
		{Key: "as", Value: lookupPrefix + j.Alias},
	}}}
}

// fieldPath addresses field on the root document (alias == "") or inside
// the looked-up documents of a join.
func fieldPath(alias, field string) string {
	if alias == "" {
		return field
	}
	return lookupPrefix + alias + "." + field
}

// scope maps join aliases to the model their documents belong to.
type scope map[string]*ir.Model

func newScope(sel *queryir.Select) scope {
	sc := scope{"": sel.Root}
	for _, j := range sel.Joins {
		sc[j.Alias] = j.Target
	}
	return sc
}

// path maps a plan column to its document key. Primary keys always live in
// _id.
func (sc scope) path(ref queryir.ColumnRef) string {
	col := ref.Column
	if m, ok := sc[ref.Alias]; ok && m.IsPrimaryKey(col) {
		col = IDField
	}
	return fieldPath(ref.Alias, col)
}

func (sc scope) isKey(ref queryir.ColumnRef) bool {
	m, ok := sc[ref.Alias]
	return ok && m.IsPrimaryKey(ref.Column)
}

func sortSpec(sel *queryir.Select, sc scope) bson.D {
	spec := make(bson.D, 0, len(sel.Order)+1)
	seen := make(map[string]bool, len(sel.Order)+1)
	for _, o := range sel.Order {
		path := sc.path(o.Ref)
		if seen[path] {
			continue
		}
		seen[path] = true
		dir := int32(1)
		if o.Order == ir.SortDesc {
			dir = -1
		}
		spec = append(spec, bson.E{Key: path, Value: dir})
	}
	if !seen[IDField] {
		spec = append(spec, bson.E{Key: IDField, Value: int32(1)})
	}
	return spec
}

// compilePredicate compiles a predicate to a $match document.
func compilePredicate(sc scope, p queryir.Predicate) (bson.D, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return compileCompare(sc, pred)
	case *queryir.Compare:
		return compileCompare(sc, *pred)
	case queryir.And:
		return compileAnd(sc, pred)
	case *queryir.And:
		return compileAnd(sc, *pred)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileAnd inlines a single clause and wraps several in $and.
func compileAnd(sc scope, and queryir.And) (bson.D, error) {
	docs := make(bson.A, 0, len(and.Predicates))
	for _, pred := range and.Predicates {
		d, err := compilePredicate(sc, pred)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	switch len(docs) {
	case 0:
		return bson.D{}, nil
	case 1:
		return docs[0].(bson.D), nil
	default:
		return bson.D{{Key: "$and", Value: docs}}, nil
	}
}

func compileCompare(sc scope, cmp queryir.Compare) (bson.D, error) {
	field := sc.path(cmp.Ref)
	key := sc.isKey(cmp.Ref)
	values, isList := cmp.Value.([]any)

	cond := func(op string, v any) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: v}}}}
	}

	switch cmp.Op {
	case ir.OpEq, ir.OpNe:
		if isList {
			list, err := toList(values, key)
			if err != nil {
				return nil, err
			}
			if cmp.Op == ir.OpNe {
				return cond("$nin", list), nil
			}
			return cond("$in", list), nil
		}
		v, err := ToValue(cmp.Value, key)
		if err != nil {
			return nil, err
		}
		return cond("$"+string(cmp.Op), v), nil

	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		if isList {
			return nil, fmt.Errorf("operator %s on %s expects a single value", cmp.Op, cmp.Ref.Column)
		}
		v, err := ToValue(cmp.Value, key)
		if err != nil {
			return nil, err
		}
		return cond("$"+string(cmp.Op), v), nil

	case ir.OpIn, ir.OpNin:
		if !isList {
			values = []any{cmp.Value}
		}
		list, err := toList(values, key)
		if err != nil {
			return nil, err
		}
		return cond("$"+string(cmp.Op), list), nil

	case ir.OpContains, ir.OpNcontains, ir.OpContainss, ir.OpNcontainss:
		if !isList {
			values = []any{cmp.Value}
		}
		options := ""
		if cmp.Op == ir.OpContains || cmp.Op == ir.OpNcontains {
			options = "i"
		}
		patterns := make(bson.A, len(values))
		for i, v := range values {
			patterns[i] = primitive.Regex{Pattern: regexp.QuoteMeta(fmt.Sprint(v)), Options: options}
		}
		negate := cmp.Op == ir.OpNcontains || cmp.Op == ir.OpNcontainss
		if len(patterns) == 1 {
			if negate {
				return cond("$not", patterns[0]), nil
			}
			return bson.D{{Key: field, Value: patterns[0]}}, nil
		}
		if negate {
			return cond("$nin", patterns), nil
		}
		return cond("$in", patterns), nil

	case ir.OpNull:
		isNull, ok := cmp.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("operator null on %s expects a boolean, got %T", cmp.Ref.Column, cmp.Value)
		}
		if isNull {
			return cond("$eq", nil), nil
		}
		return cond("$ne", nil), nil

	default:
		return nil, fmt.Errorf("unsupported operator: %s", cmp.Op)
	}
}

func toList(values []any, key bool) (bson.A, error) {
	out := make(bson.A, len(values))
	for i, v := range values {
		c, err := ToValue(v, key)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// ToValue converts a coerced filter value into its BSON form.
//
//	24-hex string on a key -> ObjectID
//	time.Time              -> DateTime
//	*apd.Decimal           -> Decimal128
//
// Everything else is already BSON-encodable and passes through.
func ToValue(v any, key bool) (any, error) {
	switch val := v.(type) {
	case string:
		if key && primitive.IsValidObjectID(val) {
			oid, err := primitive.ObjectIDFromHex(val)
			if err != nil {
				return nil, err
			}
			return oid, nil
		}
		return val, nil
	case time.Time:
		return primitive.NewDateTimeFromTime(val), nil
	case *apd.Decimal:
		d, err := primitive.ParseDecimal128(val.String())
		if err != nil {
			return nil, fmt.Errorf("decimal %s: %w", val, err)
		}
		return d, nil
	default:
		return v, nil
	}
}
