package queryir

import (
	"strings"

	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
)

// aliasSeparator joins relation path segments into a join alias.
const aliasSeparator = "__"

// Plan lays out the joins, predicates and ordering for a compiled filter.
//
// f must come out of filter.Compiler: where values are already coerced and
// trailing id segments already rewritten. Sort fields are resolved here; an
// id segment in either maps to the primary key column. Each relation path is joined exactly once no
// matter how many clauses reach through it.
func Plan(models filter.ModelProvider, root *ir.Model, f ir.Filter) (*Select, error) {
	p := &planner{
		models: models,
		root:   root,
		sel:    &Select{Root: root, Limit: f.Limit, Offset: f.Start},
		joined: make(map[string]bool),
	}

	if len(f.Where) > 0 {
		and := &And{Predicates: make([]Predicate, 0, len(f.Where))}
		for _, w := range f.Where {
			ref, err := p.column(w.Field)
			if err != nil {
				return nil, err
			}
			and.Predicates = append(and.Predicates, &Compare{Ref: ref, Op: w.Operator, Value: w.Value})
		}
		p.sel.Filter = and
	}

	for _, s := range f.Sort {
		ref, err := p.column(s.Field)
		if err != nil {
			return nil, err
		}
		p.sel.Order = append(p.sel.Order, Order{Ref: ref, Order: s.Order})
	}

	return p.sel, nil
}

type planner struct {
	models filter.ModelProvider
	root   *ir.Model
	sel    *Select
	joined map[string]bool
}

// column resolves field, adds any joins it needs and returns the column it
// ends on. A path ending on a relation alias compares the target's primary
// key.
func (p *planner) column(field string) (ColumnRef, error) {
	res, err := filter.Resolve(p.models, p.root, field)
	if err != nil {
		return ColumnRef{}, err
	}

	parts := strings.Split(field, ".")
	hops := parts
	if !res.EndsOnRelation {
		hops = parts[:len(parts)-1]
	}

	alias := ""
	current := p.root
	for i, seg := range hops {
		assoc, _ := current.Association(seg)
		target, _ := p.models.Target(assoc)

		path := strings.Join(parts[:i+1], ".")
		next := strings.Join(parts[:i+1], aliasSeparator)
		if !p.joined[path] {
			p.joined[path] = true
			p.sel.Joins = append(p.sel.Joins, Join{
				Path:        path,
				Alias:       next,
				Parent:      alias,
				Association: assoc,
				Source:      current,
				Target:      target,
			})
		}
		alias = next
		current = target
	}

	col := res.Attribute
	if res.EndsOnRelation || col == ir.DefaultPrimaryKey {
		col = current.PrimaryKey
	}
	return ColumnRef{Alias: alias, Column: col, Type: current.AttributeType(col)}, nil
}
