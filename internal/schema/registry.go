package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relfilter/internal/ir"
)

// validRelations lists the association natures each kind may declare.
// Single types only hold one-directional relations.
var validRelations = map[ir.Kind][]ir.Nature{
	ir.KindSingleType: {ir.NatureOneWay, ir.NatureManyWay},
	ir.KindCollectionType: {
		ir.NatureOneWay, ir.NatureManyWay, ir.NatureOneToOne,
		ir.NatureOneToMany, ir.NatureManyToOne, ir.NatureManyToMany,
	},
}

type modelKey struct {
	plugin string
	name   string
}

// Registry is the immutable set of models known to the process.
//
// It is built once by NewRegistry and only read afterwards, so every method is
// safe for concurrent use without locking. Registry implements
// filter.ModelProvider.
type Registry struct {
	byUID        map[string]*ir.Model
	byKey        map[modelKey]*ir.Model
	byCollection map[string]*ir.Model
	uids         []string
}

// NewRegistry validates the definitions as a whole, classifies every relation
// and returns the resulting registry.
//
// Validation covers duplicate UIDs and collection names, relation targets,
// via back-references and the relation natures allowed per kind.
func NewRegistry(defs ...*ModelDef) (*Registry, error) {
	r := &Registry{
		byUID:        make(map[string]*ir.Model, len(defs)),
		byKey:        make(map[modelKey]*ir.Model, len(defs)),
		byCollection: make(map[string]*ir.Model, len(defs)),
	}

	byKey := make(map[modelKey]*ModelDef, len(defs))
	for _, def := range defs {
		m := def.Model
		if _, dup := r.byUID[m.UID]; dup {
			return nil, &ValidationError{Model: m.UID, Message: "duplicate model uid", Pos: def.Pos}
		}
		if other, dup := r.byCollection[m.CollectionName]; dup {
			return nil, &ValidationError{
				Model:   m.UID,
				Message: fmt.Sprintf("collection name %q is already used by %s", m.CollectionName, other.UID),
				Pos:     def.Pos,
			}
		}
		r.byUID[m.UID] = m
		r.byKey[modelKey{m.Plugin, m.Name}] = m
		r.byCollection[m.CollectionName] = m
		r.uids = append(r.uids, m.UID)
		byKey[modelKey{m.Plugin, m.Name}] = def
	}
	sort.Strings(r.uids)

	for _, def := range defs {
		assocs, err := classifyRelations(def, byKey)
		if err != nil {
			return nil, err
		}
		def.Model.Associations = assocs
	}

	return r, nil
}

// classifyRelations turns the relation declarations of def into associations.
func classifyRelations(def *ModelDef, byKey map[modelKey]*ModelDef) ([]ir.Association, error) {
	src := def.Model
	assocs := make([]ir.Association, 0, len(def.Relations))

	for _, rel := range def.Relations {
		if src.HasField(rel.Alias) {
			return nil, &ValidationError{
				Model:   src.UID,
				Field:   rel.Alias,
				Message: "relation alias collides with an attribute or the primary key",
				Pos:     rel.Pos,
			}
		}

		targetDef, ok := byKey[modelKey{rel.Plugin, rel.Target}]
		if !ok {
			return nil, &ValidationError{
				Model:   src.UID,
				Field:   rel.Alias,
				Message: fmt.Sprintf("relation targets unknown model %q", ir.ModelUID(rel.Plugin, rel.Target)),
				Pos:     rel.Pos,
			}
		}
		target := targetDef.Model

		nature, err := natureOf(src, rel, targetDef)
		if err != nil {
			return nil, err
		}
		if !natureAllowed(src.Kind, nature) {
			return nil, &ValidationError{
				Model:   src.UID,
				Field:   rel.Alias,
				Message: fmt.Sprintf("%s relations are not allowed on a %s", nature, src.Kind),
				Pos:     rel.Pos,
			}
		}

		assoc := ir.Association{
			Alias:  rel.Alias,
			Target: rel.Target,
			Plugin: rel.Plugin,
			Nature: nature,
			Via:    rel.Via,
		}
		if nature.UsesJoinTable() {
			assoc.JoinTable, assoc.JoinSourceColumn, assoc.JoinTargetColumn = joinTable(src, target, rel)
		}
		assocs = append(assocs, assoc)
	}
	return assocs, nil
}

// natureOf classifies a relation from its own declaration and, when via is
// set, the declaration it points back to.
func natureOf(src *ir.Model, rel RelationDef, targetDef *ModelDef) (ir.Nature, error) {
	if rel.Via == "" {
		if rel.Many {
			return ir.NatureManyWay, nil
		}
		return ir.NatureOneWay, nil
	}

	var back *RelationDef
	for i := range targetDef.Relations {
		if targetDef.Relations[i].Alias == rel.Via {
			back = &targetDef.Relations[i]
			break
		}
	}
	if back == nil || back.Target != src.Name || back.Plugin != src.Plugin {
		return "", &ValidationError{
			Model:   src.UID,
			Field:   rel.Alias,
			Message: fmt.Sprintf("via %q is not a relation of %s pointing back to %s", rel.Via, targetDef.Model.UID, src.UID),
			Pos:     rel.Pos,
		}
	}

	switch {
	case !rel.Many && !back.Many:
		return ir.NatureOneToOne, nil
	case !rel.Many && back.Many:
		return ir.NatureManyToOne, nil
	case rel.Many && !back.Many:
		return ir.NatureOneToMany, nil
	default:
		return ir.NatureManyToMany, nil
	}
}

func natureAllowed(kind ir.Kind, nature ir.Nature) bool {
	for _, n := range validRelations[kind] {
		if n == nature {
			return true
		}
	}
	return false
}

// joinTable names the link table of a to-many association and its columns.
// Both sides of a manyToMany derive the same table name.
func joinTable(src, target *ir.Model, rel RelationDef) (table, sourceCol, targetCol string) {
	sourceCol = src.Name + "_id"
	targetCol = target.Name + "_id"

	if rel.Via == "" {
		if sourceCol == targetCol {
			targetCol = rel.Alias + "_id"
		}
		return src.CollectionName + "__" + rel.Alias, sourceCol, targetCol
	}

	sides := []string{src.CollectionName + "_" + rel.Alias, target.CollectionName + "_" + rel.Via}
	sort.Strings(sides)
	if sourceCol == targetCol {
		sourceCol = rel.Alias + "_id"
		targetCol = rel.Via + "_id"
	}
	return sides[0] + "__" + sides[1], sourceCol, targetCol
}

// Model returns the model with the given UID.
func (r *Registry) Model(uid string) (*ir.Model, bool) {
	m, ok := r.byUID[uid]
	return m, ok
}

// Target returns the model an association points to.
func (r *Registry) Target(assoc ir.Association) (*ir.Model, bool) {
	m, ok := r.byKey[modelKey{assoc.Plugin, assoc.Target}]
	return m, ok
}

// Lookup finds a model by UID, or else by lower-cased name within plugin
// (the application namespace when plugin is empty).
func (r *Registry) Lookup(entity, plugin string) (*ir.Model, bool) {
	if m, ok := r.byUID[entity]; ok {
		return m, true
	}
	m, ok := r.byKey[modelKey{plugin, strings.ToLower(entity)}]
	return m, ok
}

// ModelByCollectionName returns the model stored in the named collection.
func (r *Registry) ModelByCollectionName(name string) (*ir.Model, bool) {
	m, ok := r.byCollection[name]
	return m, ok
}

// Models returns every model ordered by UID.
func (r *Registry) Models() []*ir.Model {
	out := make([]*ir.Model, len(r.uids))
	for i, uid := range r.uids {
		out[i] = r.byUID[uid]
	}
	return out
}

// Len returns the number of models.
func (r *Registry) Len() int {
	return len(r.uids)
}
