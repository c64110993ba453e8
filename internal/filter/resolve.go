package filter

import (
	"strings"

	"github.com/roach88/relfilter/internal/ir"
)

// ModelProvider supplies model descriptors to the resolver.
//
// Implementations must be fully populated before the first Resolve and must
// not change afterwards. schema.Registry is the production implementation.
type ModelProvider interface {
	// Model returns the model with the given UID.
	Model(uid string) (*ir.Model, bool)

	// Target returns the model an association points to.
	Target(assoc ir.Association) (*ir.Model, bool)
}

// Resolution is the result of walking a field path.
type Resolution struct {
	// Model is the terminal model of the relation chain. It is the model the
	// path started from when no relation was crossed.
	Model *ir.Model

	// Attribute is the final path segment.
	Attribute string

	// Association is the last association traversed, nil when none was.
	Association *ir.Association

	// Hops is the number of relations the path crosses.
	Hops int

	// EndsOnRelation is set when the final segment is an association alias.
	EndsOnRelation bool
}

// Resolve walks a dot-separated field path across model attributes and
// relations.
//
// Each segment is first matched against the association aliases of the
// current model; a match moves the walk to the association's target. Any
// other segment must be the last one and must name an attribute of the
// current model (the id alias and the primary key always qualify). A path
// ending on an association alias resolves to the target model with the alias
// as Attribute.
func Resolve(models ModelProvider, model *ir.Model, field string) (Resolution, error) {
	parts := strings.Split(field, ".")

	res := Resolution{Model: model}
	for i, part := range parts {
		res.Attribute = part

		if assoc, ok := res.Model.Association(part); ok {
			target, found := models.Target(assoc)
			if !found {
				return Resolution{}, NewInvalidFieldPath(model.UID, field)
			}
			res.Association = &assoc
			res.Model = target
			res.Hops++
			res.EndsOnRelation = i == len(parts)-1
			continue
		}

		if !res.Model.HasField(part) || i != len(parts)-1 {
			return Resolution{}, NewInvalidFieldPath(model.UID, field)
		}
	}
	return res, nil
}
