package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relfilter/internal/ir"
)

// DefaultConnector is the storage-engine key used when a model declares none.
const DefaultConnector = "bookshelf"

// ModelDef is a compiled model plus the raw relation declarations that can
// only be classified once every model is known.
type ModelDef struct {
	Model     *ir.Model
	Relations []RelationDef
	Pos       token.Pos
}

// RelationDef is a relation attribute as declared in the schema.
//
//	author: { model: "user", via: "articles" }      Many == false
//	tags:   { collection: "tag", via: "articles" }  Many == true
type RelationDef struct {
	Alias  string
	Target string
	Plugin string
	Via    string
	Many   bool
	Pos    token.Pos
}

// CompileModel parses a CUE value into a ModelDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: article: { ... }`)
//	def, err := CompileModel(v.LookupPath(cue.ParsePath("model.article")))
func CompileModel(v cue.Value) (*ModelDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &ir.Model{
		Kind:       ir.KindCollectionType,
		Connector:  DefaultConnector,
		PrimaryKey: ir.DefaultPrimaryKey,
		Attributes: make(map[string]ir.Attribute),
	}
	def := &ModelDef{Model: m, Pos: v.Pos()}

	// Model name comes from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.Name = labels[len(labels)-1].String()
	}
	if m.Name == "" {
		return nil, &CompileError{Field: "model", Message: "model name is required", Pos: v.Pos()}
	}

	var err error
	if m.Plugin, err = optionalString(v, "plugin"); err != nil {
		return nil, err
	}
	if m.CollectionName, err = optionalString(v, "collectionName"); err != nil {
		return nil, err
	}
	if m.CollectionName == "" {
		m.CollectionName = m.Name
	}
	if orm, err := optionalString(v, "orm"); err != nil {
		return nil, err
	} else if orm != "" {
		m.Connector = orm
	}
	if pk, err := optionalString(v, "primaryKey"); err != nil {
		return nil, err
	} else if pk != "" {
		m.PrimaryKey = pk
	}

	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, err
	}
	switch ir.Kind(kind) {
	case "":
	case ir.KindCollectionType, ir.KindSingleType:
		m.Kind = ir.Kind(kind)
	default:
		return nil, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("kind must be %q or %q, got %q", ir.KindCollectionType, ir.KindSingleType, kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	// Without primaryKeyType or a declared key attribute the key stays
	// untyped and filter values on it pass through unchanged.
	pkType, err := optionalString(v, "primaryKeyType")
	if err != nil {
		return nil, err
	}
	if pkType != "" {
		t, err := ir.ParseAttrType(pkType)
		if err != nil {
			return nil, &CompileError{
				Field:   "primaryKeyType",
				Message: err.Error(),
				Pos:     v.LookupPath(cue.ParsePath("primaryKeyType")).Pos(),
			}
		}
		m.PrimaryKeyType = t
	}

	m.UID = ir.ModelUID(m.Plugin, m.Name)

	if err := parseAttributes(v, def); err != nil {
		return nil, err
	}
	return def, nil
}

// parseAttributes splits the attributes struct into scalar attributes and
// relation declarations.
func parseAttributes(v cue.Value, def *ModelDef) error {
	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return &CompileError{
			Field:   "attributes",
			Message: "attributes are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := attrsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		attrVal := iter.Value()

		target, err := optionalString(attrVal, "model")
		if err != nil {
			return err
		}
		collection, err := optionalString(attrVal, "collection")
		if err != nil {
			return err
		}
		if target != "" || collection != "" {
			if target != "" && collection != "" {
				return &CompileError{
					Field:   fmt.Sprintf("attributes.%s", name),
					Message: "a relation declares either model or collection, not both",
					Pos:     attrVal.Pos(),
				}
			}
			rel := RelationDef{Alias: name, Target: target, Pos: attrVal.Pos()}
			if collection != "" {
				rel.Target = collection
				rel.Many = true
			}
			if rel.Plugin, err = optionalString(attrVal, "plugin"); err != nil {
				return err
			}
			if rel.Via, err = optionalString(attrVal, "via"); err != nil {
				return err
			}
			def.Relations = append(def.Relations, rel)
			continue
		}

		attr, err := parseAttribute(name, attrVal)
		if err != nil {
			return err
		}
		def.Model.Attributes[name] = attr
	}
	return nil
}

func parseAttribute(name string, v cue.Value) (ir.Attribute, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return ir.Attribute{}, &CompileError{
			Field:   fmt.Sprintf("attributes.%s.type", name),
			Message: "attribute type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return ir.Attribute{}, formatCUEError(err)
	}
	t, err := ir.ParseAttrType(typeName)
	if err != nil {
		return ir.Attribute{}, &CompileError{
			Field:   fmt.Sprintf("attributes.%s.type", name),
			Message: err.Error(),
			Pos:     typeVal.Pos(),
		}
	}

	attr := ir.Attribute{Name: name, Type: t}

	enumVal := v.LookupPath(cue.ParsePath("enum"))
	if enumVal.Exists() {
		if t != ir.TypeEnumeration {
			return ir.Attribute{}, &CompileError{
				Field:   fmt.Sprintf("attributes.%s.enum", name),
				Message: "enum is only allowed on enumeration attributes",
				Pos:     enumVal.Pos(),
			}
		}
		list, err := enumVal.List()
		if err != nil {
			return ir.Attribute{}, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return ir.Attribute{}, formatCUEError(err)
			}
			attr.Enum = append(attr.Enum, s)
		}
	} else if t == ir.TypeEnumeration {
		return ir.Attribute{}, &CompileError{
			Field:   fmt.Sprintf("attributes.%s.enum", name),
			Message: "enumeration attributes require enum values",
			Pos:     v.Pos(),
		}
	}

	return attr, nil
}

// optionalString returns the string at path, or "" when the path is absent.
func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
