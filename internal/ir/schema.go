package ir

import (
	"fmt"
	"sort"
)

// AttrType is the closed vocabulary of attribute semantic types.
//
// The zero value is TypeUntyped: an attribute whose type the schema does not
// declare. Coercion treats it as identity.
type AttrType string

const (
	TypeUntyped     AttrType = ""
	TypeString      AttrType = "string"
	TypeText        AttrType = "text"
	TypeRichText    AttrType = "richtext"
	TypeEmail       AttrType = "email"
	TypePassword    AttrType = "password"
	TypeUID         AttrType = "uid"
	TypeEnumeration AttrType = "enumeration"
	TypeInteger     AttrType = "integer"
	TypeBigInteger  AttrType = "biginteger"
	TypeFloat       AttrType = "float"
	TypeDecimal     AttrType = "decimal"
	TypeBoolean     AttrType = "boolean"
	TypeDate        AttrType = "date"
	TypeTime        AttrType = "time"
	TypeDateTime    AttrType = "datetime"
	TypeTimestamp   AttrType = "timestamp"
	TypeJSON        AttrType = "json"
	TypeComponent   AttrType = "component"
	TypeDynamicZone AttrType = "dynamiczone"
	TypeMedia       AttrType = "media"
	TypeRelation    AttrType = "relation"
)

// AttrTypes lists every declarable attribute type (TypeUntyped excluded).
var AttrTypes = []AttrType{
	TypeString, TypeText, TypeRichText, TypeEmail, TypePassword, TypeUID,
	TypeEnumeration, TypeInteger, TypeBigInteger, TypeFloat, TypeDecimal,
	TypeBoolean, TypeDate, TypeTime, TypeDateTime, TypeTimestamp, TypeJSON,
	TypeComponent, TypeDynamicZone, TypeMedia, TypeRelation,
}

// ParseAttrType returns the AttrType named by s.
// Unknown names are rejected so that new types are an explicit addition.
func ParseAttrType(s string) (AttrType, error) {
	for _, t := range AttrTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return TypeUntyped, fmt.Errorf("unknown attribute type %q", s)
}

// IsScalar reports whether values of this type can be compared by a connector.
// Component, dynamic zone, media and relation markers cannot.
func (t AttrType) IsScalar() bool {
	switch t {
	case TypeComponent, TypeDynamicZone, TypeMedia, TypeRelation:
		return false
	}
	return true
}

// Kind distinguishes collection types from single types.
type Kind string

const (
	KindCollectionType Kind = "collectionType"
	KindSingleType     Kind = "singleType"
)

// Nature is the cardinality of an association.
type Nature string

const (
	NatureOneWay     Nature = "oneWay"
	NatureOneToOne   Nature = "oneToOne"
	NatureManyToOne  Nature = "manyToOne"
	NatureOneToMany  Nature = "oneToMany"
	NatureManyWay    Nature = "manyWay"
	NatureManyToMany Nature = "manyToMany"
)

// ToMany reports whether following the association can yield several rows.
func (n Nature) ToMany() bool {
	switch n {
	case NatureOneToMany, NatureManyWay, NatureManyToMany:
		return true
	}
	return false
}

// UsesJoinTable reports whether the association is stored in a link table.
func (n Nature) UsesJoinTable() bool {
	return n == NatureManyWay || n == NatureManyToMany
}

// DefaultPrimaryKey is the primary-key name assumed when a model declares none.
// It is also the alias callers may always use to mean "the primary key".
const DefaultPrimaryKey = "id"

// Attribute is one scalar or structured field of a model.
type Attribute struct {
	Name string   `json:"name"`
	Type AttrType `json:"type"`
	Enum []string `json:"enum,omitempty"`
}

// Association is a declared relation from its owning model to Target.
//
// Target is the target model's key (its Name), scoped to Plugin when set.
// JoinTable, JoinSourceColumn and JoinTargetColumn are filled by the schema
// registry for manyWay and manyToMany associations.
type Association struct {
	Alias            string `json:"alias"`
	Target           string `json:"target"`
	Plugin           string `json:"plugin,omitempty"`
	Nature           Nature `json:"nature"`
	Via              string `json:"via,omitempty"`
	JoinTable        string `json:"join_table,omitempty"`
	JoinSourceColumn string `json:"join_source_column,omitempty"`
	JoinTargetColumn string `json:"join_target_column,omitempty"`
}

// Model describes one content type.
//
// Models are built once while loading schemas and never mutated afterwards;
// every accessor is safe for concurrent use.
type Model struct {
	UID            string               `json:"uid"`
	Name           string               `json:"name"`
	Plugin         string               `json:"plugin,omitempty"`
	CollectionName string               `json:"collection_name"`
	Kind           Kind                 `json:"kind"`
	Connector      string               `json:"connector"`
	PrimaryKey     string               `json:"primary_key"`
	PrimaryKeyType AttrType             `json:"primary_key_type"`
	Attributes     map[string]Attribute `json:"attributes"`
	Associations   []Association        `json:"associations"`
}

// ModelUID builds the canonical identifier of a model.
func ModelUID(plugin, name string) string {
	if plugin != "" {
		return fmt.Sprintf("plugins::%s.%s", plugin, name)
	}
	return fmt.Sprintf("application::%s.%s", name, name)
}

// Attribute returns the named attribute declared on the model.
func (m *Model) Attribute(name string) (Attribute, bool) {
	a, ok := m.Attributes[name]
	return a, ok
}

// Association returns the association with the given alias.
func (m *Model) Association(alias string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Alias == alias {
			return a, true
		}
	}
	return Association{}, false
}

// IsPrimaryKey reports whether field names the primary key, either by its
// declared name or by the conventional id alias.
func (m *Model) IsPrimaryKey(field string) bool {
	return field == DefaultPrimaryKey || field == m.PrimaryKey
}

// HasField reports whether field is an attribute of the model, counting the
// primary key even when it is not declared among the attributes.
func (m *Model) HasField(field string) bool {
	if m.IsPrimaryKey(field) {
		return true
	}
	_, ok := m.Attributes[field]
	return ok
}

// AttributeType returns the declared type of field.
//
// The primary key (or its id alias) reports the type of the declared
// primary-key attribute, falling back to PrimaryKeyType. Undeclared fields
// report TypeUntyped.
func (m *Model) AttributeType(field string) AttrType {
	if m.IsPrimaryKey(field) {
		if a, ok := m.Attributes[m.PrimaryKey]; ok {
			return a.Type
		}
		return m.PrimaryKeyType
	}
	if a, ok := m.Attributes[field]; ok {
		return a.Type
	}
	return TypeUntyped
}

// AttributeNames returns declared attribute names in sorted order.
func (m *Model) AttributeNames() []string {
	names := make([]string, 0, len(m.Attributes))
	for name := range m.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
