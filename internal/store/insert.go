package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relfilter/internal/coerce"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/querysql"
)

// Row is one record to insert, keyed by attribute name or relation alias.
type Row map[string]any

// Insert stores row in the model's table and returns the primary key it was
// stored under.
//
// Attribute values are coerced to their declared types the same way filter
// values are. An owning relation (oneWay, oneToOne, manyToOne) takes the
// target's primary key; a manyWay or manyToMany relation takes a list of them
// and fills the link table. oneToMany relations are read-only from this side
// and must be set on the owning model.
//
// When row carries no primary key, the database assigns one; this only works
// for integer keys.
func (s *Store) Insert(ctx context.Context, uid string, row Row) (any, error) {
	models, err := s.modelSet()
	if err != nil {
		return nil, err
	}
	m, ok := models.Model(uid)
	if !ok {
		return nil, fmt.Errorf("insert: unknown model %q", uid)
	}

	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		cols   []string
		params []any
		links  []ir.Association
		pk     any
	)
	for _, key := range keys {
		value := row[key]

		if m.HasField(key) {
			col := key
			if m.IsPrimaryKey(key) {
				col = m.PrimaryKey
			}
			param, err := bindValue(m.AttributeType(key), value)
			if err != nil {
				return nil, fmt.Errorf("insert %s.%s: %w", m.UID, key, err)
			}
			if m.IsPrimaryKey(key) {
				pk = param
			}
			cols = append(cols, querysql.QuoteIdent(col))
			params = append(params, param)
			continue
		}

		assoc, ok := m.Association(key)
		if !ok {
			return nil, fmt.Errorf("insert %s: unknown field %q", m.UID, key)
		}
		switch {
		case assoc.Nature.UsesJoinTable():
			links = append(links, assoc)
		case assoc.Nature == ir.NatureOneToMany:
			return nil, fmt.Errorf("insert %s: %q is a oneToMany relation, set it on %s instead", m.UID, key, assoc.Target)
		default:
			target, ok := models.Target(assoc)
			if !ok {
				return nil, fmt.Errorf("insert %s.%s: unknown target %s", m.UID, key, assoc.Target)
			}
			param, err := bindValue(target.AttributeType(target.PrimaryKey), value)
			if err != nil {
				return nil, fmt.Errorf("insert %s.%s: %w", m.UID, key, err)
			}
			cols = append(cols, querysql.QuoteIdent(assoc.Alias))
			params = append(params, param)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	defer tx.Rollback()

	var stmt string
	if len(cols) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", querysql.QuoteIdent(m.CollectionName))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			querysql.QuoteIdent(m.CollectionName),
			strings.Join(cols, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	}
	res, err := tx.ExecContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.UID, err)
	}
	if pk == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", m.UID, err)
		}
		pk = id
	}

	for _, assoc := range links {
		if err := insertLinks(ctx, tx, models, assoc, pk, row[assoc.Alias]); err != nil {
			return nil, fmt.Errorf("insert %s.%s: %w", m.UID, assoc.Alias, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return pk, nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, models ModelSet, assoc ir.Association, pk, value any) error {
	target, ok := models.Target(assoc)
	if !ok {
		return fmt.Errorf("unknown target %s", assoc.Target)
	}
	ids, ok := coerce.AsSequence(value)
	if !ok {
		ids = []any{value}
	}

	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)",
		querysql.QuoteIdent(assoc.JoinTable),
		querysql.QuoteIdent(assoc.JoinSourceColumn),
		querysql.QuoteIdent(assoc.JoinTargetColumn))
	for _, id := range ids {
		param, err := bindValue(target.AttributeType(target.PrimaryKey), id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, pk, param); err != nil {
			return err
		}
	}
	return nil
}

// bindValue coerces v to t and converts it to a bind parameter. Nil stays
// NULL.
func bindValue(t ir.AttrType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	coerced, err := coerce.Coerce(t, v, ir.OpEq)
	if err != nil {
		return nil, err
	}
	return querysql.ToParam(coerced)
}
