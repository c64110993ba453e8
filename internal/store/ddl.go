package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/querysql"
)

// affinity maps attribute types to SQLite column types. Dates and times are
// TEXT so go-sqlite3 hands them back untouched.
func affinity(t ir.AttrType) string {
	switch t {
	case ir.TypeInteger, ir.TypeBigInteger:
		return "INTEGER"
	case ir.TypeFloat:
		return "REAL"
	case ir.TypeDecimal:
		return "NUMERIC"
	case ir.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// ApplyModels creates a table per model and a link table per to-many
// relation, then records each model definition. Existing tables are left in
// place, so applying the same models twice is a no-op.
//
// Owning relations (oneWay, oneToOne, manyToOne) get a column named after
// the alias holding the target's primary key.
func (s *Store) ApplyModels(ctx context.Context, models ModelSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply models: %w", err)
	}
	defer tx.Rollback()

	for _, m := range models.Models() {
		ddl, err := createTable(models, m)
		if err != nil {
			return fmt.Errorf("apply models: %w", err)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("apply models: create %s: %w", m.CollectionName, err)
		}

		for _, assoc := range m.Associations {
			if !assoc.Nature.UsesJoinTable() {
				continue
			}
			ddl := createJoinTable(assoc)
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("apply models: create %s: %w", assoc.JoinTable, err)
			}
		}

		def, err := ir.MarshalModel(m)
		if err != nil {
			return fmt.Errorf("apply models: encode %s: %w", m.UID, err)
		}
		hash, err := ir.ModelHash(m)
		if err != nil {
			return fmt.Errorf("apply models: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relfilter_models (uid, collection_name, definition_hash, definition)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET
				collection_name = excluded.collection_name,
				definition_hash = excluded.definition_hash,
				definition = excluded.definition
		`, m.UID, m.CollectionName, hash, string(def)); err != nil {
			return fmt.Errorf("apply models: record %s: %w", m.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply models: %w", err)
	}

	s.mu.Lock()
	s.models = models
	s.mu.Unlock()
	return nil
}

func createTable(models ModelSet, m *ir.Model) (string, error) {
	cols := []string{fmt.Sprintf("%s %s PRIMARY KEY",
		querysql.QuoteIdent(m.PrimaryKey), affinity(m.AttributeType(m.PrimaryKey)))}

	for _, name := range m.AttributeNames() {
		if m.IsPrimaryKey(name) {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s %s", querysql.QuoteIdent(name), affinity(m.Attributes[name].Type)))
	}

	owning := make([]ir.Association, 0, len(m.Associations))
	for _, assoc := range m.Associations {
		if !assoc.Nature.ToMany() {
			owning = append(owning, assoc)
		}
	}
	sort.Slice(owning, func(i, j int) bool { return owning[i].Alias < owning[j].Alias })
	for _, assoc := range owning {
		target, ok := models.Target(assoc)
		if !ok {
			return "", fmt.Errorf("%s.%s: unknown target %s", m.UID, assoc.Alias, assoc.Target)
		}
		cols = append(cols, fmt.Sprintf("%s %s", querysql.QuoteIdent(assoc.Alias), affinity(target.AttributeType(target.PrimaryKey))))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		querysql.QuoteIdent(m.CollectionName), strings.Join(cols, ", ")), nil
}

func createJoinTable(assoc ir.Association) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s, %s, PRIMARY KEY (%s, %s))",
		querysql.QuoteIdent(assoc.JoinTable),
		querysql.QuoteIdent(assoc.JoinSourceColumn),
		querysql.QuoteIdent(assoc.JoinTargetColumn),
		querysql.QuoteIdent(assoc.JoinSourceColumn),
		querysql.QuoteIdent(assoc.JoinTargetColumn))
}
