package store

import (
	"context"
	"fmt"

	"github.com/roach88/relfilter/internal/querysql"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Run executes a statement built by the relational connector and returns
// every row in the order the statement defines. TEXT columns come back as
// strings.
func (s *Store) Run(ctx context.Context, q *querysql.Query) ([]Record, error) {
	if q == nil {
		return nil, fmt.Errorf("run: nil query")
	}

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("run: columns: %w", err)
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("run: scan: %w", err)
		}

		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return out, nil
}

// Count returns the number of rows in a model's table.
func (s *Store) Count(ctx context.Context, uid string) (int, error) {
	models, err := s.modelSet()
	if err != nil {
		return 0, err
	}
	m, ok := models.Model(uid)
	if !ok {
		return 0, fmt.Errorf("count: unknown model %q", uid)
	}

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", querysql.QuoteIdent(m.CollectionName))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", m.UID, err)
	}
	return n, nil
}
