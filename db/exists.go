package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andys/moviesync/errs"
)

// Exists reports whether a persisted row of schema matches data on every
// field of keys. A missing or nil value matches NULL. With no keys every
// record is new and the store is not queried.
func (c *Connection) Exists(ctx context.Context, schema *TableSchema, data map[string]any, keys []string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	if c.db == nil {
		return false, errs.New(errs.Store, "exists", fmt.Errorf("sql: database is closed"))
	}

	query, args, err := c.existsQuery(schema, data, keys)
	if err != nil {
		return false, err
	}

	c.trace(query, args...)
	var one int
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, errs.New(errs.Store, "exists", fmt.Errorf("failed to execute query: %s, error: %w", query, err))
	}
	return true, nil
}

func (c *Connection) existsQuery(schema *TableSchema, data map[string]any, keys []string) (string, []any, error) {
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !schema.HasColumn(key) {
			return "", nil, errs.Errorf(errs.Configuration, "exists", "unique key %q is not a column of %s", key, schema.Name)
		}
		val, ok := data[key]
		if !ok || val == nil {
			conds = append(conds, escapeIdentifier(key, c.Type)+" IS NULL")
			continue
		}
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s = %s", escapeIdentifier(key, c.Type), c.placeholder(len(args))))
	}

	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1",
		escapeIdentifier(schema.Name, c.Type), strings.Join(conds, " AND "))
	return query, args, nil
}
