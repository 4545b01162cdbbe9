package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/andys/moviesync/errs"
)

func escapeIdentifier(identifier string, dbType DBType) string {
	switch dbType {
	case MySQL:
		return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
	case PostgreSQL:
		return pq.QuoteIdentifier(identifier)
	default:
		return identifier
	}
}

func escapeIdentifiers(identifiers []string, dbType DBType) []string {
	escaped := make([]string, len(identifiers))
	for i, id := range identifiers {
		escaped[i] = escapeIdentifier(id, dbType)
	}
	return escaped
}

// InsertRecord inserts the schema columns present in data within tx.
// Fields of data that are not columns are ignored.
func (c *Connection) InsertRecord(ctx context.Context, tx *sql.Tx, schema *TableSchema, data map[string]any) error {
	if tx == nil {
		return errs.New(errs.Store, "insert", fmt.Errorf("sql: transaction is not open"))
	}
	columns := make([]string, 0, len(schema.Columns))
	placeholders := make([]string, 0, len(schema.Columns))
	values := make([]any, 0, len(schema.Columns))

	for _, col := range schema.Columns {
		if val, ok := data[col.Name]; ok {
			columns = append(columns, col.Name)
			values = append(values, val)
			placeholders = append(placeholders, c.placeholder(len(values)))
		}
	}
	if len(columns) == 0 {
		return errs.Errorf(errs.Validation, "insert", "record has no columns of %s", schema.Name)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		escapeIdentifier(schema.Name, c.Type),
		strings.Join(escapeIdentifiers(columns, c.Type), ", "),
		strings.Join(placeholders, ", "),
	)

	c.trace(query, values...)
	if _, err := tx.ExecContext(ctx, query, values...); err != nil {
		return errs.New(errs.Store, "insert", fmt.Errorf("failed to execute query: %s, error: %w", query, err))
	}
	return nil
}

// ConstraintViolation reports whether err was caused by an integrity
// constraint in the store, such as a duplicate primary key.
func ConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1048, 1216, 1217, 1451, 1452:
			return true
		}
	}
	return false
}
