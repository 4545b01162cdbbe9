package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/andys/moviesync/errs"
)

// ColumnType is the portable type of a column.
type ColumnType string

const (
	Integer   ColumnType = "integer"
	Text      ColumnType = "text"
	Float     ColumnType = "float"
	Timestamp ColumnType = "timestamp"
)

// TableSchema represents the structure of a database table
type TableSchema struct {
	Name    string
	Columns []ColumnSchema
}

// ColumnSchema represents the structure of a table column
type ColumnSchema struct {
	Name    string
	Type    ColumnType
	IsID    bool // True if this is the primary key column
	Indexed bool
}

// MovieSchema is the merged movie table the loader writes into.
func MovieSchema() *TableSchema {
	return &TableSchema{
		Name: "movie_data",
		Columns: []ColumnSchema{
			{Name: "id", Type: Integer, IsID: true},
			{Name: "movie_id", Type: Text},
			{Name: "year", Type: Integer},
			{Name: "genre", Type: Text},
			{Name: "frequency", Type: Integer},
			{Name: "movie_name", Type: Text},
			{Name: "created_at", Type: Timestamp, Indexed: true},
			{Name: "link", Type: Text, Indexed: true},
		},
	}
}

// Column returns the named column.
func (s *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSchema{}, false
}

// HasColumn reports whether name is a column of s.
func (s *TableSchema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// PrimaryKey returns the primary key column names.
func (s *TableSchema) PrimaryKey() []string {
	var pk []string
	for _, col := range s.Columns {
		if col.IsID {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

// EnsureSchema creates the table and its indexes if absent. An existing
// table is never altered.
func (c *Connection) EnsureSchema(ctx context.Context, schema *TableSchema) error {
	if c.db == nil {
		return errs.New(errs.Store, "ensure schema", fmt.Errorf("sql: database is closed"))
	}
	for _, stmt := range c.schemaStatements(schema) {
		c.trace(stmt)
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return errs.New(errs.Store, "ensure schema", fmt.Errorf("failed to execute query: %s, error: %w", stmt, err))
		}
	}
	return nil
}

func (c *Connection) schemaStatements(schema *TableSchema) []string {
	pk := schema.PrimaryKey()
	defs := make([]string, 0, len(schema.Columns)+2)
	for _, col := range schema.Columns {
		def := fmt.Sprintf("%s %s", escapeIdentifier(col.Name, c.Type), c.sqlType(col))
		// A lone integer key is filled by the store when a record omits it.
		if col.IsID && col.Type == Integer && len(pk) == 1 {
			def += " " + c.autoIncrement()
		}
		defs = append(defs, def)
	}
	if len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(escapeIdentifiers(pk, c.Type), ", ")))
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes go inline.
	if c.Type == MySQL {
		for _, col := range schema.Columns {
			if col.Indexed {
				defs = append(defs, fmt.Sprintf("INDEX %s (%s)",
					escapeIdentifier(indexName(schema.Name, col.Name), c.Type),
					escapeIdentifier(col.Name, c.Type)))
			}
		}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		escapeIdentifier(schema.Name, c.Type), strings.Join(defs, ", "))}

	if c.Type == PostgreSQL {
		for _, col := range schema.Columns {
			if col.Indexed {
				stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
					escapeIdentifier(indexName(schema.Name, col.Name), c.Type),
					escapeIdentifier(schema.Name, c.Type),
					escapeIdentifier(col.Name, c.Type)))
			}
		}
	}
	return stmts
}

func (c *Connection) autoIncrement() string {
	if c.Type == MySQL {
		return "AUTO_INCREMENT"
	}
	return "GENERATED BY DEFAULT AS IDENTITY"
}

func (c *Connection) sqlType(col ColumnSchema) string {
	switch c.Type {
	case MySQL:
		switch col.Type {
		case Integer:
			return "BIGINT"
		case Float:
			return "DOUBLE"
		case Timestamp:
			return "DATETIME"
		default:
			return "VARCHAR(255)"
		}
	default:
		switch col.Type {
		case Integer:
			return "integer"
		case Float:
			return "double precision"
		case Timestamp:
			return "timestamp with time zone"
		default:
			return "text"
		}
	}
}

func indexName(table, column string) string {
	return fmt.Sprintf("ix_%s_%s", table, column)
}
