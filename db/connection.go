package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/andys/moviesync/errs"
)

type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
)

// Options tune a Connection.
type Options struct {
	Verbose bool         // echo every statement at debug level
	Logger  *slog.Logger // nil means slog.Default()
}

// Connection represents a database connection
type Connection struct {
	db   *sql.DB
	Type DBType
	opts Options
}

// Connect establishes a database connection from a URL string
func Connect(ctx context.Context, dbURL string, opts Options) (*Connection, error) {
	if dbURL == "" {
		return nil, errs.New(errs.Configuration, "connect", fmt.Errorf("empty database URL"))
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, errs.New(errs.Configuration, "connect", fmt.Errorf("invalid database URL: %w", err))
	}

	var dbType DBType
	var dsn string

	switch u.Scheme {
	case "mysql":
		dbType = MySQL
		cfg := mysql.NewConfig()
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()

	case "postgres", "postgresql":
		dbType = PostgreSQL
		// PostgreSQL can use the URL directly
		dsn = dbURL

	default:
		return nil, errs.Errorf(errs.Configuration, "connect", "unsupported database type: %s", u.Scheme)
	}

	sqlDB, err := sql.Open(string(dbType), dsn)
	if err != nil {
		return nil, errs.New(errs.Store, "connect", fmt.Errorf("failed to open database connection: %w", err))
	}

	// Test the connection
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, errs.New(errs.Store, "connect", fmt.Errorf("failed to ping database: %w", err))
	}

	return NewConnection(sqlDB, dbType, opts), nil
}

// NewConnection wraps an already opened *sql.DB.
func NewConnection(sqlDB *sql.DB, dbType DBType, opts Options) *Connection {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Connection{db: sqlDB, Type: dbType, opts: opts}
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// BeginTx starts the transaction a batch is committed in.
func (c *Connection) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if c.db == nil {
		return nil, errs.New(errs.Store, "begin", fmt.Errorf("sql: database is closed"))
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.New(errs.Store, "begin", fmt.Errorf("failed to begin transaction: %w", err))
	}
	return tx, nil
}

func (c *Connection) placeholder(n int) string {
	if c.Type == PostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (c *Connection) trace(query string, args ...any) {
	if c.opts.Verbose {
		c.opts.Logger.Debug("executing SQL", "query", query, "args", len(args))
	}
}
