// Package loader stages records into a pending-write set and commits them
// to the store one batch per transaction.
//
// A Loader hands out one Session at a time. A Session moves through
// Connected, SchemaReady, Staging and Committing, returns to Connected
// after every commit, and ends Disconnected once closed.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andys/moviesync/db"
	"github.com/andys/moviesync/errs"
)

// State is the lifecycle position of a Session.
type State int

const (
	Disconnected State = iota
	Connected
	SchemaReady
	Staging
	Committing
)

func (s State) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case SchemaReady:
		return "SCHEMA_READY"
	case Staging:
		return "STAGING"
	case Committing:
		return "COMMITTING"
	default:
		return "DISCONNECTED"
	}
}

// ErrSessionOpen is returned by Connect while a previous session is still open.
var ErrSessionOpen = errors.New("loader: previous session must be closed before connecting again")

// OpenFunc opens a store connection for a connection string.
type OpenFunc func(ctx context.Context, dsn string) (*db.Connection, error)

// Options configure a Loader.
type Options struct {
	// ConnectionString is used when Connect is called with an empty one.
	ConnectionString string
	// Schema is the target table. Nil means db.MovieSchema().
	Schema *db.TableSchema
	// UniqueKeys are the fields tested for existing rows. Empty disables
	// the check and every record is inserted.
	UniqueKeys []string
	// Open defaults to db.Connect with DB.
	Open   OpenFunc
	DB     db.Options
	Logger *slog.Logger
}

// Loader opens sessions against one target schema.
type Loader struct {
	opts   Options
	log    *slog.Logger
	active *Session
}

// New returns a Loader for opts.
func New(opts Options) *Loader {
	if opts.Schema == nil {
		opts.Schema = db.MovieSchema()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DB.Logger == nil {
		opts.DB.Logger = opts.Logger
	}
	if opts.Open == nil {
		dbOpts := opts.DB
		opts.Open = func(ctx context.Context, dsn string) (*db.Connection, error) {
			return db.Connect(ctx, dsn, dbOpts)
		}
	}
	return &Loader{opts: opts, log: opts.Logger}
}

// Connect opens a session. connString takes priority over the configured
// one; when neither is set it fails with errs.Configuration without
// touching the store.
func (l *Loader) Connect(ctx context.Context, connString string) (*Session, error) {
	if l.active != nil && l.active.state != Disconnected {
		return nil, ErrSessionOpen
	}
	dsn := connString
	if dsn == "" {
		dsn = l.opts.ConnectionString
	}
	if dsn == "" {
		return nil, errs.New(errs.Configuration, "connect",
			fmt.Errorf("connection string must be provided to the loader or to connect, none was found"))
	}
	if err := l.CheckKeys(); err != nil {
		return nil, err
	}

	conn, err := l.opts.Open(ctx, dsn)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown {
			err = errs.New(errs.Store, "connect", err)
		}
		return nil, err
	}

	s := &Session{
		conn:   conn,
		schema: l.opts.Schema,
		keys:   l.opts.UniqueKeys,
		log:    l.log,
		state:  Connected,
	}
	l.active = s
	return s, nil
}

// CheckKeys fails with errs.Configuration when a unique key is not a
// column of the target schema.
func (l *Loader) CheckKeys() error {
	for _, key := range l.opts.UniqueKeys {
		if !l.opts.Schema.HasColumn(key) {
			return errs.Errorf(errs.Configuration, "connect", "unique key %q is not a column of %s", key, l.opts.Schema.Name)
		}
	}
	return nil
}

// ConnectionString returns the configured fallback connection string.
func (l *Loader) ConnectionString() string { return l.opts.ConnectionString }

// UniqueKeys returns the configured uniqueness key.
func (l *Loader) UniqueKeys() []string { return l.opts.UniqueKeys }

// Schema returns the target schema.
func (l *Loader) Schema() *db.TableSchema { return l.opts.Schema }
