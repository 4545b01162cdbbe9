package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/andys/moviesync/db"
	"github.com/andys/moviesync/errs"
	"github.com/andys/moviesync/source"
)

// Session owns one store connection and the pending-write set staged on it.
// It is not safe for concurrent use.
type Session struct {
	conn        *db.Connection
	schema      *db.TableSchema
	keys        []string
	log         *slog.Logger
	state       State
	schemaReady bool

	pending []source.Record
	seen    map[string]struct{}
}

// StageResult counts what one Stage call did with its records.
type StageResult struct {
	Staged  int
	Skipped int
	// Invalid holds one errs.Validation error per record that was not staged.
	Invalid []error
}

// State returns the session state.
func (s *Session) State() State { return s.state }

// Pending returns the number of staged, uncommitted records.
func (s *Session) Pending() int { return len(s.pending) }

// EnsureSchema creates the target table if it does not exist.
func (s *Session) EnsureSchema(ctx context.Context) error {
	switch s.state {
	case Connected, SchemaReady:
	default:
		return s.invalid("ensure schema")
	}
	if !s.schemaReady {
		if err := s.conn.EnsureSchema(ctx, s.schema); err != nil {
			return err
		}
		s.schemaReady = true
	}
	s.state = SchemaReady
	return nil
}

// Stage adds the records of b that do not already exist to the pending-write
// set. Fields that are not columns of the target schema are dropped with a
// warning. A record whose key matches one already staged in this batch is
// skipped as well. On a store error the pending set is discarded.
func (s *Session) Stage(ctx context.Context, b RecordBatch) (StageResult, error) {
	var res StageResult
	switch s.state {
	case Connected, SchemaReady, Staging:
	default:
		return res, s.invalid("stage")
	}
	if !s.schemaReady {
		return res, s.invalid("stage before ensure schema")
	}
	if b == nil {
		return res, errs.New(errs.Validation, "stage", fmt.Errorf("data must be a mapping or a sequence of mappings, got nil"))
	}
	s.state = Staging

	for i, rec := range b.records() {
		if rec == nil {
			res.Invalid = append(res.Invalid, errs.Errorf(errs.Validation, "stage", "record %d is not a mapping", i))
			continue
		}
		row := s.sanitize(rec)
		if len(row) == 0 {
			res.Invalid = append(res.Invalid, errs.Errorf(errs.Validation, "stage", "record %d has no columns of %s", i, s.schema.Name))
			continue
		}

		if len(s.keys) > 0 {
			key := canonicalKey(row, s.keys)
			if _, dup := s.seen[key]; dup {
				res.Skipped++
				continue
			}
			exists, err := s.conn.Exists(ctx, s.schema, row, s.keys)
			if err != nil {
				s.reset()
				s.state = SchemaReady
				return res, err
			}
			if exists {
				res.Skipped++
				continue
			}
			if s.seen == nil {
				s.seen = make(map[string]struct{})
			}
			s.seen[key] = struct{}{}
		}

		s.pending = append(s.pending, row)
		res.Staged++
	}
	return res, nil
}

// Commit writes the pending-write set in one transaction and returns the
// number of rows written. The set is cleared whether or not the commit
// succeeds; on failure the transaction is rolled back.
func (s *Session) Commit(ctx context.Context) (n int, err error) {
	switch s.state {
	case Connected, SchemaReady, Staging:
	default:
		return 0, s.invalid("commit")
	}
	s.state = Committing
	defer func() {
		s.reset()
		s.state = Connected
	}()

	if len(s.pending) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range s.pending {
		if err := s.conn.InsertRecord(ctx, tx, s.schema, rec); err != nil {
			if db.ConstraintViolation(err) {
				s.log.Warn("insert rejected by table constraint", "table", s.schema.Name, "error", err)
			}
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Warn("rollback failed", "table", s.schema.Name, "error", rbErr)
			}
			return 0, asStoreError("commit", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.New(errs.Store, "commit", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return len(s.pending), nil
}

// Close discards anything pending and releases the connection. It is safe
// to call more than once.
func (s *Session) Close() error {
	if s.state == Disconnected {
		return nil
	}
	s.reset()
	s.state = Disconnected
	if err := s.conn.Close(); err != nil {
		return errs.New(errs.Store, "close", fmt.Errorf("failed to close connection: %w", err))
	}
	return nil
}

func (s *Session) reset() {
	s.pending = nil
	s.seen = nil
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("loader: cannot %s in state %s", op, s.state)
}

// sanitize returns the column subset of rec. Unknown fields are logged and
// dropped; list and mapping values are stored as their JSON text.
func (s *Session) sanitize(rec source.Record) source.Record {
	out := make(source.Record, len(rec))
	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := rec[name]
		if !s.schema.HasColumn(name) {
			s.log.Warn("column does not exist on table",
				"table", s.schema.Name, "column", name, "value", val)
			continue
		}
		switch val.(type) {
		case []any, map[string]any:
			if b, err := json.Marshal(val); err == nil {
				val = string(b)
			} else {
				val = fmt.Sprint(val)
			}
		}
		out[name] = val
	}
	return out
}

// canonicalKey renders the key fields of rec so that values the store
// would compare equal, such as "2000" and 2000, collide. Each field is
// length-prefixed; a missing or nil field is written as "-".
func canonicalKey(rec source.Record, keys []string) string {
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		val, ok := rec[key]
		if !ok || val == nil {
			b.WriteString("-")
			continue
		}
		v := fmt.Sprint(val)
		fmt.Fprintf(&b, "%d:%s", len(v), v)
	}
	return b.String()
}

func asStoreError(op string, err error) error {
	if errs.KindOf(err) == errs.Store {
		return err
	}
	return errs.New(errs.Store, op, err)
}
