// Package pipeline drives a record file through batching and loading.
//
// Batches are loaded strictly in file order, each in its own session and
// transaction. A failed batch is recorded in the Summary and the run moves
// on; configuration and input errors end the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andys/moviesync/batch"
	"github.com/andys/moviesync/errs"
	"github.com/andys/moviesync/loader"
	"github.com/andys/moviesync/source"
)

// Options configure a Driver.
type Options struct {
	Loader           *loader.Loader
	ConnectionString string
	// BatchSize <= 0 loads everything as one batch.
	BatchSize int
	Logger    *slog.Logger
}

// Driver sequences source, batcher and loader.
type Driver struct {
	opts Options
	log  *slog.Logger
}

// BatchResult is the outcome of one LoadBatch call.
type BatchResult struct {
	Staged    int
	Skipped   int
	Committed int
	Invalid   int
}

// New returns a Driver.
func New(opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Loader == nil {
		opts.Loader = loader.New(loader.Options{Logger: opts.Logger})
	}
	return &Driver{opts: opts, log: opts.Logger}
}

// Run loads the records of path. The returned Summary is non-nil whenever
// any batch was attempted, including when ctx is canceled mid-run.
func (d *Driver) Run(ctx context.Context, path string) (*Summary, error) {
	if err := d.checkConfig(); err != nil {
		return nil, err
	}
	r, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	d.log.Info("starting data ingestion",
		"file", r.Path(),
		"table", d.opts.Loader.Schema().Name,
		"unique_keys", d.opts.Loader.UniqueKeys(),
		"batch_size", d.opts.BatchSize)
	return d.RunRows(ctx, r.Rows())
}

// RunRows loads rows in batches of the configured size.
func (d *Driver) RunRows(ctx context.Context, rows iter.Seq[source.Row]) (*Summary, error) {
	if err := d.checkConfig(); err != nil {
		return nil, err
	}
	start := time.Now()
	sum := &Summary{RunID: uuid.New().String()}
	d.log.Debug("run started", "run_id", sum.RunID)
	defer func() { sum.Elapsed = time.Since(start) }()

	seq := 0
	for rowBatch := range batch.Of(rows, d.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		seq++
		if err := fatalRowError(rowBatch); err != nil {
			return sum, err
		}

		res, err := d.LoadBatch(ctx, seq, rowBatch)
		sum.add(res)
		if err == nil {
			continue
		}
		if errs.Is(err, errs.Configuration) {
			return sum, err
		}
		sum.Failures = append(sum.Failures, Failure{Batch: seq, Kind: errs.KindOf(err), Err: err})
		d.log.Error("batch failed", "batch", seq, "kind", errs.KindOf(err).String(), "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return sum, ctx.Err()
		}
	}
	return sum, nil
}

// LoadBatch runs one batch through a fresh session: connect, ensure schema,
// stage, commit, close. The session is closed on every path.
func (d *Driver) LoadBatch(ctx context.Context, seq int, rows []source.Row) (res BatchResult, err error) {
	records := make([]source.Record, 0, len(rows))
	for _, row := range rows {
		if row.Err != nil {
			res.Invalid++
			d.log.Warn("invalid record", "batch", seq, "line", row.Line, "error", row.Err)
			continue
		}
		records = append(records, row.Record)
	}
	if len(records) == 0 {
		return res, nil
	}
	b, err := loader.AsBatch(records)
	if err != nil {
		return res, err
	}

	sess, err := d.opts.Loader.Connect(ctx, d.opts.ConnectionString)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			d.log.Warn("failed to release session", "batch", seq, "error", cerr)
		}
	}()

	if err := sess.EnsureSchema(ctx); err != nil {
		return res, err
	}

	staged, err := sess.Stage(ctx, b)
	res.Skipped = staged.Skipped
	res.Invalid += len(staged.Invalid)
	for _, inv := range staged.Invalid {
		d.log.Warn("invalid record", "batch", seq, "error", inv)
	}
	if err != nil {
		return res, err
	}
	res.Staged = staged.Staged

	d.log.Debug("committing batch", "batch", seq, "pending", sess.Pending())
	n, err := sess.Commit(ctx)
	if err != nil {
		return res, err
	}
	res.Committed = n
	d.log.Info("batch committed", "batch", seq, "rows", n, "skipped", res.Skipped)
	return res, nil
}

// checkConfig runs before any batch so that a bad configuration fails the
// run even when the first batches hold no valid records.
func (d *Driver) checkConfig() error {
	if d.opts.ConnectionString == "" && d.opts.Loader.ConnectionString() == "" {
		return errs.New(errs.Configuration, "run", fmt.Errorf("no connection string configured"))
	}
	return d.opts.Loader.CheckKeys()
}

// fatalRowError returns the first row error that ends the input.
func fatalRowError(rows []source.Row) error {
	for _, row := range rows {
		if row.Err != nil && !errs.Is(row.Err, errs.Validation) {
			return row.Err
		}
	}
	return nil
}
