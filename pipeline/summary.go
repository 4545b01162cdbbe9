package pipeline

import (
	"log/slog"
	"time"

	"github.com/andys/moviesync/errs"
)

// Failure is one batch that contributed no rows.
type Failure struct {
	Batch int
	Kind  errs.Kind
	Err   error
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	Batches   int // attempted
	Staged    int // records added to a pending-write set
	Skipped   int // records that already existed
	Committed int // rows persisted
	Invalid   int // records rejected by validation
	Failures  []Failure
	Elapsed   time.Duration
}

// Failed returns the number of failed batches.
func (s *Summary) Failed() int { return len(s.Failures) }

// Log writes the summary for operators: one line with the counts and one
// line per failed batch.
func (s *Summary) Log(logger *slog.Logger) {
	for _, f := range s.Failures {
		logger.Error("batch failed", "batch", f.Batch, "kind", f.Kind.String(), "error", f.Err)
	}
	logger.Info("run finished",
		"run_id", s.RunID,
		"attempted", s.Batches,
		"staged", s.Staged,
		"skipped", s.Skipped,
		"committed", s.Committed,
		"invalid", s.Invalid,
		"failed", s.Failed(),
		"elapsed", s.Elapsed.Truncate(time.Millisecond),
	)
}

func (s *Summary) add(r BatchResult) {
	s.Batches++
	s.Staged += r.Staged
	s.Skipped += r.Skipped
	s.Committed += r.Committed
	s.Invalid += r.Invalid
}
