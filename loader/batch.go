package loader

import (
	"fmt"

	"github.com/andys/moviesync/errs"
	"github.com/andys/moviesync/source"
)

// RecordBatch is the input to Session.Stage: either a Single record or
// Many records. It is sealed; build one with Single, Many or AsBatch.
type RecordBatch interface {
	records() []source.Record
}

// Single is a batch of one record.
type Single struct {
	Record source.Record
}

func (s Single) records() []source.Record { return []source.Record{s.Record} }

// Many is an ordered batch of records.
type Many []source.Record

func (m Many) records() []source.Record { return m }

// Len returns the number of records in b.
func Len(b RecordBatch) int {
	if b == nil {
		return 0
	}
	return len(b.records())
}

// AsBatch validates decoded data at the boundary. It accepts a mapping or
// a sequence of mappings and fails with errs.Validation otherwise.
func AsBatch(v any) (RecordBatch, error) {
	switch t := v.(type) {
	case source.Record:
		return Single{Record: t}, nil
	case map[string]any:
		return Single{Record: t}, nil
	case []source.Record:
		return Many(t), nil
	case []map[string]any:
		out := make(Many, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make(Many, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errs.Errorf(errs.Validation, "stage", "element %d of type %T is not a mapping", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, errs.New(errs.Validation, "stage", fmt.Errorf("data must be a mapping or a sequence of mappings, got %T", v))
	}
}
