package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"gopkg.in/yaml.v3"
)

// jsonRows streams a top-level array element by element. A top-level
// object is a single row.
func (r *Reader) jsonRows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		dec := json.NewDecoder(r.file)
		dec.UseNumber()

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(Row{Line: 1, Err: fmt.Errorf("failed to decode %s: %w", r.path, err)})
			return
		}

		switch tok {
		case json.Delim('{'):
			obj, err := decodeObjectBody(dec)
			if err != nil {
				yield(Row{Line: 1, Err: fmt.Errorf("failed to decode %s: %w", r.path, err)})
				return
			}
			yield(Row{Line: 1, Record: obj})
			return
		case json.Delim('['):
		default:
			yield(invalidRow(1, "top-level value %v is neither an object nor an array", tok))
			return
		}

		for n := 1; dec.More(); n++ {
			var v any
			if err := dec.Decode(&v); err != nil {
				yield(Row{Line: n, Err: fmt.Errorf("failed to decode element %d of %s: %w", n, r.path, err)})
				return
			}
			if !yield(toRow(n, normalizeJSON(v))) {
				return
			}
		}
		if _, err := dec.Token(); err != nil {
			yield(Row{Err: fmt.Errorf("failed to decode %s: %w", r.path, err)})
		}
	}
}

func decodeObjectBody(dec *json.Decoder) (Record, error) {
	rec := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		rec[key] = normalizeJSON(v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}

// yamlRows decodes the whole document. A mapping is one row, a sequence is
// one row per element.
func (r *Reader) yamlRows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		var doc any
		if err := yaml.NewDecoder(r.file).Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			yield(Row{Line: 1, Err: fmt.Errorf("failed to decode %s: %w", r.path, err)})
			return
		}

		switch v := doc.(type) {
		case []any:
			for i, item := range v {
				if !yield(toRow(i+1, item)) {
					return
				}
			}
		default:
			yield(toRow(1, v))
		}
	}
}

func toRow(n int, v any) Row {
	switch m := v.(type) {
	case map[string]any:
		return Row{Line: n, Record: Record(m)}
	case map[any]any:
		rec := make(Record, len(m))
		for k, val := range m {
			rec[fmt.Sprint(k)] = val
		}
		return Row{Line: n, Record: rec}
	default:
		return invalidRow(n, "element of type %T is not a mapping", v)
	}
}

// normalizeJSON turns json.Number into int64 when integral, float64 otherwise.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeJSON(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeJSON(val)
		}
		return t
	default:
		return v
	}
}
