// Package batch groups a sequence into bounded, ordered chunks.
package batch

import "iter"

// Of yields consecutive chunks of exactly size items from seq, the last
// chunk holding whatever remains. A size <= 0 yields the whole input as a
// single chunk. Empty chunks are never yielded, and each yielded slice is
// freshly allocated so consumers may retain it.
func Of[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		var chunk []T
		if size > 0 {
			chunk = make([]T, 0, size)
		}
		for item := range seq {
			chunk = append(chunk, item)
			if size > 0 && len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}
