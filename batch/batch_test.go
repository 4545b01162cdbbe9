package batch

import (
	"iter"
	"slices"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/frankban/quicktest"
)

func collect[T any](seq iter.Seq[[]T]) [][]T {
	var out [][]T
	for b := range seq {
		out = append(out, b)
	}
	return out
}

func TestOf_Sizes(t *testing.T) {
	c := quicktest.New(t)
	faker := gofakeit.New(7)

	for n := 0; n <= 23; n++ {
		items := make([]string, n)
		for i := range items {
			items[i] = faker.MovieName()
		}
		for size := 1; size <= 7; size++ {
			batches := collect(Of(slices.Values(items), size))
			c.Assert(batches, quicktest.HasLen, (n+size-1)/size, quicktest.Commentf("n=%d size=%d", n, size))

			var flat []string
			for i, b := range batches {
				c.Assert(len(b) > 0, quicktest.IsTrue)
				if i < len(batches)-1 {
					c.Assert(b, quicktest.HasLen, size)
				} else {
					c.Assert(len(b) <= size, quicktest.IsTrue)
				}
				flat = append(flat, b...)
			}
			if n == 0 {
				c.Assert(flat, quicktest.IsNil)
				continue
			}
			c.Assert(flat, quicktest.DeepEquals, items)
		}
	}
}

func TestOf_Unbounded(t *testing.T) {
	c := quicktest.New(t)
	items := []int{1, 2, 3, 4, 5}
	for _, size := range []int{0, -1} {
		batches := collect(Of(slices.Values(items), size))
		c.Assert(batches, quicktest.DeepEquals, [][]int{items})
	}
	c.Assert(collect(Of(slices.Values([]int{}), 0)), quicktest.HasLen, 0)
}

func TestOf_EarlyStop(t *testing.T) {
	c := quicktest.New(t)
	seen := 0
	for b := range Of(slices.Values([]int{1, 2, 3, 4, 5, 6}), 2) {
		seen++
		c.Assert(b, quicktest.HasLen, 2)
		if seen == 2 {
			break
		}
	}
	c.Assert(seen, quicktest.Equals, 2)
}

func TestOf_BatchesAreIndependent(t *testing.T) {
	c := quicktest.New(t)
	batches := collect(Of(slices.Values([]int{1, 2, 3, 4}), 2))
	batches[0][0] = 99
	c.Assert(batches[1], quicktest.DeepEquals, []int{3, 4})
}
