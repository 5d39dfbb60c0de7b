// Package chunker splits call lists into near-equal batches.
package chunker

// Sizes returns the chunk sizes Balanced would produce for n items.
// It uses the fewest chunks that respect maxSize, k = ceil(n / maxSize),
// and spreads n across them so sizes are ceil(n/k) or ceil(n/k)-1,
// larger chunks first.
func Sizes(n, maxSize int) []int {
	if n <= 0 {
		return nil
	}
	if maxSize < 1 {
		maxSize = 1
	}

	k := ceilDiv(n, maxSize)
	base, extra := n/k, n%k

	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

// Balanced partitions items into contiguous chunks of at most maxSize items,
// spreading the load so no small trailing chunk is left behind.
// The returned chunks share the backing array of items but cannot be
// appended into each other.
func Balanced[T any](items []T, maxSize int) [][]T {
	sizes := Sizes(len(items), maxSize)
	chunks := make([][]T, 0, len(sizes))

	start := 0
	for _, size := range sizes {
		end := start + size
		chunks = append(chunks, items[start:end:end])
		start = end
	}
	return chunks
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
