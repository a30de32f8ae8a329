package graph

import (
	"container/heap"
	"slices"

	"github.com/hupe1980/vecgo/distance"
)

// neighbor is one candidate in a row's top-K search.
type neighbor struct {
	index      int
	similarity float32
}

// better orders neighbors nearest first, breaking ties by ascending index.
func better(a, b neighbor) bool {
	if a.similarity != b.similarity {
		return a.similarity > b.similarity
	}
	return a.index < b.index
}

// worstFirst is a heap whose root is the least preferred neighbor kept so far.
type worstFirst []neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searcher finds exact top-K neighbors for one row at a time.
// A searcher is not safe for concurrent use; each worker owns one.
type searcher struct {
	vectors [][]float32
	k       int
	heap    worstFirst
}

func newSearcher(vectors [][]float32, k int) *searcher {
	return &searcher{
		vectors: vectors,
		k:       k,
		heap:    make(worstFirst, 0, k),
	}
}

// search returns row i's neighbors with similarity at least minSimilarity,
// nearest first. Vectors are unit length, so the dot product is the cosine similarity.
func (s *searcher) search(i int, minSimilarity float32) []neighbor {
	s.heap = s.heap[:0]
	query := s.vectors[i]

	for j, v := range s.vectors {
		if j == i {
			continue
		}
		cand := neighbor{index: j, similarity: distance.Dot(query, v)}
		if len(s.heap) < s.k {
			heap.Push(&s.heap, cand)
			continue
		}
		if better(cand, s.heap[0]) {
			s.heap[0] = cand
			heap.Fix(&s.heap, 0)
		}
	}

	out := make([]neighbor, 0, len(s.heap))
	for _, n := range s.heap {
		if n.similarity >= minSimilarity {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b neighbor) int {
		if better(a, b) {
			return -1
		}
		if better(b, a) {
			return 1
		}
		return 0
	})
	return out
}
