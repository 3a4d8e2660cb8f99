package retriever

import "container/heap"

// scored pairs a corpus row with its similarity score.
type scored struct {
	row   int
	score float32
}

// worstFirst is a min-heap keeping the current top-k candidates, with the
// weakest candidate on top. A candidate is weaker when its score is lower,
// or on equal score when its row comes later in the corpus.
type worstFirst []scored

func (h worstFirst) Len() int { return len(h) }
func (h worstFirst) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].row > h[j].row
}
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// selectTopK returns the k best candidates ordered by descending score,
// ties broken by ascending corpus row. Partial selection: only k candidates
// are retained at any point.
func selectTopK(candidates []scored, k int) []scored {
	if k <= 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	h := make(worstFirst, 0, k)
	heap.Init(&h)
	for _, c := range candidates {
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		worst := h[0]
		better := c.score > worst.score || (c.score == worst.score && c.row < worst.row)
		if better {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	// Drain weakest-first, then reverse into rank order.
	out := make([]scored, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(scored)
	}
	return out
}
