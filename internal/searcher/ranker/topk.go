package ranker

import "container/heap"

// topK keeps the k best hits in a min-heap whose root is the worst kept hit,
// then drains it back into best-first order.
func topK(scores Scores, k int) []hit {
	h := &hitHeap{}
	heap.Init(h)
	for ord, score := range scores {
		candidate := hit{ord: ord, score: score}
		if h.Len() < k {
			heap.Push(h, candidate)
			continue
		}
		if candidate.before((*h)[0]) {
			(*h)[0] = candidate
			heap.Fix(h, 0)
		}
	}
	result := make([]hit, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(hit)
	}
	return result
}

type hitHeap []hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool { return h[j].before(h[i]) }

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x interface{}) {
	*h = append(*h, x.(hit))
}

func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
