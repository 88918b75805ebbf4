package effects

// expiryHeap orders effects by expiry tick, then insertion sequence.
type expiryHeap []*Effect

func less(a, b *Effect) bool {
	if a.Expires != b.Expires {
		return a.Expires < b.Expires
	}
	return a.seq < b.seq
}

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return less(h[i], h[j]) }

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*Effect)
	e.idx = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.idx = -1
	*h = old[:n-1]
	return e
}
