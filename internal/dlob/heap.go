package dlob

// nodeHeap orders book nodes by effective price with a stable tiebreaker:
// ascending posting slot, then ascending order ID. Bids are a max-heap,
// asks a min-heap. Used with container/heap during the tick to produce the
// sorted sides that get published.
type nodeHeap struct {
	nodes []*Node
	bids  bool
}

func (h *nodeHeap) Len() int { return len(h.nodes) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	switch {
	case a.Price.GT(b.Price):
		return h.bids
	case a.Price.LT(b.Price):
		return !h.bids
	}
	if a.Order.Slot != b.Order.Slot {
		return a.Order.Slot < b.Order.Slot
	}
	return a.Order.OrderID < b.Order.OrderID
}

func (h *nodeHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
}

func (h *nodeHeap) Push(x any) {
	h.nodes = append(h.nodes, x.(*Node))
}

func (h *nodeHeap) Pop() any {
	old := h.nodes
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.nodes = old[:n-1]
	return x
}
