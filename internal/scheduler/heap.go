package scheduler

import (
	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
)

// readyHeap is a min-heap of ready node IDs ordered by source path, so
// dispatch order among equally-ready nodes is deterministic.
type readyHeap struct {
	g   *graph.Graph
	ids []content.ID
}

func (h *readyHeap) Len() int { return len(h.ids) }

func (h *readyHeap) Less(i, j int) bool {
	return h.g.Node(h.ids[i]).Path < h.g.Node(h.ids[j]).Path
}

func (h *readyHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *readyHeap) Push(x any) { h.ids = append(h.ids, x.(content.ID)) }

func (h *readyHeap) Pop() any {
	last := len(h.ids) - 1
	id := h.ids[last]
	h.ids = h.ids[:last]
	return id
}
