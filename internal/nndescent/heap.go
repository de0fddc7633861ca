package nndescent

import (
	"math"
	"sort"
)

// neighborHeap is a fixed-size max-heap of (index, distance) pairs. The root
// holds the current worst neighbor, so a push only succeeds for candidates
// strictly closer than it. Empty slots hold index -1 at +Inf.
type neighborHeap struct {
	idx   []int
	dist  []float64
	isNew []bool
}

func newNeighborHeap(size int) neighborHeap {
	h := neighborHeap{
		idx:   make([]int, size),
		dist:  make([]float64, size),
		isNew: make([]bool, size),
	}
	for i := range h.idx {
		h.idx[i] = -1
		h.dist[i] = math.Inf(1)
	}
	return h
}

// worst is the distance a candidate has to beat.
func (h *neighborHeap) worst() float64 {
	if len(h.dist) == 0 {
		return math.Inf(-1)
	}
	return h.dist[0]
}

func (h *neighborHeap) contains(j int) bool {
	for _, v := range h.idx {
		if v == j {
			return true
		}
	}
	return false
}

// push inserts j unless it is no closer than the root or already present.
func (h *neighborHeap) push(j int, d float64, isNew bool) bool {
	if len(h.idx) == 0 || !(d < h.dist[0]) || h.contains(j) {
		return false
	}
	h.idx[0], h.dist[0], h.isNew[0] = j, d, isNew
	h.siftDown(0)
	return true
}

func (h *neighborHeap) siftDown(i int) {
	n := len(h.idx)
	for {
		largest := i
		l, r := 2*i+1, 2*i+2
		if l < n && h.dist[l] > h.dist[largest] {
			largest = l
		}
		if r < n && h.dist[r] > h.dist[largest] {
			largest = r
		}
		if largest == i {
			return
		}
		h.idx[i], h.idx[largest] = h.idx[largest], h.idx[i]
		h.dist[i], h.dist[largest] = h.dist[largest], h.dist[i]
		h.isNew[i], h.isNew[largest] = h.isNew[largest], h.isNew[i]
		i = largest
	}
}

// sortedInto writes the heap contents ordered by (distance, index) into idx
// and dist. Empty slots come last as -1 / -1.
func (h *neighborHeap) sortedInto(idx []int, dist []float64) {
	order := make([]int, len(h.idx))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := h.idx[order[a]], h.idx[order[b]]
		if (ia < 0) != (ib < 0) {
			return ib < 0
		}
		da, db := h.dist[order[a]], h.dist[order[b]]
		if da != db {
			return da < db
		}
		return ia < ib
	})
	for out, slot := range order {
		if h.idx[slot] < 0 {
			idx[out], dist[out] = -1, -1
			continue
		}
		idx[out], dist[out] = h.idx[slot], h.dist[slot]
	}
}

// candidate is a frontier entry during graph search.
type candidate struct {
	idx  int
	dist float64
}

// frontier is a min-heap of candidates for container/heap.
type frontier []candidate

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].idx < f[j].idx
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(candidate)) }
func (f *frontier) Pop() any {
	old := *f
	c := old[len(old)-1]
	*f = old[:len(old)-1]
	return c
}
