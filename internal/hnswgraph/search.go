package hnswgraph

import (
	"container/heap"
	"fmt"
	"slices"
)

// Searcher carries the scratch state of one goroutine's searches.
type Searcher struct {
	g       *Graph
	visited []uint32
	stamp   uint32
	near    nearHeap
	far     farHeap
}

// NewSearcher returns a Searcher over g. A Searcher is not safe for
// concurrent use.
func (g *Graph) NewSearcher() *Searcher {
	return &Searcher{g: g, visited: make([]uint32, len(g.vectors))}
}

// Search returns up to k nodes nearest to q, ordered by (distance, id),
// exploring ef candidates on the bottom layer. ef below k is raised to k.
func (s *Searcher) Search(q []float32, k, ef int) ([]Candidate, error) {
	g := s.g
	if len(q) != len(g.vectors[0]) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(q), len(g.vectors[0]))
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k=%d", ErrBadParameter, k)
	}

	ep := Candidate{ID: g.entry, Dist: g.distance(q, g.entry)}
	for layer := g.top; layer > 0; layer-- {
		ep = s.greedy(q, ep, layer)
	}
	found := s.searchLayer(q, []Candidate{ep}, max(ef, k), 0)
	if len(found) > k {
		found = found[:k]
	}
	return found, nil
}

func (s *Searcher) reset() {
	s.stamp++
	if s.stamp == 0 {
		clear(s.visited)
		s.stamp = 1
	}
}

func (s *Searcher) visit(id int) bool {
	if s.visited[id] == s.stamp {
		return false
	}
	s.visited[id] = s.stamp
	return true
}

// greedy walks layer toward q until no neighbor is closer.
func (s *Searcher) greedy(q []float32, ep Candidate, layer int) Candidate {
	for moved := true; moved; {
		moved = false
		for _, id := range s.g.links[ep.ID][layer] {
			c := Candidate{ID: id, Dist: s.g.distance(q, id)}
			if less(c, ep) {
				ep, moved = c, true
			}
		}
	}
	return ep
}

// searchLayer is the best-first beam search over one layer. The result is
// sorted by (distance, id).
func (s *Searcher) searchLayer(q []float32, entries []Candidate, ef, layer int) []Candidate {
	s.reset()
	s.near = s.near[:0]
	s.far = s.far[:0]
	for _, e := range entries {
		if s.visit(e.ID) {
			heap.Push(&s.near, e)
			heap.Push(&s.far, e)
		}
	}
	for len(s.far) > ef {
		heap.Pop(&s.far)
	}

	for len(s.near) > 0 {
		c := heap.Pop(&s.near).(Candidate)
		if len(s.far) >= ef && less(s.far[0], c) {
			break
		}
		for _, id := range s.g.links[c.ID][layer] {
			if !s.visit(id) {
				continue
			}
			n := Candidate{ID: id, Dist: s.g.distance(q, id)}
			if len(s.far) < ef || less(n, s.far[0]) {
				heap.Push(&s.near, n)
				heap.Push(&s.far, n)
				if len(s.far) > ef {
					heap.Pop(&s.far)
				}
			}
		}
	}

	out := slices.Clone([]Candidate(s.far))
	sortCandidates(out)
	return out
}

func sortCandidates(cs []Candidate) {
	slices.SortFunc(cs, func(a, b Candidate) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
}

// nearHeap pops the closest candidate first.
type nearHeap []Candidate

func (h nearHeap) Len() int           { return len(h) }
func (h nearHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h nearHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nearHeap) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *nearHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// farHeap keeps the current results with the farthest on top.
type farHeap []Candidate

func (h farHeap) Len() int           { return len(h) }
func (h farHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h farHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farHeap) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *farHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}
