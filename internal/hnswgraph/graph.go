// Package hnswgraph builds a hierarchical navigable small world graph whose
// layout depends only on the input vectors and the seed.
//
// Nodes are inserted in index order, levels come from a seeded PCG stream,
// the entry point is the first node to reach the top level and every
// neighbor list is a slice ordered by (distance, id). Two builds over the
// same rows with the same Config produce the same graph, and a query always
// walks it the same way.
package hnswgraph

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/coder/hnsw"
)

const (
	DefaultM              = 16
	DefaultMl             = 0.25
	DefaultEfConstruction = 200
	DefaultEfSearch       = 64

	// maxLevel bounds the layer count whatever Ml is.
	maxLevel = 16
)

var (
	ErrEmptyData     = errors.New("hnswgraph: no vectors")
	ErrBadParameter  = errors.New("hnswgraph: invalid parameter")
	ErrDimension     = errors.New("hnswgraph: dimension mismatch")
	ErrRaggedVectors = errors.New("hnswgraph: vectors differ in length")
)

// Config tunes construction.
type Config struct {
	// M is the neighbor budget on upper layers; layer 0 keeps 2*M.
	M int
	// Ml is the probability that a node is promoted one more layer.
	Ml float64
	// EfConstruction is the candidate list size used while inserting.
	EfConstruction int
	// Distance navigates the graph; hnsw.EuclideanDistance when nil.
	Distance hnsw.DistanceFunc
	Seed     uint64
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.Ml <= 0 {
		c.Ml = DefaultMl
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = DefaultEfConstruction
	}
	if c.Distance == nil {
		c.Distance = hnsw.EuclideanDistance
	}
	return c
}

// Candidate is a node and its distance to the query.
type Candidate struct {
	ID   int
	Dist float32
}

func less(a, b Candidate) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.ID < b.ID
}

// Graph is immutable once Build returns and safe for concurrent search
// through separate Searchers.
type Graph struct {
	cfg     Config
	vectors [][]float32
	// links[node][layer] holds the neighbor ids of node on that layer.
	links [][][]int
	entry int
	top   int
}

// Build inserts every vector in index order.
func Build(vectors [][]float32, cfg Config) (*Graph, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyData
	}
	if cfg.M == 1 || cfg.Ml >= 1 {
		return nil, fmt.Errorf("%w: m=%d ml=%v", ErrBadParameter, cfg.M, cfg.Ml)
	}
	dims := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dims {
			return nil, ErrRaggedVectors
		}
	}
	cfg = cfg.withDefaults()

	g := &Graph{
		cfg:     cfg,
		vectors: vectors,
		links:   make([][][]int, len(vectors)),
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x686e7377))
	s := g.NewSearcher()
	for id := range vectors {
		g.insert(s, id, g.drawLevel(rng))
	}
	return g, nil
}

func (g *Graph) drawLevel(rng *rand.Rand) int {
	level := 0
	for level < maxLevel && rng.Float64() < g.cfg.Ml {
		level++
	}
	return level
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.vectors) }

// Levels is the number of layers.
func (g *Graph) Levels() int { return g.top + 1 }

// Neighbors returns a copy of a node's neighbor ids on a layer.
func (g *Graph) Neighbors(id, layer int) []int {
	if layer >= len(g.links[id]) {
		return nil
	}
	return append([]int(nil), g.links[id][layer]...)
}

func (g *Graph) distance(q []float32, id int) float32 {
	d := g.cfg.Distance(q, g.vectors[id])
	if d != d {
		return float32(math.Inf(1))
	}
	return d
}

func (g *Graph) maxLinks(layer int) int {
	if layer == 0 {
		return 2 * g.cfg.M
	}
	return g.cfg.M
}

func (g *Graph) insert(s *Searcher, id, level int) {
	g.links[id] = make([][]int, level+1)
	if id == 0 {
		g.entry, g.top = 0, level
		return
	}

	q := g.vectors[id]
	ep := Candidate{ID: g.entry, Dist: g.distance(q, g.entry)}
	for layer := g.top; layer > level; layer-- {
		ep = s.greedy(q, ep, layer)
	}

	for layer := min(level, g.top); layer >= 0; layer-- {
		found := s.searchLayer(q, []Candidate{ep}, g.cfg.EfConstruction, layer)
		selected := g.selectNeighbors(found, g.cfg.M)

		own := make([]int, len(selected))
		for i, c := range selected {
			own[i] = c.ID
		}
		g.links[id][layer] = own

		for _, c := range selected {
			g.connect(c.ID, id, layer)
		}
		ep = found[0]
	}

	if level > g.top {
		g.entry, g.top = id, level
	}
}

// connect links from to `to` on layer, pruning from's list back to its budget.
func (g *Graph) connect(from, to, layer int) {
	list := append(g.links[from][layer], to)
	if len(list) <= g.maxLinks(layer) {
		g.links[from][layer] = list
		return
	}

	v := g.vectors[from]
	cands := make([]Candidate, len(list))
	for i, id := range list {
		cands[i] = Candidate{ID: id, Dist: g.distance(v, id)}
	}
	sortCandidates(cands)
	kept := g.selectNeighbors(cands, g.maxLinks(layer))
	list = list[:0]
	for _, c := range kept {
		list = append(list, c.ID)
	}
	g.links[from][layer] = list
}

// selectNeighbors applies the diversity heuristic to candidates sorted by
// (distance, id): a candidate is kept when it is closer to the base than to
// every neighbor already kept. Discarded candidates fill any remaining slots
// in order.
func (g *Graph) selectNeighbors(cands []Candidate, m int) []Candidate {
	if len(cands) <= m {
		return append([]Candidate(nil), cands...)
	}
	kept := make([]Candidate, 0, m)
	var skipped []Candidate
	for _, c := range cands {
		if len(kept) == m {
			break
		}
		diverse := true
		for _, k := range kept {
			if g.distance(g.vectors[c.ID], k.ID) < c.Dist {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			skipped = append(skipped, c)
		}
	}
	for _, c := range skipped {
		if len(kept) == m {
			break
		}
		kept = append(kept, c)
	}
	sortCandidates(kept)
	return kept
}
