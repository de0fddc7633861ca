package core

// Kind identifies a search strategy behind the KNN index facade.
type Kind string

const (
	// KindTreeExact searches a vantage-point tree (or scans exhaustively) and
	// returns exact neighbors.
	KindTreeExact Kind = "tree-exact"
	// KindGraphApproximate builds an NN-descent neighbor graph.
	KindGraphApproximate Kind = "nndescent"
	// KindHNSW searches a hierarchical navigable small world graph.
	KindHNSW Kind = "hnsw"
	// KindHashApproximate searches random-projection hash tables.
	KindHashApproximate Kind = "lsh"
)

// Kinds lists every supported strategy.
var Kinds = []Kind{KindTreeExact, KindGraphApproximate, KindHNSW, KindHashApproximate}

func (k Kind) String() string {
	return string(k)
}
