package metric

import (
	"sort"
	"strings"
)

var registry = map[string]*Compiled{}

var aliases = map[string]string{
	"l2":        "euclidean",
	"l1":        "manhattan",
	"cityblock": "manhattan",
	"taxicab":   "manhattan",
	"linf":      "chebyshev",
	"infinity":  "chebyshev",
}

func register(name string, fn DistanceFunc, trueMetric bool) {
	registry[name] = &Compiled{name: name, fn: fn, trueMetric: trueMetric}
}

func init() {
	register("euclidean", Euclidean, true)
	register("sqeuclidean", SquaredEuclidean, false)
	register("manhattan", Manhattan, true)
	register("chebyshev", Chebyshev, true)
	register("cosine", Cosine, false)
	register("angular", Angular, true)
	register("correlation", Correlation, false)
	register("hamming", Hamming, true)
	register("canberra", Canberra, true)
	register("braycurtis", BrayCurtis, false)
}

// Canonical maps a metric name or alias to its registered spelling.
func Canonical(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	_, ok := registry[n]
	return n, ok
}

// Lookup returns the compiled kernel registered under name or an alias.
func Lookup(name string) (*Compiled, bool) {
	n, ok := Canonical(name)
	if !ok {
		return nil, false
	}
	return registry[n], true
}

// Names lists the canonical names of all registered metrics.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
