package metric

import (
	"fmt"

	"github.com/23skdu/knngraph/internal/core"
)

// Capability describes which metrics a backend accepts.
type Capability struct {
	Backend string
	// Names maps canonical metric names to the backend's own spelling.
	// A nil map accepts every registered name unchanged.
	Names map[string]string
	// Callables reports whether user distance functions are accepted.
	Callables bool
}

// Resolved is a metric descriptor bound to a backend.
type Resolved struct {
	// Descriptor is the metric as the caller named it.
	Descriptor string
	// BackendName is the backend's name for the metric.
	BackendName string
	Compiled    *Compiled
}

// Resolve binds a descriptor to a backend. Accepted descriptors are a metric
// name, a DistanceFunc or plain func(x, y []float64) float64, and a
// *Compiled. Plain functions are compiled here.
func Resolve(desc any, capability Capability) (*Resolved, error) {
	switch d := desc.(type) {
	case string:
		return resolveName(d, capability)
	case DistanceFunc:
		return resolveFunc(d, capability)
	case func(x, y []float64) float64:
		return resolveFunc(d, capability)
	case *Compiled:
		if d == nil {
			return nil, core.NewUnsupportedMetricError(capability.Backend, "<nil>", "nil compiled metric")
		}
		if !d.user {
			return resolveName(d.name, capability)
		}
		if !capability.Callables {
			return nil, core.NewUnsupportedMetricError(capability.Backend, d.name, "backend does not accept custom distance functions")
		}
		return &Resolved{Descriptor: d.name, BackendName: d.name, Compiled: d}, nil
	case nil:
		return nil, core.NewUnsupportedMetricError(capability.Backend, "<nil>", "no metric given")
	default:
		return nil, core.NewUnsupportedMetricError(capability.Backend, fmt.Sprintf("%T", desc), "unrecognised metric descriptor")
	}
}

func resolveName(name string, capability Capability) (*Resolved, error) {
	canonical, ok := Canonical(name)
	if !ok {
		return nil, core.NewUnsupportedMetricError(capability.Backend, name, "unknown metric name")
	}
	backendName := canonical
	if capability.Names != nil {
		backendName, ok = capability.Names[canonical]
		if !ok {
			return nil, core.NewUnsupportedMetricError(capability.Backend, name, "metric not available for this backend")
		}
	}
	return &Resolved{Descriptor: name, BackendName: backendName, Compiled: registry[canonical]}, nil
}

func resolveFunc(fn DistanceFunc, capability Capability) (*Resolved, error) {
	if fn == nil {
		return nil, core.NewUnsupportedMetricError(capability.Backend, "<nil>", "nil distance function")
	}
	if !capability.Callables {
		return nil, core.NewUnsupportedMetricError(capability.Backend, funcName(fn), "backend does not accept custom distance functions")
	}
	c, err := Compile(fn)
	if err != nil {
		return nil, err
	}
	return &Resolved{Descriptor: c.name, BackendName: c.name, Compiled: c}, nil
}
