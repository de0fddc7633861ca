package metric

import (
	"errors"
	"reflect"
	"runtime"
	"sync"
	"unsafe"

	"github.com/23skdu/knngraph/internal/metrics"
)

// compiled artifacts keyed by function identity
var cache sync.Map

// Compile turns a user distance function into a Compiled kernel. Compiling
// the same function value again returns the same artifact.
//
// Artifacts are never evicted. A closure or method value created afresh for
// every call has a new identity each time and leaves one artifact behind per
// call; pass a top-level function or reuse one value.
func Compile(fn DistanceFunc) (*Compiled, error) {
	if fn == nil {
		return nil, errors.New("metric: cannot compile a nil function")
	}

	key := identity(fn)
	if c, ok := cache.Load(key); ok {
		metrics.MetricCompileCacheHitsTotal.Inc()
		return c.(*Compiled), nil
	}

	c := &Compiled{name: funcName(fn), fn: fn, trueMetric: true, user: true}
	actual, loaded := cache.LoadOrStore(key, c)
	if loaded {
		metrics.MetricCompileCacheHitsTotal.Inc()
	} else {
		metrics.MetricCompilationsTotal.Inc()
	}
	return actual.(*Compiled), nil
}

// identity is the address of the closure object behind fn. Two closures
// created from the same literal differ here even though they share code.
// The cache retains fn, so the address is never reused while cached.
func identity(fn DistanceFunc) uintptr {
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&fn)))
}

func funcName(fn DistanceFunc) string {
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return "func"
}
