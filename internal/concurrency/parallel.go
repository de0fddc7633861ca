package concurrency

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny inputs on one goroutine.
const minChunk = 16

// Workers maps an n_jobs setting to a worker count: -1 (or any negative
// value) means one per CPU, 0 means 1.
func Workers(nJobs int) int {
	switch {
	case nJobs < 0:
		return runtime.GOMAXPROCS(0)
	case nJobs == 0:
		return 1
	}
	return nJobs
}

// ParallelFor splits [0, n) into contiguous chunks and runs fn on them with at
// most Workers(nJobs) goroutines. Chunks never overlap, so fn may write to
// per-index slots without locking. The first error is returned; a panic inside
// fn is recovered and returned as an error.
func ParallelFor(n, nJobs int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers := Workers(nJobs)
	if workers == 1 || n <= minChunk {
		return Guard(func() error { return fn(0, n) })
	}

	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return Guard(func() error { return fn(lo, hi) })
		})
	}
	return g.Wait()
}

// Guard runs fn on the calling goroutine and turns a panic into an error.
// An error panic value is returned as is.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.New(fmt.Sprint(r))
		}
	}()
	return fn()
}
