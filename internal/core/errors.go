package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrUnsupportedMetric = errors.New("unsupported metric")
	ErrIndexNotBuilt     = errors.New("index not built")
	ErrInvalidShape      = errors.New("invalid shape")
)

// UnsupportedMetricError indicates a backend cannot use the requested metric.
type UnsupportedMetricError struct {
	Backend string
	Metric  string
	Reason  string
}

func (e *UnsupportedMetricError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: unsupported metric %q: %s", e.Backend, e.Metric, e.Reason)
	}
	return fmt.Sprintf("%s: unsupported metric %q", e.Backend, e.Metric)
}

func (e *UnsupportedMetricError) Is(target error) bool {
	return target == ErrUnsupportedMetric
}

// NewUnsupportedMetricError creates an unsupported metric error.
func NewUnsupportedMetricError(backend, metric, reason string) error {
	return &UnsupportedMetricError{Backend: backend, Metric: metric, Reason: reason}
}

// IndexNotBuiltError indicates Query was called before a successful Build.
type IndexNotBuiltError struct {
	Backend string
}

func (e *IndexNotBuiltError) Error() string {
	return fmt.Sprintf("%s: query called before build", e.Backend)
}

func (e *IndexNotBuiltError) Is(target error) bool {
	return target == ErrIndexNotBuilt
}

// NewIndexNotBuiltError creates an index not built error.
func NewIndexNotBuiltError(backend string) error {
	return &IndexNotBuiltError{Backend: backend}
}

// InvalidShapeError indicates input dimensions or k do not fit the index.
type InvalidShapeError struct {
	Backend   string
	Operation string
	Field     string
	Got       int
	Limit     int
	Message   string
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("%s: %s: invalid %s=%d: %s (limit %d)",
		e.Backend, e.Operation, e.Field, e.Got, e.Message, e.Limit)
}

func (e *InvalidShapeError) Is(target error) bool {
	return target == ErrInvalidShape
}

// NewInvalidShapeError creates an invalid shape error.
func NewInvalidShapeError(backend, operation, field string, got, limit int, message string) error {
	return &InvalidShapeError{
		Backend:   backend,
		Operation: operation,
		Field:     field,
		Got:       got,
		Limit:     limit,
		Message:   message,
	}
}
