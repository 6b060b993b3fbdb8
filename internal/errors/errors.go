// Package errors provides the defect taxonomy and retry helpers for the
// series cleaner. Row-level defects are recovered by filtering and counting;
// schema defects are fatal for a single series; IO errors are the only class
// worth retrying, since everything inside the pipeline is a deterministic
// function of input content.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Kind classifies an error for handling decisions.
type Kind string

const (
	// KindRowDefect marks a defect local to individual rows: unparseable
	// timestamp, invalid OHLC, stale run, out-of-session. Never fatal.
	KindRowDefect Kind = "row_defect"
	// KindSchemaDefect marks a missing required column or a wholly
	// unparseable time series. Fatal for the series, not the batch.
	KindSchemaDefect Kind = "schema_defect"
	// KindIO marks filesystem or database failures around the pipeline.
	KindIO Kind = "io"
	// KindConfig marks invalid configuration.
	KindConfig Kind = "configuration"
	// KindInternal marks unexpected internal failures.
	KindInternal Kind = "internal"
)

// ClassifiedError wraps an error with its classification and origin.
type ClassifiedError struct {
	Err       error
	Kind      Kind
	Component string
	Operation string
	Timestamp time.Time
}

// New creates a classified error.
func New(kind Kind, component, operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Err:       err,
		Kind:      kind,
		Component: component,
		Operation: operation,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaDefect creates a schema-defect error.
func NewSchemaDefect(component, operation string, err error) *ClassifiedError {
	return New(KindSchemaDefect, component, operation, err)
}

// NewIO creates an IO-class error.
func NewIO(component, operation string, err error) *ClassifiedError {
	return New(KindIO, component, operation, err)
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", ce.Component, ce.Kind, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is matches against other classified errors by kind.
func (ce *ClassifiedError) Is(target error) bool {
	if t, ok := target.(*ClassifiedError); ok {
		return ce.Kind == t.Kind
	}
	return errors.Is(ce.Err, target)
}

// KindOf returns the classification of err, or KindInternal when it carries
// none.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsSchemaDefect reports whether err is fatal for the series it came from.
func IsSchemaDefect(err error) bool {
	return KindOf(err) == KindSchemaDefect
}

// IsRetryable reports whether err belongs to the only retryable class.
func IsRetryable(err error) bool {
	return KindOf(err) == KindIO
}

// Retry executes op with exponential backoff for IO-class errors. Any other
// classification aborts immediately: row and schema defects are deterministic
// and retrying them cannot change the outcome.
func Retry(ctx context.Context, logger *slog.Logger, operation string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if logger != nil {
			logger.Warn("retryable operation failed",
				"operation", operation,
				"attempt", attempt,
				"error", err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(policy, ctx))
}
