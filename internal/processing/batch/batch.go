// Package batch applies a stage function to the records of a batch, one at a time.
package batch

import (
	"context"
	"errors"
)

// OutcomeKind tags the result of applying a stage to one item.
type OutcomeKind int

const (
	// OutcomeContinue keeps the (possibly updated) item.
	OutcomeContinue OutcomeKind = iota
	// OutcomeSkip keeps the item; the stage did not apply to it.
	OutcomeSkip
	// OutcomeDrop removes the item from the result.
	OutcomeDrop
	// OutcomeFatal aborts the batch.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeSkip:
		return "skip"
	case OutcomeDrop:
		return "drop"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one stage invocation.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

// Continue keeps v.
func Continue[T any](v T) Outcome[T] { return Outcome[T]{Kind: OutcomeContinue, Value: v} }

// Skip keeps v unchanged by the stage.
func Skip[T any](v T) Outcome[T] { return Outcome[T]{Kind: OutcomeSkip, Value: v} }

// Drop removes the item from the batch result.
func Drop[T any]() Outcome[T] { return Outcome[T]{Kind: OutcomeDrop} }

// Fatal aborts the batch with err.
func Fatal[T any](err error) Outcome[T] { return Outcome[T]{Kind: OutcomeFatal, Err: err} }

// StageFunc processes one item.
type StageFunc[T any] func(ctx context.Context, item T) Outcome[T]

// ErrNilFatal is returned when a stage reports OutcomeFatal without an error.
var ErrNilFatal = errors.New("stage aborted the batch without an error")

// Run applies stage to items strictly in order. The first fatal outcome stops the
// run and its error is returned; later items are never passed to stage.
// Dropped items are left out of the result.
func Run[T any](ctx context.Context, items []T, stage StageFunc[T]) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		res := stage(ctx, item)
		switch res.Kind {
		case OutcomeFatal:
			if res.Err == nil {
				return nil, ErrNilFatal
			}
			return nil, res.Err
		case OutcomeDrop:
			continue
		default:
			out = append(out, res.Value)
		}
	}
	return out, nil
}
