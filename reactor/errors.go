package reactor

import (
	"errors"
	"fmt"
)

var (
	ErrDisposed    = errors.New("reactor: expression disposed")
	ErrReentrant   = errors.New("reactor: expression is already evaluating")
	ErrUpdateLimit = errors.New("reactor: update limit exceeded during flush")
	ErrNilCallable = errors.New("reactor: nil callable")
)

type Phase string

const (
	PhaseEvaluate Phase = "evaluate"
	PhaseObserve  Phase = "observe"
	PhaseUpdate   Phase = "update"
)

// UpdateError reports a failed evaluation or observer call of one expression.
type UpdateError struct {
	ExpressionID uint64
	Phase        Phase
	Err          error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("expression %d: %s: %v", e.ExpressionID, e.Phase, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered while flushing.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
