package services

import (
	"context"
	"errors"
	"fmt"
)

type sagaStep struct {
	name string
	undo func(context.Context) error
}

// Saga records compensating actions for a multi-step provisioning flow as it
// proceeds. On failure the caller runs Rollback, which executes the
// compensations in reverse order and accumulates (instead of swallowing)
// their failures.
type Saga struct {
	steps []sagaStep
}

func NewSaga() *Saga {
	return &Saga{}
}

// Register appends a compensating action for a step that just succeeded.
func (s *Saga) Register(name string, undo func(context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, undo: undo})
}

// Rollback runs the registered compensations in reverse order. Every
// compensation is attempted even if earlier ones fail; the combined error is
// returned.
func (s *Saga) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensating %s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}
