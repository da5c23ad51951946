package sagas

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaStep represents a single step in a saga
type SagaStep[T any] struct {
	Name       string
	Execute    func(ctx context.Context, data *T) error
	Compensate func(ctx context.Context, data *T) error
}

// SagaState represents the current state of a saga execution
type SagaState string

const (
	SagaStatePending            SagaState = "PENDING"
	SagaStateRunning            SagaState = "RUNNING"
	SagaStateCompleted          SagaState = "COMPLETED"
	SagaStateFailed             SagaState = "FAILED"
	SagaStateCompensating       SagaState = "COMPENSATING"
	SagaStateCompensated        SagaState = "COMPENSATED"
	SagaStateCompensationFailed SagaState = "COMPENSATION_FAILED"
)

// StepError reports the step that failed and, when compensation ran and
// failed, the compensation error.
type StepError struct {
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("step %s failed: %v; compensation failed: %v", e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.CompensationErr != nil {
		return []error{e.Err, e.CompensationErr}
	}
	return []error{e.Err}
}

// Saga runs steps in order and compensates completed steps in reverse
// order when a later step fails. Steps are never retried.
type Saga[T any] struct {
	id          string
	name        string
	steps       []SagaStep[T]
	state       SagaState
	currentStep int
	onStep      func(step string)
	logger      *zap.Logger
}

// NewSaga creates a new saga instance
func NewSaga[T any](name string, logger *zap.Logger) *Saga[T] {
	return &Saga[T]{
		id:     uuid.New().String(),
		name:   name,
		steps:  make([]SagaStep[T], 0),
		state:  SagaStatePending,
		logger: logger,
	}
}

// AddStep adds a step to the saga
func (s *Saga[T]) AddStep(step SagaStep[T]) *Saga[T] {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the saga. Compensation runs on a context that is not
// cancelled with ctx, so an abandoned caller still gets its cleanup.
func (s *Saga[T]) Execute(ctx context.Context, data *T) error {
	s.state = SagaStateRunning
	s.logger.Info("Starting saga execution",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	completed := 0
	for i, step := range s.steps {
		s.currentStep = i
		if s.onStep != nil {
			s.onStep(step.Name)
		}
		s.logger.Debug("Executing saga step",
			zap.String("saga_id", s.id),
			zap.String("step_name", step.Name),
			zap.Int("step_number", i+1),
		)

		if err := step.Execute(ctx, data); err != nil {
			s.state = SagaStateFailed
			s.logger.Warn("Saga step failed",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)

			if completed == 0 {
				return &StepError{Step: step.Name, Err: err}
			}

			if compErr := s.compensate(context.WithoutCancel(ctx), data, completed); compErr != nil {
				s.state = SagaStateCompensationFailed
				return &StepError{Step: step.Name, Err: err, CompensationErr: compErr}
			}
			s.state = SagaStateCompensated
			return &StepError{Step: step.Name, Err: err}
		}
		completed = i + 1
	}

	s.state = SagaStateCompleted
	s.logger.Info("Saga completed successfully",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("completed_steps", completed),
	)
	return nil
}

// compensate runs compensation logic in reverse order. Every compensation
// is attempted once; failures are joined.
func (s *Saga[T]) compensate(ctx context.Context, data *T, steps int) error {
	s.state = SagaStateCompensating
	s.logger.Info("Starting saga compensation",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("steps_to_compensate", steps),
	)

	var errs []error
	for i := steps - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if s.onStep != nil {
			s.onStep("compensate:" + step.Name)
		}
		if err := step.Compensate(ctx, data); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetState returns the current state of the saga
func (s *Saga[T]) GetState() SagaState {
	return s.state
}

// GetID returns the saga ID
func (s *Saga[T]) GetID() string {
	return s.id
}

// GetCurrentStep returns the current step index
func (s *Saga[T]) GetCurrentStep() int {
	return s.currentStep
}

// SagaBuilder provides a fluent interface for building sagas
type SagaBuilder[T any] struct {
	saga *Saga[T]
}

// NewSagaBuilder creates a new saga builder
func NewSagaBuilder[T any](name string, logger *zap.Logger) *SagaBuilder[T] {
	return &SagaBuilder[T]{
		saga: NewSaga[T](name, logger),
	}
}

// WithStep adds a step to the saga
func (b *SagaBuilder[T]) WithStep(name string, execute func(context.Context, *T) error) *SagaBuilder[T] {
	b.saga.AddStep(SagaStep[T]{
		Name:    name,
		Execute: execute,
	})
	return b
}

// WithCompensableStep adds a step with compensation logic
func (b *SagaBuilder[T]) WithCompensableStep(
	name string,
	execute func(context.Context, *T) error,
	compensate func(context.Context, *T) error,
) *SagaBuilder[T] {
	b.saga.AddStep(SagaStep[T]{
		Name:       name,
		Execute:    execute,
		Compensate: compensate,
	})
	return b
}

// OnStep registers a callback invoked as each step or compensation starts
func (b *SagaBuilder[T]) OnStep(fn func(step string)) *SagaBuilder[T] {
	b.saga.onStep = fn
	return b
}

// WithID overrides the generated saga ID
func (b *SagaBuilder[T]) WithID(id string) *SagaBuilder[T] {
	b.saga.id = id
	return b
}

// Build returns the constructed saga
func (b *SagaBuilder[T]) Build() *Saga[T] {
	return b.saga
}
