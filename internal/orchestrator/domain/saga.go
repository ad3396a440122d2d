package domain

import "context"

type SagaState string

const (
	StateStarted      SagaState = "started"
	StateCompleted    SagaState = "completed"
	StateCompensating SagaState = "compensating"
	StateCanceled     SagaState = "canceled"
)

// Step is one local write of a saga. Undo reverses Do and must tolerate
// being called for a write that only partly happened; nil means nothing to undo.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

type Saga struct {
	OrderID string
	State   SagaState
	Done    []string
	Failed  string
}
