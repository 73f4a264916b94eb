// Package evaluator asks an external reasoning model to rate a task's
// difficulty. The engine treats it as slow and unreliable: results may
// arrive late or never.
package evaluator

import (
	"context"
	"time"

	"github.com/Asuura666/game-habits/game/reward"
)

// TaskPrompt is what the provider sees of a task.
type TaskPrompt struct {
	TaskID      int64
	Title       string
	Description string
	DueAt       *time.Time
}

// Evaluation is a provider's verdict.
type Evaluation struct {
	Tier      reward.Tier `json:"difficulty"`
	Reasoning string      `json:"reasoning"`
	Subtasks  []string    `json:"subtasks"`
}

// Equal reports whether two evaluations would store the same task state.
func (e Evaluation) Equal(o Evaluation) bool {
	if e.Tier != o.Tier || e.Reasoning != o.Reasoning || len(e.Subtasks) != len(o.Subtasks) {
		return false
	}
	for i := range e.Subtasks {
		if e.Subtasks[i] != o.Subtasks[i] {
			return false
		}
	}
	return true
}

// Provider evaluates one task.
type Provider interface {
	Evaluate(ctx context.Context, p TaskPrompt) (Evaluation, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, p TaskPrompt) (Evaluation, error)

func (f ProviderFunc) Evaluate(ctx context.Context, p TaskPrompt) (Evaluation, error) {
	return f(ctx, p)
}
