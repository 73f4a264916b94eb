// Package workers holds the background jobs the scheduler drives.
package workers

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/evaluator"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/model"
)

// TaskStore is the slice of the engine the worker needs.
type TaskStore interface {
	PendingTasks(ctx context.Context, limit int) ([]model.Task, error)
	ReevaluateTaskReward(ctx context.Context, taskID int64, ev evaluator.Evaluation) (*engine.RewardResult, bool, error)
	MarkEvaluationFailed(ctx context.Context, taskID int64, cause error) error
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	Evaluated int64 `json:"evaluated"`
	Unchanged int64 `json:"unchanged"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// EvaluationWorker asks the difficulty provider about pending tasks and
// stores the answers.
type EvaluationWorker struct {
	tasks       TaskStore
	provider    evaluator.Provider
	batch       int
	concurrency int
	logger      *zap.Logger
}

func NewEvaluationWorker(tasks TaskStore, provider evaluator.Provider, batch, concurrency int, logger *zap.Logger) *EvaluationWorker {
	if batch <= 0 {
		batch = 20
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationWorker{
		tasks:       tasks,
		provider:    provider,
		batch:       batch,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Sweep evaluates one batch of pending tasks. A task whose provider call
// fails for good is marked failed and keeps its fallback reward; a task
// that loses a lock race stays pending for the next sweep.
func (w *EvaluationWorker) Sweep(ctx context.Context) (SweepStats, error) {
	tasks, err := w.tasks.PendingTasks(ctx, w.batch)
	if err != nil {
		return SweepStats{}, err
	}
	if len(tasks) == 0 {
		return SweepStats{}, nil
	}

	var evaluated, unchanged, failed, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			outcome, err := w.evaluate(gctx, t)
			switch outcome {
			case outcomeEvaluated:
				evaluated.Add(1)
			case outcomeUnchanged:
				unchanged.Add(1)
			case outcomeFailed:
				failed.Add(1)
			default:
				skipped.Add(1)
			}
			return err
		})
	}
	err = g.Wait()

	stats := SweepStats{
		Evaluated: evaluated.Load(),
		Unchanged: unchanged.Load(),
		Failed:    failed.Load(),
		Skipped:   skipped.Load(),
	}
	w.logger.Info("evaluation sweep finished",
		zap.Int("batch", len(tasks)),
		zap.Int64("evaluated", stats.Evaluated),
		zap.Int64("unchanged", stats.Unchanged),
		zap.Int64("failed", stats.Failed),
		zap.Int64("skipped", stats.Skipped))
	return stats, err
}

// Run is the scheduler entry point; errors are logged, not returned.
func (w *EvaluationWorker) Run(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("evaluation sweep", zap.Error(err))
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeEvaluated
	outcomeUnchanged
	outcomeFailed
)

// evaluate handles one task. Only a cancelled sweep is returned as an
// error; everything else is settled per task.
func (w *EvaluationWorker) evaluate(ctx context.Context, t model.Task) (outcome, error) {
	log := w.logger.With(zap.Int64("task_id", t.ID))

	ev, err := w.provider.Evaluate(ctx, evaluator.TaskPrompt{
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueAt:       t.DueAt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcomeSkipped, ctx.Err()
		}
		if mErr := w.tasks.MarkEvaluationFailed(ctx, t.ID, err); mErr != nil {
			log.Warn("mark evaluation failed", zap.Error(mErr))
			return outcomeSkipped, nil
		}
		return outcomeFailed, nil
	}

	res, changed, err := w.tasks.ReevaluateTaskReward(ctx, t.ID, ev)
	switch {
	case err == nil && changed:
		log.Debug("task evaluated", zap.Stringer("tier", ev.Tier), zap.Int64("preview_xp", res.XP))
		return outcomeEvaluated, nil
	case err == nil:
		return outcomeUnchanged, nil
	case ctx.Err() != nil:
		return outcomeSkipped, ctx.Err()
	case errors.Is(err, gameerr.ErrConcurrencyConflict), errors.Is(err, gameerr.ErrNotFound):
		log.Info("task left for the next sweep", zap.Error(err))
		return outcomeSkipped, nil
	default:
		log.Warn("store evaluation", zap.Error(err))
		if mErr := w.tasks.MarkEvaluationFailed(ctx, t.ID, err); mErr != nil {
			log.Warn("mark evaluation failed", zap.Error(mErr))
			return outcomeSkipped, nil
		}
		return outcomeFailed, nil
	}
}
