package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/game/evaluator"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/game/streak"
	"github.com/Asuura666/game-habits/model"
)

// CreateTask stores a new task. With a manual tier the task is final at
// once; otherwise it waits for the difficulty evaluator and previews the
// fallback reward meanwhile.
func (s *Service) CreateTask(ctx context.Context, t *model.Task) error {
	if t.Title == "" {
		return fmt.Errorf("%w: task title is required", gameerr.ErrValidation)
	}
	t.EvalStatus = model.EvalPending
	if t.ManualTier != "" {
		if _, err := reward.ParseTier(t.ManualTier); err != nil {
			return err
		}
		t.EvalStatus = model.EvalManual
	}
	if !s.cfg.Evaluator.Enabled && t.EvalStatus == model.EvalPending {
		t.EvalStatus = model.EvalFailed
		t.EvalError = "evaluation disabled"
	}
	if err := s.setPreview(t); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Service) setPreview(t *model.Task) error {
	tier, err := s.TaskTier(t)
	if err != nil {
		return err
	}
	p, err := s.calc.Preview(tier)
	if err != nil {
		return err
	}
	t.PreviewXP = p.XP
	t.PreviewCoins = p.Coins
	return nil
}

// PendingTasks lists incomplete tasks still waiting for an evaluation,
// oldest first.
func (s *Service) PendingTasks(ctx context.Context, limit int) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.WithContext(ctx).
		Where("eval_status = ? AND completed = ?", model.EvalPending, false).
		Order("id ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ReevaluateTaskReward stores a provider evaluation on a task and returns
// the new preview reward. It reports changed=false, and touches nothing,
// when the task is already completed or the evaluation equals the stored
// one, so it is safe to call repeatedly.
func (s *Service) ReevaluateTaskReward(ctx context.Context, taskID int64, ev evaluator.Evaluation) (*RewardResult, bool, error) {
	if _, err := s.calc.Band(ev.Tier); err != nil {
		return nil, false, err
	}
	started := s.clock.Now()
	var (
		res     *RewardResult
		changed bool
		userID  int64
	)
	err := s.withRetry(ctx, "reevaluate_task", func() error {
		var err error
		res, changed, userID, err = s.reevaluate(ctx, taskID, ev)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed && s.audit != nil {
		s.audit.Log(audit.Entry{
			TraceID:    audit.TraceIDFrom(ctx),
			UserID:     &userID,
			Action:     audit.ActionReevaluate,
			Request:    map[string]interface{}{"task_id": taskID, "evaluation": ev},
			Response:   res,
			DurationMs: int(s.clock.Since(started).Milliseconds()),
		})
	}
	return res, changed, nil
}

func (s *Service) taskOwner(ctx context.Context, taskID int64) (int64, error) {
	var t model.Task
	if err := s.db.WithContext(ctx).Select("id, user_id").First(&t, taskID).Error; err != nil {
		return 0, notFound(err, "task", taskID)
	}
	return t.UserID, nil
}

func (s *Service) reevaluate(ctx context.Context, taskID int64, ev evaluator.Evaluation) (*RewardResult, bool, int64, error) {
	userID, err := s.taskOwner(ctx, taskID)
	if err != nil {
		return nil, false, 0, err
	}
	// Completion reads the task under the owner's lock, so taking it here
	// keeps a re-evaluation from racing a completion.
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, false, userID, err
	}
	defer unlock()

	var (
		res     RewardResult
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Task
		if err := tx.First(&t, taskID).Error; err != nil {
			return notFound(err, "task", taskID)
		}
		if t.Completed {
			res = RewardResult{XP: t.RewardXP, Coins: t.RewardCoins}
			return nil
		}
		if t.EvalStatus == model.EvalEvaluated && storedEvaluation(&t).Equal(ev) {
			res = RewardResult{XP: t.PreviewXP, Coins: t.PreviewCoins}
			return nil
		}

		subtasks, err := json.Marshal(ev.Subtasks)
		if err != nil {
			return err
		}
		t.EvalStatus = model.EvalEvaluated
		t.EvaluatedTier = ev.Tier.String()
		t.Reasoning = ev.Reasoning
		t.Subtasks = datatypes.JSON(subtasks)
		t.EvalError = ""
		if err := s.setPreview(&t); err != nil {
			return err
		}
		if err := tx.Save(&t).Error; err != nil {
			return err
		}
		res = RewardResult{XP: t.PreviewXP, Coins: t.PreviewCoins}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, userID, err
	}
	if changed {
		s.logger.Info("task re-evaluated",
			zap.Int64("task_id", taskID), zap.Stringer("tier", ev.Tier),
			zap.Int64("preview_xp", res.XP), zap.Int64("preview_coins", res.Coins))
	}
	return &res, changed, userID, nil
}

func storedEvaluation(t *model.Task) evaluator.Evaluation {
	ev := evaluator.Evaluation{Reasoning: t.Reasoning}
	ev.Tier, _ = reward.ParseTier(t.EvaluatedTier)
	if len(t.Subtasks) > 0 {
		_ = json.Unmarshal(t.Subtasks, &ev.Subtasks)
	}
	if ev.Subtasks == nil {
		ev.Subtasks = []string{}
	}
	return ev
}

// MarkEvaluationFailed records that the provider gave up on a pending task.
// The task stays completable under its manual or fallback tier.
func (s *Service) MarkEvaluationFailed(ctx context.Context, taskID int64, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	var t model.Task
	if err := s.db.WithContext(ctx).First(&t, taskID).Error; err != nil {
		return notFound(err, "task", taskID)
	}
	fallback := t
	fallback.EvalStatus = model.EvalFailed
	if err := s.setPreview(&fallback); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND eval_status = ? AND completed = ?", taskID, model.EvalPending, false).
		Updates(map[string]interface{}{
			"eval_status":   model.EvalFailed,
			"eval_error":    msg,
			"eval_attempts": gorm.Expr("eval_attempts + 1"),
			"preview_xp":    fallback.PreviewXP,
			"preview_coins": fallback.PreviewCoins,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	s.logger.Warn("task evaluation failed, using fallback tier",
		zap.Int64("task_id", taskID), zap.String("cause", msg))
	if s.audit != nil {
		s.audit.Log(audit.Entry{
			TraceID: audit.TraceIDFrom(ctx),
			UserID:  &t.UserID,
			Action:  audit.ActionEvalFailed,
			Request: map[string]int64{"task_id": taskID},
			Error:   msg,
		})
	}
	return nil
}

// ReplenishFreezes runs the weekly freeze policy for every user below the
// cap, one locked user at a time. It returns the number of streaks raised.
func (s *Service) ReplenishFreezes(ctx context.Context) (int64, error) {
	perWeek, maxFreezes := s.cfg.Streak.FreezesPerWeek, s.cfg.Streak.MaxFreezes
	if perWeek <= 0 {
		return 0, nil
	}
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&model.Streak{}).
		Where("freezes_available < ?", maxFreezes).
		Order("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return 0, err
	}

	started := s.clock.Now()
	var n int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var raised bool
		err := s.withRetry(ctx, "replenish_freezes", func() error {
			var err error
			raised, err = s.replenishOne(ctx, id, perWeek, maxFreezes)
			return err
		})
		if err != nil {
			s.logger.Warn("replenish freezes", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		if raised {
			n++
		}
	}
	s.logger.Info("streak freezes replenished", zap.Int64("users", n), zap.Int("candidates", len(ids)))
	if s.audit != nil {
		s.audit.Log(audit.Entry{
			TraceID:    audit.TraceIDFrom(ctx),
			Action:     audit.ActionReplenish,
			Request:    map[string]int{"per_week": perWeek, "max": maxFreezes},
			Response:   map[string]int64{"users": n},
			DurationMs: int(s.clock.Since(started).Milliseconds()),
		})
	}
	return n, nil
}

func (s *Service) replenishOne(ctx context.Context, userID int64, perWeek, maxFreezes int) (bool, error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var raised bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st model.Streak
		if err := tx.First(&st, "user_id = ?", userID).Error; err != nil {
			return notFound(err, "streak of user", userID)
		}
		next := streak.Replenish(st.State(), perWeek, maxFreezes)
		if next.FreezesAvailable == st.FreezesAvailable {
			return nil
		}
		raised = true
		return tx.Model(&model.Streak{}).Where("user_id = ?", userID).
			Update("freezes_available", next.FreezesAvailable).Error
	})
	return raised, err
}
