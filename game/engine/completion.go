package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/game/streak"
	"github.com/Asuura666/game-habits/model"
)

// Activity identifies what was completed.
type Activity struct {
	Kind reward.Kind `json:"kind"`
	ID   int64       `json:"id"`
}

// RewardResult is what a completion (or a re-evaluation preview) granted.
type RewardResult struct {
	XP             int64        `json:"xp"`
	Coins          int64        `json:"coins"`
	BadgeXP        int64        `json:"badge_xp"`
	LeveledUp      bool         `json:"leveled_up"`
	NewLevel       int          `json:"new_level,omitempty"`
	StatPoints     int          `json:"stat_points,omitempty"`
	UnlockedBadges []string     `json:"unlocked_badges"`
	Streak         streak.State `json:"streak"`
	Transition     string       `json:"streak_transition,omitempty"`
}

var completionCategories = []badge.ConditionType{
	badge.CondStreak, badge.CondCompletions, badge.CondLevel, badge.CondSecret, badge.CondDateWindow,
}

// RecordCompletion rewards a habit or task completion at the given instant.
// Any rejection leaves every counter untouched.
func (s *Service) RecordCompletion(ctx context.Context, userID int64, act Activity, at time.Time) (*RewardResult, error) {
	if at.IsZero() {
		at = s.clock.Now()
	}
	started := s.clock.Now()
	var (
		res *RewardResult
		fx  *effects
	)
	err := s.withRetry(ctx, "record_completion", func() error {
		var err error
		res, fx, err = s.recordCompletion(ctx, userID, act, at, started)
		return err
	})
	if err != nil {
		s.auditFailure(ctx, audit.ActionCompletion, userID, act, err, started)
		return nil, err
	}
	s.apply(ctx, fx)
	return res, nil
}

func (s *Service) recordCompletion(ctx context.Context, userID int64, act Activity, at, started time.Time) (*RewardResult, *effects, error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var (
		res RewardResult
		fx  effects
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agg, err := s.loadAggregate(tx, userID)
		if err != nil {
			return err
		}
		prev := agg.streak.State()
		next, tr, err := s.tracker.Record(prev, at)
		if err != nil {
			return err
		}
		day := s.tracker.DayOf(at)
		dayKey := day.Format(time.DateOnly)

		var rw reward.Reward
		switch act.Kind {
		case reward.KindHabit:
			rw, err = s.completeHabit(tx, userID, act.ID, dayKey, next, agg.stats())
		case reward.KindTask:
			rw, err = s.completeTask(tx, userID, act.ID, at, agg.stats())
		default:
			err = fmt.Errorf("%w: %s activities cannot be completed", gameerr.ErrValidation, act.Kind)
		}
		if err != nil {
			return err
		}

		u := &agg.user
		oldLevel := u.Level
		u.TotalXP += rw.XP
		u.Coins += rw.Coins
		u.Completions++

		flags := s.completionFlags(prev, tr, at, day)
		unlocked, badgeXP, err := s.evaluateBadges(ctx, tx, u, next, flags, at, completionCategories)
		if err != nil {
			return err
		}
		points, err := s.grantStatPoints(tx, userID, u.Level-oldLevel)
		if err != nil {
			return err
		}

		agg.streak.Apply(next)
		if err := tx.Save(&agg.streak).Error; err != nil {
			return err
		}
		if err := saveUser(tx, u); err != nil {
			return err
		}
		if err := tx.Create(&model.Completion{
			UserID:     userID,
			Kind:       act.Kind.String(),
			ActivityID: act.ID,
			Day:        dayKey,
			XP:         rw.XP,
			Coins:      rw.Coins,
		}).Error; err != nil {
			return err
		}

		res = RewardResult{
			XP:             rw.XP,
			Coins:          rw.Coins,
			BadgeXP:        badgeXP,
			StatPoints:     points,
			UnlockedBadges: codes(unlocked),
			Streak:         next,
			Transition:     tr.String(),
		}
		if u.Level > oldLevel {
			res.LeveledUp = true
			res.NewLevel = u.Level
		}
		fx.ranked = append(fx.ranked, rankedUser{id: userID, xp: u.TotalXP})
		fx.notes = append(fx.notes, s.progressNotes(userID, &res, unlocked)...)
		fx.audits = append(fx.audits, audit.Entry{
			UserID:     &userID,
			Action:     audit.ActionCompletion,
			Request:    act,
			Response:   res,
			DurationMs: int(s.clock.Since(started).Milliseconds()),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("completion recorded",
		zap.Int64("user_id", userID),
		zap.Stringer("kind", act.Kind),
		zap.Int64("activity_id", act.ID),
		zap.Int64("xp", res.XP),
		zap.Int64("coins", res.Coins),
		zap.String("streak", res.Transition))
	return &res, &fx, nil
}

func (s *Service) completeHabit(tx *gorm.DB, userID, habitID int64, dayKey string, st streak.State, stats character.Stats) (reward.Reward, error) {
	var h model.Habit
	if err := tx.Where("id = ? AND user_id = ?", habitID, userID).First(&h).Error; err != nil {
		return reward.Reward{}, notFound(err, "habit", habitID)
	}
	if h.Archived {
		return reward.Reward{}, fmt.Errorf("%w: habit %d is archived", gameerr.ErrValidation, habitID)
	}
	var n int64
	if err := tx.Model(&model.Completion{}).
		Where("user_id = ? AND kind = ? AND activity_id = ? AND day = ?", userID, reward.KindHabit.String(), habitID, dayKey).
		Count(&n).Error; err != nil {
		return reward.Reward{}, err
	}
	if n > 0 {
		return reward.Reward{}, fmt.Errorf("%w: habit %d already completed on %s", gameerr.ErrValidation, habitID, dayKey)
	}
	tier, err := reward.ParseTier(h.Tier)
	if err != nil {
		return reward.Reward{}, err
	}
	return s.calc.Habit(tier, st, stats)
}

func (s *Service) completeTask(tx *gorm.DB, userID, taskID int64, at time.Time, stats character.Stats) (reward.Reward, error) {
	var t model.Task
	if err := tx.Where("id = ? AND user_id = ?", taskID, userID).First(&t).Error; err != nil {
		return reward.Reward{}, notFound(err, "task", taskID)
	}
	if t.Completed {
		return reward.Reward{}, fmt.Errorf("%w: task %d already completed", gameerr.ErrValidation, taskID)
	}
	tier, err := s.TaskTier(&t)
	if err != nil {
		return reward.Reward{}, err
	}
	rw, err := s.calc.Task(tier, t.DueAt, at, stats)
	if err != nil {
		return reward.Reward{}, err
	}
	t.Completed = true
	t.CompletedAt = &at
	t.RewardXP = rw.XP
	t.RewardCoins = rw.Coins
	return rw, tx.Save(&t).Error
}

// TaskTier is the tier a task completes under: the evaluated tier when the
// provider answered, otherwise the manual tier, otherwise the fallback.
func (s *Service) TaskTier(t *model.Task) (reward.Tier, error) {
	if t.EvalStatus == model.EvalEvaluated && t.EvaluatedTier != "" {
		return reward.ParseTier(t.EvaluatedTier)
	}
	if t.ManualTier != "" {
		return reward.ParseTier(t.ManualTier)
	}
	return s.fallback, nil
}

func (s *Service) completionFlags(prev streak.State, tr streak.Transition, at, day time.Time) map[string]bool {
	flags := map[string]bool{}
	if at.In(s.loc).Hour() < 5 {
		flags[badge.FlagNightOwl] = true
	}
	if tr == streak.Reset && prev.LastActivity != nil && streak.DaysBetween(*prev.LastActivity, day) >= 7 {
		flags[badge.FlagComeback] = true
	}
	if tr == streak.Frozen {
		flags[badge.FlagFreezeSaved] = true
	}
	return flags
}

// evaluateBadges unlocks matching badges and feeds their xp back into u.
// Badge xp can cross a level threshold, so level badges are checked again
// until nothing new unlocks. u.Level is left recomputed from u.TotalXP.
func (s *Service) evaluateBadges(ctx context.Context, tx *gorm.DB, u *model.User, st streak.State, flags map[string]bool, at time.Time, cats []badge.ConditionType) ([]badge.Definition, int64, error) {
	store := badgeStore{tx: tx}
	var (
		all []badge.Definition
		xp  int64
	)
	for {
		u.Level = s.curve.LevelForExperience(u.TotalXP)
		unlocked, err := s.badges.Evaluate(ctx, badge.Event{
			UserID:     u.ID,
			Categories: cats,
			Snapshot: badge.Snapshot{
				CurrentStreak: st.Current,
				BestStreak:    st.Best,
				Completions:   u.Completions,
				Level:         u.Level,
				CombatWins:    u.CombatWins,
				Flags:         flags,
			},
			At: at.In(s.loc),
		}, store)
		if err != nil {
			return nil, 0, err
		}
		if len(unlocked) == 0 {
			return all, xp, nil
		}
		for _, d := range unlocked {
			g, err := s.calc.Grant(d.XPReward)
			if err != nil {
				return nil, 0, err
			}
			u.TotalXP += g.XP
			xp += g.XP
		}
		all = append(all, unlocked...)
		cats = []badge.ConditionType{badge.CondLevel}
	}
}

func codes(defs []badge.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Code)
	}
	return out
}
