package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/level"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/game/streak"
	"github.com/Asuura666/game-habits/model"
)

// startingStat is the base value of every attribute on a new character.
const startingStat = 5

// RegisterUser creates a user together with its character and streak rows.
// New streaks start with one week's worth of freezes.
func (s *Service) RegisterUser(ctx context.Context, username, passwordHash string, class character.Class) (*model.User, error) {
	u := &model.User{Username: username, PasswordHash: passwordHash, Status: 1, Level: 1}
	freezes := min(s.cfg.Streak.FreezesPerWeek, s.cfg.Streak.MaxFreezes)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		ch := &model.Character{
			UserID:       u.ID,
			Class:        class.String(),
			Strength:     startingStat,
			Endurance:    startingStat,
			Agility:      startingStat,
			Intelligence: startingStat,
			Charisma:     startingStat,
		}
		if err := tx.Create(ch).Error; err != nil {
			return err
		}
		return tx.Create(&model.Streak{UserID: u.ID, FreezesAvailable: freezes}).Error
	})
	if err != nil {
		return nil, err
	}
	s.rank(ctx, u.ID, 0)
	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("class", class.String()))
	return u, nil
}

// Profile is the progression view of one user.
type Profile struct {
	User          model.User      `json:"user"`
	Progress      level.Progress  `json:"progress"`
	Streak        streak.State    `json:"streak"`
	StreakBroken  bool            `json:"streak_broken"`
	Stats         character.Stats `json:"stats"`
	UnspentPoints int             `json:"unspent_points"`
	Rank          int64           `json:"rank,omitempty"`
}

func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	a, err := s.loadAggregate(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		User:          a.user,
		Progress:      s.curve.Progress(a.user.TotalXP),
		Streak:        a.streak.State(),
		StreakBroken:  s.tracker.Broken(a.streak.State()),
		Stats:         a.stats(),
		UnspentPoints: a.char.UnspentPoints,
	}
	if s.cache != nil {
		if r, err := s.cache.ZRevRank(ctx, RankingKey, memberID(userID)); err == nil {
			p.Rank = r + 1
		}
	}
	return p, nil
}

// StatAllocation spends unspent points on base attributes.
type StatAllocation struct {
	Strength     int `json:"strength"`
	Endurance    int `json:"endurance"`
	Agility      int `json:"agility"`
	Intelligence int `json:"intelligence"`
	Charisma     int `json:"charisma"`
}

func (a StatAllocation) total() int {
	return a.Strength + a.Endurance + a.Agility + a.Intelligence + a.Charisma
}

// AllocatePoints moves unspent stat points onto the character. It is
// all-or-nothing: a request that overspends changes nothing.
func (s *Service) AllocatePoints(ctx context.Context, userID int64, a StatAllocation) (*model.Character, error) {
	if a.Strength < 0 || a.Endurance < 0 || a.Agility < 0 || a.Intelligence < 0 || a.Charisma < 0 {
		return nil, fmt.Errorf("%w: allocations must be >= 0", gameerr.ErrValidation)
	}
	if a.total() == 0 {
		return nil, fmt.Errorf("%w: nothing to allocate", gameerr.ErrValidation)
	}
	var ch model.Character
	err := s.withRetry(ctx, "allocate_points", func() error {
		unlock, err := s.locker.Lock(ctx, userID)
		if err != nil {
			return err
		}
		defer unlock()
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&ch, "user_id = ?", userID).Error; err != nil {
				return notFound(err, "character of user", userID)
			}
			if ch.UnspentPoints < a.total() {
				return fmt.Errorf("%w: %d points requested, %d unspent",
					gameerr.ErrInsufficientResource, a.total(), ch.UnspentPoints)
			}
			ch.Strength += a.Strength
			ch.Endurance += a.Endurance
			ch.Agility += a.Agility
			ch.Intelligence += a.Intelligence
			ch.Charisma += a.Charisma
			ch.UnspentPoints -= a.total()
			return tx.Save(&ch).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateHabit stores a recurring habit. Only trivial to hard tiers apply.
func (s *Service) CreateHabit(ctx context.Context, h *model.Habit) error {
	if h.Name == "" {
		return fmt.Errorf("%w: habit name is required", gameerr.ErrValidation)
	}
	tier, err := reward.ParseTier(h.Tier)
	if err != nil {
		return err
	}
	if !tier.HabitTier() {
		return fmt.Errorf("%w: %s is not a habit tier", gameerr.ErrValidation, tier)
	}
	h.Tier = tier.String()
	return s.db.WithContext(ctx).Create(h).Error
}

func (s *Service) Habits(ctx context.Context, userID int64) ([]model.Habit, error) {
	var hs []model.Habit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, false).
		Order("id ASC").
		Find(&hs).Error
	return hs, err
}

// Task loads one of the user's tasks.
func (s *Service) Task(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	var t model.Task
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, userID).First(&t).Error; err != nil {
		return nil, notFound(err, "task", taskID)
	}
	return &t, nil
}

// TaskByID loads any task, regardless of owner.
func (s *Service) TaskByID(ctx context.Context, taskID int64) (*model.Task, error) {
	var t model.Task
	if err := s.db.WithContext(ctx).First(&t, taskID).Error; err != nil {
		return nil, notFound(err, "task", taskID)
	}
	return &t, nil
}

func (s *Service) Equipment(ctx context.Context, userID int64) ([]model.Equipment, error) {
	var items []model.Equipment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error
	return items, err
}

// Equip toggles an owned item. Equipping unequips whatever else occupies
// the same slot.
func (s *Service) Equip(ctx context.Context, userID, itemID int64, equipped bool) (*model.Equipment, error) {
	var item model.Equipment
	err := s.withRetry(ctx, "equip", func() error {
		unlock, err := s.locker.Lock(ctx, userID)
		if err != nil {
			return err
		}
		defer unlock()
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
				return notFound(err, "item", itemID)
			}
			if equipped {
				if err := tx.Model(&model.Equipment{}).
					Where("user_id = ? AND slot = ? AND id <> ?", userID, item.Slot, item.ID).
					Update("equipped", false).Error; err != nil {
					return err
				}
			}
			item.Equipped = equipped
			return tx.Model(&item).Update("equipped", equipped).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
