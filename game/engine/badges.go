package engine

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/Asuura666/game-habits/model"
)

// SyncCatalog upserts the badge definitions into the badges table so the
// user_badges rows always reference a known code.
func (s *Service) SyncCatalog(ctx context.Context) error {
	defs := s.badges.Definitions()
	rows := make([]model.Badge, 0, len(defs))
	for _, d := range defs {
		cond, err := json.Marshal(d.Condition)
		if err != nil {
			return err
		}
		rows = append(rows, model.Badge{
			Code:           d.Code,
			Name:           d.Name,
			Description:    d.Description,
			ConditionType:  d.Condition.Type.String(),
			ConditionValue: datatypes.JSON(cond),
			XPReward:       d.XPReward,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "condition_type", "condition_value", "xp_reward"}),
	}).Create(&rows).Error
}

// UnlockedBadge is a badge a user holds.
type UnlockedBadge struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	XPReward    int64     `json:"xp_reward"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// UserBadges lists the badges a user has unlocked, oldest first.
func (s *Service) UserBadges(ctx context.Context, userID int64) ([]UnlockedBadge, error) {
	var rows []model.UserBadge
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND unlocked_at IS NOT NULL", userID).
		Order("unlocked_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]UnlockedBadge, 0, len(rows))
	for _, r := range rows {
		ub := UnlockedBadge{Code: r.BadgeCode, UnlockedAt: *r.UnlockedAt}
		if d, ok := s.badges.Lookup(r.BadgeCode); ok {
			ub.Name, ub.Description, ub.XPReward = d.Name, d.Description, d.XPReward
		}
		out = append(out, ub)
	}
	return out, nil
}
