package model

import (
	"time"

	"gorm.io/datatypes"
)

type Badge struct {
	Code           string         `gorm:"primaryKey;size:64" json:"code"`
	Name           string         `gorm:"size:64;not null" json:"name"`
	Description    string         `gorm:"size:256" json:"description"`
	ConditionType  string         `gorm:"size:16;not null" json:"condition_type"`
	ConditionValue datatypes.JSON `json:"condition_value"`
	XPReward       int64          `json:"xp_reward"`
}

// UserBadge rows are created locked (UnlockedAt nil) and flipped once.
type UserBadge struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64      `gorm:"uniqueIndex:idx_user_badge,priority:1;not null" json:"user_id"`
	BadgeCode  string     `gorm:"uniqueIndex:idx_user_badge,priority:2;size:64;not null" json:"badge_code"`
	UnlockedAt *time.Time `json:"unlocked_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
