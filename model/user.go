package model

import "time"

// User is a player account plus its progression counters. Level is always
// recomputed from TotalXP; Version guards against stale writes.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	TotalXP      int64      `gorm:"not null;default:0;index:idx_user_xp" json:"total_xp"`
	Level        int        `gorm:"not null;default:1" json:"level"`
	Coins        int64      `gorm:"not null;default:0" json:"coins"`
	Completions  int64      `gorm:"not null;default:0" json:"completions"`
	CombatWins   int64      `gorm:"not null;default:0" json:"combat_wins"`
	CombatLosses int64      `gorm:"not null;default:0" json:"combat_losses"`
	Version      int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"-"`
}
