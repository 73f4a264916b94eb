package model

import (
	"time"

	"gorm.io/datatypes"
)

// Habit is a recurring activity, completable once per day.
type Habit struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index:idx_habit_user;not null" json:"user_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Tier      string    `gorm:"size:16;not null" json:"tier"`
	Archived  bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Task evaluation states.
const (
	EvalPending   = "pending"
	EvalEvaluated = "evaluated"
	EvalFailed    = "failed"
	EvalManual    = "manual"
)

// Task is a one-off activity. Its tier is either set manually or supplied
// later by the difficulty evaluator.
type Task struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64          `gorm:"index:idx_task_user;not null" json:"user_id"`
	Title         string         `gorm:"size:256;not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	DueAt         *time.Time     `json:"due_at"`
	ManualTier    string         `gorm:"size:16" json:"manual_tier,omitempty"`
	EvalStatus    string         `gorm:"size:16;not null;index:idx_task_eval" json:"eval_status"`
	EvaluatedTier string         `gorm:"size:16" json:"evaluated_tier,omitempty"`
	Reasoning     string         `gorm:"type:text" json:"reasoning,omitempty"`
	Subtasks      datatypes.JSON `json:"subtasks,omitempty"`
	EvalAttempts  int            `gorm:"not null;default:0" json:"eval_attempts"`
	EvalError     string         `gorm:"type:text" json:"-"`
	PreviewXP     int64          `json:"preview_xp"`
	PreviewCoins  int64          `json:"preview_coins"`
	Completed     bool           `gorm:"not null;default:false" json:"completed"`
	CompletedAt   *time.Time     `json:"completed_at"`
	RewardXP      int64          `json:"reward_xp"`
	RewardCoins   int64          `json:"reward_coins"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// Completion is the history row of one rewarded activity. The unique index
// limits a habit to one completion per calendar day.
type Completion struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:idx_completion_once,priority:1;not null" json:"user_id"`
	Kind       string    `gorm:"uniqueIndex:idx_completion_once,priority:2;size:8;not null" json:"kind"`
	ActivityID int64     `gorm:"uniqueIndex:idx_completion_once,priority:3;not null" json:"activity_id"`
	Day        string    `gorm:"uniqueIndex:idx_completion_once,priority:4;size:10;not null" json:"day"`
	XP         int64     `json:"xp"`
	Coins      int64     `json:"coins"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
