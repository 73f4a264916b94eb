package model

import (
	"time"

	"gorm.io/datatypes"
)

// CombatRecord is written once when a combat resolves and never updated.
type CombatRecord struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	ChallengerID       int64          `gorm:"index:idx_combat_challenger;not null" json:"challenger_id"`
	DefenderID         int64          `gorm:"index:idx_combat_defender;not null" json:"defender_id"`
	Seed               int64          `json:"seed"`
	Bet                int64          `json:"bet"`
	ChallengerSnapshot datatypes.JSON `json:"challenger_snapshot"`
	DefenderSnapshot   datatypes.JSON `json:"defender_snapshot"`
	TurnLog            datatypes.JSON `json:"turn_log"`
	Winner             string         `gorm:"size:16;not null" json:"winner"`
	ChallengerHP       int            `json:"challenger_hp"`
	DefenderHP         int            `json:"defender_hp"`
	TotalTurns         int            `json:"total_turns"`
	ChallengerXP       int64          `json:"challenger_xp"`
	DefenderXP         int64          `json:"defender_xp"`
	BetTransferred     int64          `json:"bet_transferred"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
