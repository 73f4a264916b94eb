package model

import (
	"time"

	"github.com/Asuura666/game-habits/game/streak"
)

type Streak struct {
	UserID           int64      `gorm:"primaryKey" json:"user_id"`
	Current          int        `gorm:"not null;default:0" json:"current_streak"`
	Best             int        `gorm:"not null;default:0" json:"best_streak"`
	LastActivity     *time.Time `json:"last_activity_date"`
	FreezesAvailable int        `gorm:"not null;default:0" json:"freezes_available"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Streak) State() streak.State {
	st := streak.State{Current: s.Current, Best: s.Best, FreezesAvailable: s.FreezesAvailable}
	if s.LastActivity != nil {
		d := streak.Date(*s.LastActivity)
		st.LastActivity = &d
	}
	return st
}

func (s *Streak) Apply(st streak.State) {
	s.Current = st.Current
	s.Best = st.Best
	s.LastActivity = st.LastActivity
	s.FreezesAvailable = st.FreezesAvailable
}
