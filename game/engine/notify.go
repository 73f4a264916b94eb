package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/game/badge"
)

// Notification types published on a user's channel.
const (
	NoteReward  = "reward"
	NoteLevelUp = "level_up"
	NoteBadge   = "badge"
	NoteCombat  = "combat"
)

// Notification is the payload pushed to a user's progression channel.
type Notification struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id"`
	Data   interface{} `json:"data"`
	At     time.Time   `json:"at"`
}

// UserChannel is the pub/sub channel carrying a user's notifications.
func UserChannel(userID int64) string { return "user:" + strconv.FormatInt(userID, 10) }

func (s *Service) progressNotes(userID int64, res *RewardResult, unlocked []badge.Definition) []Notification {
	now := s.clock.Now()
	notes := []Notification{{Type: NoteReward, UserID: userID, Data: res, At: now}}
	if res.LeveledUp {
		notes = append(notes, Notification{
			Type:   NoteLevelUp,
			UserID: userID,
			Data:   map[string]int{"level": res.NewLevel, "stat_points": res.StatPoints},
			At:     now,
		})
	}
	for _, d := range unlocked {
		notes = append(notes, Notification{Type: NoteBadge, UserID: userID, Data: d, At: now})
	}
	return notes
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if s.pubsub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("marshal notification", zap.Error(err))
		return
	}
	if err := s.pubsub.Publish(ctx, UserChannel(n.UserID), string(payload)); err != nil {
		s.logger.Warn("publish notification failed",
			zap.Int64("user_id", n.UserID), zap.String("type", n.Type), zap.Error(err))
	}
}
