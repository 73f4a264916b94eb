package engine

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/model"
)

// RankingKey is the sorted set of user ids scored by total xp.
const RankingKey = "ranking:xp"

const RankingTop = 100

// RankEntry is one row in the xp leaderboard.
type RankEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	TotalXP  int64  `json:"total_xp"`
}

func (s *Service) rank(ctx context.Context, userID, xp int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ZAdd(ctx, RankingKey, float64(xp), memberID(userID)); err != nil {
		s.logger.Warn("leaderboard update failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// TopXP returns the leaderboard from the cache, falling back to the DB
// (and re-warming the cache) when the sorted set is empty or unavailable.
func (s *Service) TopXP(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 || limit > RankingTop {
		limit = 20
	}
	if s.cache != nil {
		members, err := s.cache.ZRevRange(ctx, RankingKey, 0, int64(limit-1))
		if err == nil && len(members) > 0 {
			entries := make([]RankEntry, 0, len(members))
			for _, m := range members {
				id, err := strconv.ParseInt(m, 10, 64)
				if err != nil {
					continue
				}
				score, _ := s.cache.ZScore(ctx, RankingKey, m)
				entries = append(entries, RankEntry{Rank: len(entries) + 1, UserID: id, TotalXP: int64(score)})
			}
			return entries, s.enrich(ctx, entries)
		}
	}

	users, err := s.topUsers(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, len(users))
	for i, u := range users {
		entries[i] = RankEntry{Rank: i + 1, UserID: u.ID, Username: u.Username, Level: s.curve.LevelForExperience(u.TotalXP), TotalXP: u.TotalXP}
		s.rank(ctx, u.ID, u.TotalXP)
	}
	return entries, nil
}

// RefreshRanking rebuilds the sorted set from the top of the users table.
func (s *Service) RefreshRanking(ctx context.Context) (int, error) {
	users, err := s.topUsers(ctx, RankingTop)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		s.rank(ctx, u.ID, u.TotalXP)
	}
	return len(users), nil
}

func (s *Service) topUsers(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Select("id, username, level, total_xp").
		Where("status = ?", 1).
		Order("total_xp DESC, id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (s *Service) enrich(ctx context.Context, entries []RankEntry) error {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	var users []model.User
	if err := s.db.WithContext(ctx).Select("id, username, level, total_xp").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	byID := make(map[int64]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range entries {
		if u, ok := byID[entries[i].UserID]; ok {
			entries[i].Username = u.Username
			entries[i].Level = s.curve.LevelForExperience(u.TotalXP)
			entries[i].TotalXP = u.TotalXP
		}
	}
	return nil
}
