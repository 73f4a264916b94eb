package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/model"
)

func TestTopXP_FallsBackToDBAndWarms(t *testing.T) {
	e := newEnv(t)
	low := e.user(t, "low", &model.User{TotalXP: 10}, nil)
	high := e.user(t, "high", &model.User{TotalXP: 500, Level: 3}, nil)
	e.user(t, "banned", &model.User{TotalXP: 9000, Status: 0}, nil)
	// Status 0 is dropped on insert by the column default, set it after
	require.NoError(t, e.db.Model(&model.User{}).Where("username = ?", "banned").Update("status", 0).Error)

	got, err := e.svc.TopXP(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RankEntry{Rank: 1, UserID: high.ID, Username: "high", Level: 3, TotalXP: 500}, got[0])
	assert.Equal(t, low.ID, got[1].UserID)

	score, err := e.cache.ZScore(context.Background(), RankingKey, memberID(high.ID))
	require.NoError(t, err)
	assert.Equal(t, float64(500), score)
}

func TestTopXP_ReadsCache(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "amy", nil, nil)
	b := e.user(t, "ben", nil, nil)
	h := e.habit(t, b.ID, "hard")

	_, err := e.svc.RecordCompletion(context.Background(), b.ID, Activity{ID: h.ID}, noon)
	require.NoError(t, err)
	require.NoError(t, e.cache.ZAdd(context.Background(), RankingKey, 0, memberID(a.ID)))

	got, err := e.svc.TopXP(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].UserID)
	assert.Equal(t, "ben", got[0].Username)
	// 40 for the hard habit plus 10 for first-step
	assert.Equal(t, int64(50), got[0].TotalXP)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRefreshRanking(t *testing.T) {
	e := newEnv(t)
	for i, name := range []string{"cal", "dee", "eve"} {
		e.user(t, name, &model.User{TotalXP: int64(i * 100)}, nil)
	}
	n, err := e.svc.RefreshRanking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	members, err := e.cache.ZRevRange(context.Background(), RankingKey, 0, -1)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}
