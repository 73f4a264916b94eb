package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/model"
)

func TestRankingXP(t *testing.T) {
	s := newServer(t, nil)
	tokens := map[string]string{}
	ids := map[string]int64{}
	for _, name := range []string{"sam", "tess", "uma"} {
		tokens[name], ids[name] = s.login(t, name, "")
	}

	complete := func(name, tier string) {
		h := &model.Habit{UserID: ids[name], Name: tier + " habit", Tier: tier}
		require.NoError(t, s.db.Create(h).Error)
		w := s.post(fmt.Sprintf("/api/habits/%d/complete", h.ID), nil, bearer(tokens[name])...)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	complete("tess", "hard")
	complete("uma", "easy")

	w := s.get("/api/ranking/xp")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Ranking []engine.RankEntry `json:"ranking"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Ranking, 3)
	assert.Equal(t, "tess", resp.Ranking[0].Username)
	assert.Equal(t, "uma", resp.Ranking[1].Username)
	assert.Equal(t, "sam", resp.Ranking[2].Username)
	assert.Equal(t, 1, resp.Ranking[0].Rank)

	w = s.get("/api/ranking/xp?limit=1")
	decode(t, w, &resp)
	require.Len(t, resp.Ranking, 1)
	assert.Equal(t, "tess", resp.Ranking[0].Username)
}
