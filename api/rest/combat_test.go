package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/model"
)

func TestCombat_ChallengeAndLookup(t *testing.T) {
	s := newServer(t, nil)
	token, challenger := s.login(t, "mia", "rogue")
	defenderToken, defender := s.login(t, "noah", "cleric")
	outsiderToken, _ := s.login(t, "olga", "")
	require.NoError(t, s.db.Model(&model.User{}).Where("id IN ?", []int64{challenger, defender}).Update("coins", 100).Error)

	w := s.post("/api/combat/challenge", map[string]int64{"defender_id": defender, "bet": 10}, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec model.CombatRecord
	decode(t, w, &rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, challenger, rec.ChallengerID)
	assert.Equal(t, defender, rec.DefenderID)
	assert.Contains(t, []string{"challenger", "defender", "draw"}, rec.Winner)
	assert.Positive(t, rec.TotalTurns)

	var a, b model.User
	require.NoError(t, s.db.First(&a, challenger).Error)
	require.NoError(t, s.db.First(&b, defender).Error)
	assert.Equal(t, int64(200), a.Coins+b.Coins, "bets move coins, never mint them")

	path := "/api/combat/" + rec.ID
	assert.Equal(t, http.StatusOK, s.get(path, bearer(token)...).Code)
	assert.Equal(t, http.StatusOK, s.get(path, bearer(defenderToken)...).Code)
	assert.Equal(t, http.StatusNotFound, s.get(path, bearer(outsiderToken)...).Code)
	assert.Equal(t, http.StatusNotFound, s.get("/api/combat/00000000-0000-0000-0000-000000000000", bearer(token)...).Code)
}

func TestCombat_Rejections(t *testing.T) {
	s := newServer(t, nil)
	token, me := s.login(t, "pia", "")
	_, defender := s.login(t, "quin", "")

	w := s.post("/api/combat/challenge", map[string]int64{"defender_id": defender, "bet": 1000}, bearer(token)...)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.post("/api/combat/challenge", map[string]int64{"defender_id": me}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.post("/api/combat/challenge", map[string]int64{"bet": 1}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.post("/api/combat/challenge", map[string]int64{"defender_id": 9999}, bearer(token)...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var n int64
	s.db.Model(&model.CombatRecord{}).Count(&n)
	assert.Zero(t, n)
}
