package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/model"
)

type rewardResp struct {
	XP             int64    `json:"xp"`
	Coins          int64    `json:"coins"`
	UnlockedBadges []string `json:"unlocked_badges"`
	Streak         struct {
		Current int `json:"current_streak"`
	} `json:"streak"`
}

func TestHabitLifecycle(t *testing.T) {
	s := newServer(t, nil)
	token, id := s.login(t, "hana", "")

	w := s.post("/api/habits", map[string]string{"name": "Stretch", "tier": " Easy "}, bearer(token)...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var habit model.Habit
	decode(t, w, &habit)
	assert.Equal(t, "easy", habit.Tier)
	assert.Equal(t, id, habit.UserID)

	w = s.get("/api/habits", bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Habits []model.Habit `json:"habits"`
	}
	decode(t, w, &list)
	require.Len(t, list.Habits, 1)

	w = s.post(fmt.Sprintf("/api/habits/%d/complete", habit.ID), nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res rewardResp
	decode(t, w, &res)
	assert.GreaterOrEqual(t, res.XP, int64(15))
	assert.GreaterOrEqual(t, res.Coins, int64(5))
	assert.Contains(t, res.UnlockedBadges, "first-step")
	assert.Equal(t, 1, res.Streak.Current)

	w = s.post(fmt.Sprintf("/api/habits/%d/complete", habit.ID), nil, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, w.Code, "once per day")

	var u model.User
	require.NoError(t, s.db.First(&u, id).Error)
	assert.Equal(t, int64(1), u.Completions)
}

func TestCreateHabit_Rejects(t *testing.T) {
	s := newServer(t, nil)
	token, _ := s.login(t, "ivan", "")

	assert.Equal(t, http.StatusBadRequest, s.post("/api/habits", map[string]string{"name": "Marathon", "tier": "epic"}, bearer(token)...).Code)
	assert.Equal(t, http.StatusBadRequest, s.post("/api/habits", map[string]string{"tier": "easy"}, bearer(token)...).Code)
	assert.Equal(t, http.StatusNotFound, s.post("/api/habits/999/complete", nil, bearer(token)...).Code)
}

func TestTaskLifecycle(t *testing.T) {
	s := newServer(t, nil)
	token, _ := s.login(t, "jade", "")
	otherToken, _ := s.login(t, "kyle", "")

	w := s.post("/api/tasks", map[string]string{"title": "File taxes", "difficulty": "hard"}, bearer(token)...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task model.Task
	decode(t, w, &task)
	assert.Equal(t, model.EvalManual, task.EvalStatus)
	assert.Equal(t, int64(75), task.PreviewXP)

	path := fmt.Sprintf("/api/tasks/%d", task.ID)
	assert.Equal(t, http.StatusOK, s.get(path, bearer(token)...).Code)
	assert.Equal(t, http.StatusNotFound, s.get(path, bearer(otherToken)...).Code)
	assert.Equal(t, http.StatusNotFound, s.post(path+"/complete", nil, bearer(otherToken)...).Code)

	w = s.post(path+"/complete", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res rewardResp
	decode(t, w, &res)
	assert.GreaterOrEqual(t, res.XP, int64(75))

	assert.Equal(t, http.StatusBadRequest, s.post(path+"/complete", nil, bearer(token)...).Code, "tasks complete once")

	w = s.get(path, bearer(token)...)
	decode(t, w, &task)
	assert.True(t, task.Completed)
	assert.Equal(t, res.XP, task.RewardXP)
}

func TestCreateTask_EvaluatorDisabledUsesFallback(t *testing.T) {
	s := newServer(t, nil)
	token, _ := s.login(t, "lena", "")

	w := s.post("/api/tasks", map[string]string{"title": "Clean garage"}, bearer(token)...)
	require.Equal(t, http.StatusCreated, w.Code)
	var task model.Task
	decode(t, w, &task)
	assert.Equal(t, model.EvalFailed, task.EvalStatus)
	assert.Equal(t, int64(37), task.PreviewXP, "medium fallback")

	assert.Equal(t, http.StatusBadRequest,
		s.post("/api/tasks", map[string]string{"title": "Nap", "difficulty": "impossible"}, bearer(token)...).Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/tasks/0", bearer(token)...).Code)
}
