package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/game/evaluator"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/model"
)

var adminHeader = []string{"X-Admin-Key", adminKey}

func (s *server) seedTask(t *testing.T, username string) *model.Task {
	t.Helper()
	_, id := s.login(t, username, "")
	task := &model.Task{UserID: id, Title: "Write the report"}
	require.NoError(t, s.engine.CreateTask(context.Background(), task))
	return task
}

type reevaluateResp struct {
	Changed bool `json:"changed"`
	Preview struct {
		XP    int64 `json:"xp"`
		Coins int64 `json:"coins"`
	} `json:"preview"`
	Evaluation struct {
		Difficulty string   `json:"difficulty"`
		Subtasks   []string `json:"subtasks"`
	} `json:"evaluation"`
}

func TestAdmin_RequiresKey(t *testing.T) {
	s := newServer(t, nil)
	assert.Equal(t, http.StatusForbidden, s.get("/api/admin/scheduler").Code)
	assert.Equal(t, http.StatusForbidden, s.get("/api/admin/scheduler", "X-Admin-Key", "nope").Code)
	assert.Equal(t, http.StatusOK, s.get("/api/admin/scheduler", adminHeader...).Code)
}

func TestAdmin_ReevaluateWithBody(t *testing.T) {
	s := newServer(t, nil)
	task := s.seedTask(t, "vera")
	path := fmt.Sprintf("/api/admin/tasks/%d/reevaluate", task.ID)

	w := s.post(path, map[string]interface{}{"difficulty": "hard", "reasoning": "long", "subtasks": []string{"draft", "edit"}}, adminHeader...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp reevaluateResp
	decode(t, w, &resp)
	assert.True(t, resp.Changed)
	assert.Equal(t, int64(75), resp.Preview.XP)
	assert.Equal(t, "hard", resp.Evaluation.Difficulty)

	var got model.Task
	require.NoError(t, s.db.First(&got, task.ID).Error)
	assert.Equal(t, model.EvalEvaluated, got.EvalStatus)
	assert.Equal(t, "hard", got.EvaluatedTier)

	w = s.post(path, map[string]interface{}{"difficulty": "hard", "reasoning": "long", "subtasks": []string{"draft", "edit"}}, adminHeader...)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp.Changed)

	assert.Equal(t, http.StatusBadRequest, s.post(path, map[string]string{"difficulty": "mythic"}, adminHeader...).Code)
	assert.Equal(t, http.StatusBadRequest, s.post(path, map[string]string{"reasoning": "no tier"}, adminHeader...).Code)
	assert.Equal(t, http.StatusNotFound, s.post("/api/admin/tasks/999/reevaluate", map[string]string{"difficulty": "easy"}, adminHeader...).Code)
}

func TestAdmin_ReevaluateAsksProvider(t *testing.T) {
	var prompts []evaluator.TaskPrompt
	provider := evaluator.ProviderFunc(func(_ context.Context, p evaluator.TaskPrompt) (evaluator.Evaluation, error) {
		prompts = append(prompts, p)
		return evaluator.Evaluation{Tier: reward.TierEpic, Reasoning: "big", Subtasks: []string{}}, nil
	})
	s := newServer(t, provider)
	task := s.seedTask(t, "walt")

	w := s.post(fmt.Sprintf("/api/admin/tasks/%d/reevaluate", task.ID), nil, adminHeader...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp reevaluateResp
	decode(t, w, &resp)
	assert.True(t, resp.Changed)
	assert.Equal(t, "epic", resp.Evaluation.Difficulty)
	assert.Equal(t, int64(150), resp.Preview.XP)
	require.Len(t, prompts, 1)
	assert.Equal(t, "Write the report", prompts[0].Title)
}

func TestAdmin_ReevaluateWithoutProvider(t *testing.T) {
	s := newServer(t, nil)
	task := s.seedTask(t, "xena")

	w := s.post(fmt.Sprintf("/api/admin/tasks/%d/reevaluate", task.ID), nil, adminHeader...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_ProviderDown(t *testing.T) {
	provider := evaluator.ProviderFunc(func(context.Context, evaluator.TaskPrompt) (evaluator.Evaluation, error) {
		return evaluator.Evaluation{}, fmt.Errorf("%w: dial refused", gameerr.ErrProviderUnavailable)
	})
	s := newServer(t, provider)
	task := s.seedTask(t, "yuri")

	w := s.post(fmt.Sprintf("/api/admin/tasks/%d/reevaluate", task.ID), nil, adminHeader...)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdmin_ReplenishStreaks(t *testing.T) {
	s := newServer(t, nil)
	_, id := s.login(t, "zack", "")
	require.NoError(t, s.db.Model(&model.Streak{}).Where("user_id = ?", id).Update("freezes_available", 0).Error)

	w := s.post("/api/admin/streaks/replenish", nil, adminHeader...)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Users int64 `json:"users"`
	}
	decode(t, w, &resp)
	assert.Equal(t, int64(1), resp.Users)

	var st model.Streak
	require.NoError(t, s.db.First(&st, "user_id = ?", id).Error)
	assert.Equal(t, 1, st.FreezesAvailable)
}

func TestAdmin_Scheduler(t *testing.T) {
	s := newServer(t, nil)

	w := s.get("/api/admin/scheduler", adminHeader...)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Tasks []struct {
			Name     string `json:"name"`
			Schedule string `json:"schedule"`
		} `json:"tasks"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "noop", resp.Tasks[0].Name)

	assert.Equal(t, http.StatusAccepted, s.post("/api/admin/scheduler/noop/run", nil, adminHeader...).Code)
	assert.Eventually(t, func() bool { return s.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, s.post("/api/admin/scheduler/ghost/run", nil, adminHeader...).Code)
}
