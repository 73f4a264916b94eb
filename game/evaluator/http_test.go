package evaluator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req chatRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "test-model", req.Model)
			assert.False(t, req.Stream)
			assert.Len(t, req.Messages, 2)
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:   req.Model,
			Message: chatMessage{Role: "assistant", Content: content},
			Done:    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProvider_Evaluate(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"difficulty":"Hard","reasoning":" needs research ","subtasks":["outline"," ","draft"]}`)
	p := NewHTTPProvider(srv.URL+"/", "test-model", srv.Client())

	ev, err := p.Evaluate(context.Background(), TaskPrompt{TaskID: 1, Title: "Write thesis chapter"})
	require.NoError(t, err)
	assert.Equal(t, reward.TierHard, ev.Tier)
	assert.Equal(t, "needs research", ev.Reasoning)
	assert.Equal(t, []string{"outline", "draft"}, ev.Subtasks)
}

func TestHTTPProvider_FencedAnswer(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Sure!\n```json\n{\"difficulty\":\"epic\",\"reasoning\":\"big\",\"subtasks\":[]}\n```")
	p := NewHTTPProvider(srv.URL, "test-model", srv.Client())

	ev, err := p.Evaluate(context.Background(), TaskPrompt{Title: "Move house"})
	require.NoError(t, err)
	assert.Equal(t, reward.TierEpic, ev.Tier)
	assert.Empty(t, ev.Subtasks)
}

func TestHTTPProvider_UnknownDifficulty(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"difficulty":"impossible"}`)
	p := NewHTTPProvider(srv.URL, "test-model", srv.Client())

	_, err := p.Evaluate(context.Background(), TaskPrompt{Title: "x"})
	assert.ErrorIs(t, err, gameerr.ErrValidation)
}

func TestHTTPProvider_NoJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "I cannot help with that")
	p := NewHTTPProvider(srv.URL, "test-model", srv.Client())

	_, err := p.Evaluate(context.Background(), TaskPrompt{Title: "x"})
	assert.ErrorIs(t, err, gameerr.ErrValidation)
}

func TestHTTPProvider_ServerError(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, "")
	p := NewHTTPProvider(srv.URL, "test-model", srv.Client())

	_, err := p.Evaluate(context.Background(), TaskPrompt{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestEvaluation_Equal(t *testing.T) {
	a := Evaluation{Tier: reward.TierHard, Reasoning: "r", Subtasks: []string{"a", "b"}}
	assert.True(t, a.Equal(Evaluation{Tier: reward.TierHard, Reasoning: "r", Subtasks: []string{"a", "b"}}))
	assert.False(t, a.Equal(Evaluation{Tier: reward.TierEpic, Reasoning: "r", Subtasks: []string{"a", "b"}}))
	assert.False(t, a.Equal(Evaluation{Tier: reward.TierHard, Reasoning: "r", Subtasks: []string{"a"}}))
}
