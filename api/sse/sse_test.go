package sse_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Asuura666/game-habits/api/sse"
	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/engine"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var sec = config.SecurityConfig{JWTSecret: "sse-secret", JWTTTLH: time.Hour}

func newStream(t *testing.T) (*httptest.Server, *sse.Handler, cache.PubSub, string, int64) {
	t.Helper()
	c, ps := testutil.SetupTestCache(t)
	h := sse.NewHandler(ps, c, sec, zaptest.NewLogger(t))

	r := gin.New()
	r.GET("/sse", h.ServeSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	const userID = int64(7)
	token, err := mw.GenerateToken(userID, sec.JWTSecret, sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), mw.SessionKey(token), "7", time.Hour))
	return srv, h, ps, token, userID
}

// readEvent returns the next event name and data, skipping comments.
func readEvent(t *testing.T, rd *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestServeSSE_DeliversOwnNotifications(t *testing.T) {
	srv, h, ps, token, userID := newStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, rd)
	require.Equal(t, "connected", name)

	// Someone else's notification must not arrive.
	other, _ := json.Marshal(engine.Notification{Type: engine.NoteBadge, UserID: userID + 1})
	require.NoError(t, ps.Publish(ctx, engine.UserChannel(userID+1), string(other)))

	mine, _ := json.Marshal(engine.Notification{Type: engine.NoteLevelUp, UserID: userID, Data: map[string]int{"level": 3}})
	require.NoError(t, ps.Publish(ctx, engine.UserChannel(userID), string(mine)))

	name, data := readEvent(t, rd)
	assert.Equal(t, engine.NoteLevelUp, name)
	assert.Contains(t, data, `"level":3`)

	require.NoError(t, h.Announce(ctx, "maintenance at noon"))
	name, data = readEvent(t, rd)
	assert.Equal(t, "announce", name)
	assert.Equal(t, "maintenance at noon", data)
}

func TestServeSSE_RejectsBadTokens(t *testing.T) {
	srv, _, _, _, _ := newStream(t)

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sse?token=nonsense")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid signature but no session.
	token, err := mw.GenerateToken(9, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	resp, err = http.Get(srv.URL + "/sse?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
