package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/api/rest"
	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/evaluator"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/scheduler"
	"github.com/Asuura666/game-habits/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminKey = "admin-test-key"

type server struct {
	r      *gin.Engine
	db     *gorm.DB
	engine *engine.Service
	sched  *scheduler.Scheduler
	runs   *atomic.Int32
}

// newServer wires every handler over a fresh SQLite database and local
// cache. provider may be nil.
func newServer(t *testing.T, provider evaluator.Provider) *server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)

	cfg := config.Default()
	cfg.Engine.RetryBackoff = 0
	cfg.Security = config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}

	eng, err := engine.New(cfg, badge.DefaultCatalog(), engine.Deps{DB: db, Cache: c, PubSub: ps, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, eng.SyncCatalog(context.Background()))

	sched, err := scheduler.New(logger)
	require.NoError(t, err)
	runs := new(atomic.Int32)
	require.NoError(t, sched.Every("noop", time.Hour, func(context.Context) { runs.Add(1) }))
	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	h := &rest.Handlers{
		Auth:     rest.NewAuthHandler(db, c, cfg.Security, eng, nil, logger),
		Profile:  rest.NewProfileHandler(eng),
		Activity: rest.NewActivityHandler(eng),
		Combat:   rest.NewCombatHandler(eng),
		Badges:   rest.NewBadgeHandler(eng),
		Ranking:  rest.NewRankingHandler(eng),
		Admin:    rest.NewAdminHandler(eng, sched, provider, logger),
	}
	r := gin.New()
	h.Register(r, mw.Auth(cfg.Security, c), mw.AdminOnly(adminKey, nil))

	return &server{r: r, db: db, engine: eng, sched: sched, runs: runs}
}

func (s *server) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *server) post(path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, body, headers...)
}

func (s *server) get(path string, headers ...string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, nil, headers...)
}

// login registers (or logs in) a user and returns its token and id.
func (s *server) login(t *testing.T, username, class string) (string, int64) {
	t.Helper()
	w := s.post("/api/auth/login", map[string]string{"username": username, "password": "pass1234", "class": class})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.UserID
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
