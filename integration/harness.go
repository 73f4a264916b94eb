package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	apirest "github.com/Asuura666/game-habits/api/rest"
	"github.com/Asuura666/game-habits/api/sse"
	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/evaluator"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/scheduler"
	"github.com/Asuura666/game-habits/testutil"
	"github.com/Asuura666/game-habits/workers"
)

// AdminKey is the operator key accepted by every TestServer.
const AdminKey = "integration-admin-key"

// EvaluationJob is the scheduler name of the task evaluation sweep.
const EvaluationJob = "task_evaluation"

// TestServer is the full HTTP stack over SQLite, local cache and a fake
// model endpoint.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Engine *engine.Service
	Audit  *audit.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	Model  *FakeModel
	URL    string
	Sec    config.SecurityConfig
}

// FakeModel answers chat requests with a fixed difficulty. Setting Down
// makes it fail with 503.
type FakeModel struct {
	Difficulty atomic.Value
	Down       atomic.Bool
	Calls      atomic.Int32
	srv        *httptest.Server
}

func newFakeModel() *FakeModel {
	m := &FakeModel{}
	m.Difficulty.Store("epic")
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Calls.Add(1)
		if m.Down.Load() || r.URL.Path != "/api/chat" {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			return
		}
		answer := fmt.Sprintf(`{"difficulty":%q,"reasoning":"several sittings","subtasks":["plan","do","review"]}`,
			m.Difficulty.Load().(string))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   "fake",
			"message": map[string]string{"role": "assistant", "content": answer},
			"done":    true,
		})
	}))
	return m
}

// NewTestServer wires the same components as main with a long evaluation
// interval; tests trigger sweeps through the admin scheduler endpoint.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	model := newFakeModel()

	cfg := config.Default()
	cfg.Engine.RetryBackoff = 0
	cfg.Security = config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	cfg.Evaluator.Enabled = true
	cfg.Evaluator.BaseURL = model.srv.URL
	cfg.Evaluator.Model = "fake"
	cfg.Evaluator.MaxRetries = 1
	cfg.Evaluator.InitialBackoff = time.Millisecond
	cfg.Evaluator.MaxBackoff = time.Millisecond
	cfg.Evaluator.RateLimitRPS = 0

	auditSvc := audit.New(db, logger)
	eng, err := engine.New(cfg, badge.DefaultCatalog(), engine.Deps{
		DB: db, Cache: c, PubSub: pubsub, Audit: auditSvc, Logger: logger,
	})
	require.NoError(t, err)
	require.NoError(t, eng.SyncCatalog(context.Background()))

	provider := evaluator.NewRetrying(evaluator.NewHTTPProvider(cfg.Evaluator.BaseURL, cfg.Evaluator.Model, nil), cfg.Evaluator)
	sched, err := scheduler.New(logger)
	require.NoError(t, err)
	worker := workers.NewEvaluationWorker(eng, provider, cfg.Scheduler.EvaluationBatchSize, cfg.Scheduler.EvaluationConcurrency, logger)
	require.NoError(t, sched.Every(EvaluationJob, time.Hour, worker.Run))
	require.NoError(t, sched.Every("ranking_refresh", time.Hour, func(ctx context.Context) {
		_, _ = eng.RefreshRanking(ctx)
	}))
	sched.Start()

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &apirest.Handlers{
		Auth:     apirest.NewAuthHandler(db, c, cfg.Security, eng, auditSvc, logger),
		Profile:  apirest.NewProfileHandler(eng),
		Activity: apirest.NewActivityHandler(eng),
		Combat:   apirest.NewCombatHandler(eng),
		Badges:   apirest.NewBadgeHandler(eng),
		Ranking:  apirest.NewRankingHandler(eng),
		Admin:    apirest.NewAdminHandler(eng, sched, provider, logger),
	}
	h.Register(r, mw.Auth(cfg.Security, c), mw.AdminOnly(AdminKey, nil))
	r.GET("/sse", sse.NewHandler(pubsub, c, cfg.Security, logger).ServeSSE)

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Engine: eng,
		Audit:  auditSvc,
		Sched:  sched,
		Server: server,
		Model:  model,
		URL:    server.URL,
		Sec:    cfg.Security,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close stops background work and both HTTP servers. It is safe to call
// more than once.
func (ts *TestServer) Close() {
	_ = ts.Sched.Stop()
	ts.Server.Close()
	ts.Model.srv.Close()
	ts.Audit.Stop(context.Background())
}

var uniqueSeq atomic.Int64

// UniqueID returns prefix plus a process-unique suffix.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, uniqueSeq.Add(1))
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, bearer(token))
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, bearer(token))
}

// Admin sends an operator request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, map[string]string{"X-Admin-Key": AdminKey})
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and user ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, userID int64) {
	t.Helper()
	return ts.LoginAs(t, username, password, "")
}

// LoginAs is Login with a class for first-time registration.
func (ts *TestServer) LoginAs(t *testing.T, username, password, class string) (token string, userID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
		"class":    class,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.UserID
}

// CreateHabit creates a habit and returns its ID.
func (ts *TestServer) CreateHabit(t *testing.T, token, name, tier string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/habits", map[string]string{"name": name, "tier": tier}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		ID int64 `json:"id"`
	}
	ReadJSON(t, resp, &result)
	return result.ID
}

// --- SSE client ---

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// SSEClient reads a notification stream in a background goroutine.
type SSEClient struct {
	t      *testing.T
	cancel context.CancelFunc
	events chan Event
}

// ConnectSSE opens the notification stream and waits for the connected
// event, so later publishes are not missed.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		require.NoError(t, err, "SSE connect failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		require.Equal(t, http.StatusOK, resp.StatusCode, "SSE connect failed")
	}

	sc := &SSEClient{t: t, cancel: cancel, events: make(chan Event, 256)}
	go sc.readLoop(resp.Body)
	t.Cleanup(sc.Close)

	ev := sc.Next(5 * time.Second)
	require.Equal(t, "connected", ev.Name)
	return sc
}

func (sc *SSEClient) readLoop(body io.ReadCloser) {
	defer close(sc.events)
	defer body.Close()
	rd := bufio.NewReader(body)
	var cur Event
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.Name != "":
			sc.events <- cur
			cur = Event{}
		}
	}
}

// Next returns the next event or fails the test after timeout.
func (sc *SSEClient) Next(timeout time.Duration) Event {
	sc.t.Helper()
	select {
	case ev, ok := <-sc.events:
		require.True(sc.t, ok, "SSE stream closed")
		return ev
	case <-time.After(timeout):
		sc.t.Fatalf("no SSE event within %s", timeout)
		return Event{}
	}
}

// Until reads events until one named name arrives.
func (sc *SSEClient) Until(name string, timeout time.Duration) Event {
	sc.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		ev := sc.Next(time.Until(deadline))
		if ev.Name == name {
			return ev
		}
	}
}

// Close disconnects the stream.
func (sc *SSEClient) Close() { sc.cancel() }
