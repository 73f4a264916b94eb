package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
)

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(config.CacheConfig{})
	require.NoError(t, err)
	return c
}

var testSec = config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}

func doGet(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Rejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/protected", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	orphan, err := GenerateToken(42, "secret", time.Hour) // no session stored
	require.NoError(t, err)

	cases := map[string]map[string]string{
		"missing header": nil,
		"not bearer":     {"Authorization": "Token abc123"},
		"garbage token":  {"Authorization": "Bearer notavalidtoken"},
		"no session":     {"Authorization": "Bearer " + orphan},
	}
	for name, hdr := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, doGet(r, "/protected", hdr).Code)
		})
	}
}

func TestAuth_SetsUserIDInContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := setupTestCache(t)

	var got int64
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/me", func(ctx *gin.Context) {
		got = GetUserID(ctx)
		ctx.Status(http.StatusOK)
	})

	token, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(token), "42", time.Hour))

	w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), got)
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, int64(0), GetUserID(c))
	c.Set(UserIDKey, int64(99))
	assert.Equal(t, int64(99), GetUserID(c))
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(key string, ips []string) *gin.Engine {
		r := gin.New()
		r.Use(AdminOnly(key, ips))
		r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	r := newRouter("k3y", nil)
	assert.Equal(t, http.StatusOK, doGet(r, "/admin", map[string]string{"X-Admin-Key": "k3y"}).Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", map[string]string{"X-Admin-Key": "nope"}).Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", nil).Code)

	disabled := newRouter("", nil)
	assert.Equal(t, http.StatusForbidden, doGet(disabled, "/admin", map[string]string{"X-Admin-Key": ""}).Code)

	// httptest requests come from 192.0.2.1
	pinned := newRouter("k3y", []string{"10.0.0.1"})
	assert.Equal(t, http.StatusForbidden, doGet(pinned, "/admin", map[string]string{"X-Admin-Key": "k3y"}).Code)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zaptest.NewLogger(t)))
	r.GET("/panic", func(c *gin.Context) { panic("test panic") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusInternalServerError, doGet(r, "/panic", nil).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/ok", nil).Code)
}

func TestLogger_LogsSuccessAndFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(zaptest.NewLogger(t)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusOK, doGet(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, doGet(r, "/fail", nil).Code)
}
