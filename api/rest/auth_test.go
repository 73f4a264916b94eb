package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asuura666/game-habits/model"
)

func TestLogin_AutoRegisters(t *testing.T) {
	s := newServer(t, nil)

	w := s.post("/api/auth/login", map[string]string{"username": "newbie", "password": "pass1234", "class": "Mage"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, true, resp["registered"])

	var ch model.Character
	require.NoError(t, s.db.First(&ch, "user_id = ?", int64(resp["user_id"].(float64))).Error)
	assert.Equal(t, "mage", ch.Class)

	// Second login with the same credentials logs in.
	w = s.post("/api/auth/login", map[string]string{"username": "newbie", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, false, resp["registered"])
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newServer(t, nil)
	s.login(t, "alice", "")

	w := s.post("/api/auth/login", map[string]string{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_Banned(t *testing.T) {
	s := newServer(t, nil)
	_, id := s.login(t, "mallory", "")
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", id).Update("status", 0).Error)

	w := s.post("/api/auth/login", map[string]string{"username": "mallory", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_BadInput(t *testing.T) {
	s := newServer(t, nil)

	w := s.post("/api/auth/login", map[string]string{"username": "x", "password": "pass1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "username too short")

	w = s.post("/api/auth/login", map[string]string{"username": "bard", "password": "pass1234", "class": "bard"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown class")

	var n int64
	s.db.Model(&model.User{}).Count(&n)
	assert.Zero(t, n)
}

func TestLogout_EndsSession(t *testing.T) {
	s := newServer(t, nil)
	token, _ := s.login(t, "bob", "")

	require.Equal(t, http.StatusOK, s.get("/api/me", bearer(token)...).Code)
	require.Equal(t, http.StatusOK, s.post("/api/auth/logout", nil, bearer(token)...).Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/api/me", bearer(token)...).Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	s := newServer(t, nil)
	token, _ := s.login(t, "carol", "")

	w := s.post("/api/auth/refresh", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	require.NotEqual(t, token, resp.Token)

	assert.Equal(t, http.StatusOK, s.get("/api/me", bearer(resp.Token)...).Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/api/me", bearer(token)...).Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	s := newServer(t, nil)
	assert.Equal(t, http.StatusUnauthorized, s.get("/api/me").Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/api/me", "Authorization", "Bearer garbage").Code)
}
