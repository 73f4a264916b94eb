package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/engine"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/model"
)

const bcryptCost = 12

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	engine *engine.Service
	audit  audit.Logger
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. al may be nil.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, eng *engine.Service, al audit.Logger, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{db: db, cache: c, sec: sec, engine: eng, audit: al, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
	// Class only matters on the first login, which registers the user.
	Class string `json:"class"`
}

// Login handles POST /api/auth/login.
// Auto-registers on first login if the username does not exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	started := time.Now()

	var u model.User
	registered := false
	err := h.db.Where("username = ?", req.Username).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		class, err := character.ParseClass(req.Class)
		if err != nil {
			respondError(c, err)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		created, err := h.engine.RegisterUser(c.Request.Context(), req.Username, string(hash), class)
		if err != nil {
			// Unique constraint violation: another request registered the same name.
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				h.logger.Error("register user", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}
		u = *created
		registered = true
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if u.Status == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}
	}

	token, err := mw.GenerateToken(u.ID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(u.ID, 10), h.sec.JWTTTLH); err != nil {
		h.logger.Error("store session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	// Update last login (best-effort).
	_ = h.db.Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	}).Error

	if h.audit != nil {
		h.audit.Log(audit.Entry{
			TraceID:    audit.TraceIDFrom(c.Request.Context()),
			UserID:     &u.ID,
			Action:     audit.ActionLogin,
			Request:    gin.H{"username": u.Username, "ip": c.ClientIP()},
			Response:   gin.H{"registered": registered},
			DurationMs: int(time.Since(started).Milliseconds()),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"user_id":    u.ID,
		"registered": registered,
	})
}

func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenStr := bearer(c)
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(tokenStr))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := mw.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(bearer(c)))

	newToken, err := mw.GenerateToken(userID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	_ = h.cache.Set(ctx, mw.SessionKey(newToken), strconv.FormatInt(userID, 10), h.sec.JWTTTLH)
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}
