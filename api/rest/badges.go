package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/engine"
	mw "github.com/Asuura666/game-habits/middleware"
)

// BadgeHandler serves the badge catalog and the caller's unlocks.
type BadgeHandler struct {
	engine *engine.Service
}

func NewBadgeHandler(eng *engine.Service) *BadgeHandler {
	return &BadgeHandler{engine: eng}
}

type badgeView struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	XPReward    int64  `json:"xp_reward"`
	Secret      bool   `json:"secret"`
}

// List handles GET /api/badges?q=. Secret badges keep their rule hidden.
func (h *BadgeHandler) List(c *gin.Context) {
	defs := badge.Search(h.engine.Badges().Definitions(), c.Query("q"))
	out := make([]badgeView, len(defs))
	for i, d := range defs {
		out[i] = badgeView{Code: d.Code, Name: d.Name, Description: d.Description, XPReward: d.XPReward, Secret: d.Hidden()}
		if d.Hidden() {
			out[i].Description = "???"
		}
	}
	c.JSON(http.StatusOK, gin.H{"badges": out})
}

// Mine handles GET /api/me/badges.
func (h *BadgeHandler) Mine(c *gin.Context) {
	ubs, err := h.engine.UserBadges(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": ubs})
}
