package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/engine"
)

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	engine *engine.Service
}

func NewRankingHandler(eng *engine.Service) *RankingHandler {
	return &RankingHandler{engine: eng}
}

// TopXP returns the top users sorted by total experience.
// GET /api/ranking/xp?limit=20
func (h *RankingHandler) TopXP(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= engine.RankingTop {
		limit = l
	}
	entries, err := h.engine.TopXP(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}
