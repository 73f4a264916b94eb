package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/engine"
	mw "github.com/Asuura666/game-habits/middleware"
)

// CombatHandler handles PvP challenges.
type CombatHandler struct {
	engine *engine.Service
}

func NewCombatHandler(eng *engine.Service) *CombatHandler {
	return &CombatHandler{engine: eng}
}

type challengeRequest struct {
	DefenderID int64 `json:"defender_id" binding:"required"`
	Bet        int64 `json:"bet"`
}

// Challenge handles POST /api/combat/challenge.
func (h *CombatHandler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.engine.ResolveCombat(c.Request.Context(), mw.GetUserID(c), req.DefenderID, req.Bet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Get handles GET /api/combat/:id. Only the two participants may read a
// record.
func (h *CombatHandler) Get(c *gin.Context) {
	rec, err := h.engine.Combat(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	me := mw.GetUserID(c)
	if rec.ChallengerID != me && rec.DefenderID != me {
		c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
