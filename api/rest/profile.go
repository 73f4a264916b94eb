package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/engine"
	mw "github.com/Asuura666/game-habits/middleware"
)

// ProfileHandler serves the caller's own progression, stats and gear.
type ProfileHandler struct {
	engine *engine.Service
}

func NewProfileHandler(eng *engine.Service) *ProfileHandler {
	return &ProfileHandler{engine: eng}
}

// Me handles GET /api/me.
func (h *ProfileHandler) Me(c *gin.Context) {
	p, err := h.engine.Profile(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AllocateStats handles POST /api/me/stats.
func (h *ProfileHandler) AllocateStats(c *gin.Context) {
	var req engine.StatAllocation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := h.engine.AllocatePoints(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Equipment handles GET /api/me/equipment.
func (h *ProfileHandler) Equipment(c *gin.Context) {
	items, err := h.engine.Equipment(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"equipment": items})
}

type equipRequest struct {
	Equipped *bool `json:"equipped" binding:"required"`
}

// Equip handles POST /api/me/equipment/:id.
func (h *ProfileHandler) Equip(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.engine.Equip(c.Request.Context(), mw.GetUserID(c), id, *req.Equipped)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
