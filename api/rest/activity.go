package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/reward"
	mw "github.com/Asuura666/game-habits/middleware"
	"github.com/Asuura666/game-habits/model"
)

// ActivityHandler handles habits and tasks, including their completion.
type ActivityHandler struct {
	engine *engine.Service
}

func NewActivityHandler(eng *engine.Service) *ActivityHandler {
	return &ActivityHandler{engine: eng}
}

type createHabitRequest struct {
	Name string `json:"name" binding:"required,min=1,max=128"`
	Tier string `json:"tier" binding:"required"`
}

// CreateHabit handles POST /api/habits.
func (h *ActivityHandler) CreateHabit(c *gin.Context) {
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	habit := &model.Habit{UserID: mw.GetUserID(c), Name: req.Name, Tier: req.Tier}
	if err := h.engine.CreateHabit(c.Request.Context(), habit); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

// ListHabits handles GET /api/habits.
func (h *ActivityHandler) ListHabits(c *gin.Context) {
	hs, err := h.engine.Habits(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": hs})
}

// CompleteHabit handles POST /api/habits/:id/complete.
func (h *ActivityHandler) CompleteHabit(c *gin.Context) {
	h.complete(c, reward.KindHabit)
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=256"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at"`
	// Difficulty fixes the tier and skips the evaluator.
	Difficulty string `json:"difficulty"`
}

// CreateTask handles POST /api/tasks.
func (h *ActivityHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := &model.Task{
		UserID:      mw.GetUserID(c),
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		ManualTier:  req.Difficulty,
	}
	if err := h.engine.CreateTask(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GetTask handles GET /api/tasks/:id.
func (h *ActivityHandler) GetTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.engine.Task(c.Request.Context(), mw.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CompleteTask handles POST /api/tasks/:id/complete.
func (h *ActivityHandler) CompleteTask(c *gin.Context) {
	h.complete(c, reward.KindTask)
}

func (h *ActivityHandler) complete(c *gin.Context, kind reward.Kind) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	at := h.engine.Clock().Now()
	res, err := h.engine.RecordCompletion(c.Request.Context(), mw.GetUserID(c), engine.Activity{Kind: kind, ID: id}, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
