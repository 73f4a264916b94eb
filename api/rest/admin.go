package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/game/engine"
	"github.com/Asuura666/game-habits/game/evaluator"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/scheduler"
)

// AdminHandler handles operator endpoints. Routes should be protected by
// the AdminOnly middleware.
type AdminHandler struct {
	engine   *engine.Service
	sched    *scheduler.Scheduler
	provider evaluator.Provider
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler. provider may be nil when the
// evaluator is disabled; reevaluation then needs an explicit body.
func NewAdminHandler(eng *engine.Service, sched *scheduler.Scheduler, provider evaluator.Provider, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{engine: eng, sched: sched, provider: provider, logger: logger}
}

type reevaluateRequest struct {
	Difficulty string   `json:"difficulty" binding:"required"`
	Reasoning  string   `json:"reasoning"`
	Subtasks   []string `json:"subtasks"`
}

// ReevaluateTask stores a new difficulty evaluation for a task. The body
// is an evaluation ({"difficulty", "reasoning", "subtasks"}); with an
// empty body the configured provider is asked instead.
// POST /api/admin/tasks/:id/reevaluate
func (h *AdminHandler) ReevaluateTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		ev  evaluator.Evaluation
		req reevaluateRequest
	)
	err := c.ShouldBindJSON(&req)
	switch {
	case errors.Is(err, io.EOF):
		if h.provider == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "evaluator disabled: send an evaluation"})
			return
		}
		t, err := h.engine.TaskByID(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		ev, err = h.provider.Evaluate(ctx, evaluator.TaskPrompt{
			TaskID: t.ID, Title: t.Title, Description: t.Description, DueAt: t.DueAt,
		})
		if err != nil {
			respondError(c, err)
			return
		}
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		tier, err := reward.ParseTier(req.Difficulty)
		if err != nil {
			respondError(c, err)
			return
		}
		ev = evaluator.Evaluation{Tier: tier, Reasoning: req.Reasoning, Subtasks: req.Subtasks}
		if ev.Subtasks == nil {
			ev.Subtasks = []string{}
		}
	}

	res, changed, err := h.engine.ReevaluateTaskReward(ctx, id, ev)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("admin reevaluated task", zap.Int64("task_id", id), zap.Bool("changed", changed))
	c.JSON(http.StatusOK, gin.H{"changed": changed, "preview": res, "evaluation": ev})
}

// ReplenishStreaks runs the weekly freeze replenishment now.
// POST /api/admin/streaks/replenish
func (h *AdminHandler) ReplenishStreaks(c *gin.Context) {
	n, err := h.engine.ReplenishFreezes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": n})
}

// ListSchedulerTasks returns all registered jobs.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Jobs()})
}

// RunSchedulerTask triggers a job outside its schedule.
// POST /api/admin/scheduler/:name/run
func (h *AdminHandler) RunSchedulerTask(c *gin.Context) {
	if err := h.sched.RunNow(c.Param("name")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
