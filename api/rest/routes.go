package rest

import "github.com/gin-gonic/gin"

// Handlers groups every REST handler for route registration.
type Handlers struct {
	Auth     *AuthHandler
	Profile  *ProfileHandler
	Activity *ActivityHandler
	Combat   *CombatHandler
	Badges   *BadgeHandler
	Ranking  *RankingHandler
	Admin    *AdminHandler
}

// Register mounts the API under /api. auth guards player routes and admin
// guards operator routes; a nil Admin handler leaves them unmounted.
func (h *Handlers) Register(r gin.IRouter, auth, admin gin.HandlerFunc) {
	api := r.Group("/api")
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/badges", h.Badges.List)
	api.GET("/ranking/xp", h.Ranking.TopXP)

	user := api.Group("", auth)
	user.POST("/auth/refresh", h.Auth.Refresh)

	user.GET("/me", h.Profile.Me)
	user.POST("/me/stats", h.Profile.AllocateStats)
	user.GET("/me/equipment", h.Profile.Equipment)
	user.POST("/me/equipment/:id", h.Profile.Equip)
	user.GET("/me/badges", h.Badges.Mine)

	user.POST("/habits", h.Activity.CreateHabit)
	user.GET("/habits", h.Activity.ListHabits)
	user.POST("/habits/:id/complete", h.Activity.CompleteHabit)
	user.POST("/tasks", h.Activity.CreateTask)
	user.GET("/tasks/:id", h.Activity.GetTask)
	user.POST("/tasks/:id/complete", h.Activity.CompleteTask)

	user.POST("/combat/challenge", h.Combat.Challenge)
	user.GET("/combat/:id", h.Combat.Get)

	if h.Admin == nil {
		return
	}
	adm := api.Group("/admin", admin)
	adm.POST("/tasks/:id/reevaluate", h.Admin.ReevaluateTask)
	adm.POST("/streaks/replenish", h.Admin.ReplenishStreaks)
	adm.GET("/scheduler", h.Admin.ListSchedulerTasks)
	adm.POST("/scheduler/:name/run", h.Admin.RunSchedulerTask)
}
