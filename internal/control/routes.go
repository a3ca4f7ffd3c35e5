package control

import "github.com/gin-gonic/gin"

// SetupRoutes регистрирует маршруты глобального управления.
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/control", h.Global)
	r.GET("/stats", h.Stats)
	r.GET("/logs", h.Logs)
}
