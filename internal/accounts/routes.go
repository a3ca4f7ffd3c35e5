package accounts

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes регистрирует маршруты управления аккаунтами.
func SetupRoutes(r *gin.RouterGroup, engine Engine, db Store, log zerolog.Logger) {
	h := NewHandler(engine, db, log)
	r.GET("", h.List)
	r.POST("/:id/start", h.Start)
	r.POST("/:id/stop", h.Stop)
	r.GET("/:id/runtime", h.Runtime)
	r.GET("/:id/recipients", h.ListRecipients)
	r.POST("/:id/recipients", h.AddRecipients)
	r.DELETE("/:id/recipients", h.ClearRecipients)
}
