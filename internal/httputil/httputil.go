package httputil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RespondError отправляет сообщение об ошибке в едином формате и прекращает обработку запроса.
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// ParamID читает положительный числовой параметр пути. При ошибке отвечает 400 и возвращает false.
func ParamID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
