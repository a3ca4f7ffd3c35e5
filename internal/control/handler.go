package control

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"atg_dispatch/internal/httputil"
	"atg_dispatch/models"
	"atg_dispatch/pkg/dispatch"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Сколько последних записей журнала отдавать без параметра limit.
const defaultLogLimit = 100

// Engine управляет всеми аккаунтами сразу.
type Engine interface {
	Control(ctx context.Context, action string, startDelay [2]int) error
}

// Store читает журнал и сводку.
type Store interface {
	GetLogs(ctx context.Context, limit int) ([]models.Log, error)
	GetStats(ctx context.Context) (*models.Stats, error)
}

// Handler обрабатывает глобальные действия и сводку.
type Handler struct {
	Engine Engine
	DB     Store
	// base переживает HTTP-запрос: массовый запуск продолжается после ответа
	base       context.Context
	startDelay [2]int
	log        zerolog.Logger
}

// NewHandler создаёт обработчик. base живёт столько же, сколько сервис.
func NewHandler(base context.Context, engine Engine, db Store, startDelay [2]int, log zerolog.Logger) *Handler {
	return &Handler{
		Engine:     engine,
		DB:         db,
		base:       base,
		startDelay: startDelay,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// Global применяет start_all, stop_all или pause_all.
// Массовый запуск выполняется в фоне, остановка синхронно.
func (h *Handler) Global(c *gin.Context) {
	var in struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}

	switch in.Action {
	case dispatch.ActionStartAll:
		go func() {
			err := h.Engine.Control(h.base, in.Action, h.startDelay)
			switch {
			case errors.Is(err, context.Canceled):
				h.log.Info().Str("action", in.Action).Msg("[CONTROL] массовый запуск остановлен")
			case err != nil:
				h.log.Error().Err(err).Str("action", in.Action).Msg("[CONTROL] массовый запуск прерван")
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "action": in.Action})
	case dispatch.ActionStopAll, dispatch.ActionPauseAll:
		if err := h.Engine.Control(context.WithoutCancel(c.Request.Context()), in.Action, h.startDelay); err != nil {
			h.log.Error().Err(err).Str("action", in.Action).Msg("[CONTROL] ошибка массовой остановки")
			httputil.RespondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "action": in.Action})
	default:
		httputil.RespondError(c, http.StatusBadRequest, "unknown action")
	}
}

// Stats возвращает сводку по аккаунтам и отправкам.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.DB.GetStats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("[DB ERROR] не удалось получить статистику")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Logs возвращает последние записи журнала.
func (h *Handler) Logs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.RespondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 1000)
	}
	logs, err := h.DB.GetLogs(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("[DB ERROR] не удалось получить журнал")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	c.JSON(http.StatusOK, logs)
}
