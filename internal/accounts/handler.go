package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"atg_dispatch/internal/httputil"
	"atg_dispatch/models"
	"atg_dispatch/pkg/dispatch"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Engine запускает и останавливает аккаунты.
type Engine interface {
	Start(ctx context.Context, acc models.Account) error
	Stop(ctx context.Context, id int)
	IsRunning(id int) bool
	Snapshot(id int) (dispatch.Snapshot, bool)
}

// Store хранит аккаунты и очереди получателей.
type Store interface {
	GetAccount(ctx context.Context, id int) (*models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	AddRecipients(ctx context.Context, accountID int, identifiers []string) (int, error)
	GetRecipients(ctx context.Context, accountID int) ([]models.Recipient, error)
	ClearRecipients(ctx context.Context, accountID int) error
}

// Handler обрабатывает HTTP-запросы управления аккаунтами.
type Handler struct {
	Engine Engine
	DB     Store
	log    zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(engine Engine, db Store, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, DB: db, log: log.With().Str("component", "api").Logger()}
}

// accountView дополняет аккаунт признаком регистрации в движке.
type accountView struct {
	models.Account
	Active bool `json:"active"`
}

// List возвращает все аккаунты.
func (h *Handler) List(c *gin.Context) {
	accounts, err := h.DB.GetAccounts(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("[DB ERROR] не удалось получить аккаунты")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	out := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, accountView{Account: acc, Active: h.Engine.IsRunning(acc.ID)})
	}
	c.JSON(http.StatusOK, out)
}

// account загружает аккаунт из параметра пути, при ошибке отвечает сам.
func (h *Handler) account(c *gin.Context) (*models.Account, bool) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	acc, err := h.DB.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int("account_id", id).Msg("[DB ERROR] не удалось получить аккаунт")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return nil, false
	}
	if acc == nil {
		httputil.RespondError(c, http.StatusNotFound, "account not found")
		return nil, false
	}
	return acc, true
}

// Start подключает аккаунт и включает рассылку.
func (h *Handler) Start(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	err := h.Engine.Start(c.Request.Context(), *acc)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "started"})
	case errors.Is(err, dispatch.ErrConfiguration):
		httputil.RespondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dispatch.ErrConnect):
		httputil.RespondError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, dispatch.ErrStartCanceled):
		httputil.RespondError(c, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Int("account_id", acc.ID).Msg("[START] ошибка запуска")
		httputil.RespondError(c, http.StatusInternalServerError, err.Error())
	}
}

// Stop останавливает рассылку аккаунта.
func (h *Handler) Stop(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	// Остановка доводится до конца, даже если клиент отключился
	h.Engine.Stop(context.WithoutCancel(c.Request.Context()), id)
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// Runtime возвращает счётчики и сроки запущенного аккаунта.
func (h *Handler) Runtime(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	snap, running := h.Engine.Snapshot(id)
	if !running {
		c.JSON(http.StatusOK, gin.H{"account_id": id, "running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true, "runtime": snap})
}

// recipientsInput принимает список идентификаторов или текст, по одному на строку.
type recipientsInput struct {
	Identifiers []string `json:"identifiers"`
	Text        string   `json:"text"`
}

// parseIdentifiers убирает пустые строки и повторы, сохраняя порядок.
func parseIdentifiers(in recipientsInput) []string {
	raw := append([]string{}, in.Identifiers...)
	raw = append(raw, strings.Split(in.Text, "\n")...)

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			id := strings.TrimSpace(part)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// AddRecipients добавляет получателей в очередь аккаунта.
func (h *Handler) AddRecipients(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	var in recipientsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	ids := parseIdentifiers(in)
	if len(ids) == 0 {
		httputil.RespondError(c, http.StatusBadRequest, "no identifiers")
		return
	}
	added, err := h.DB.AddRecipients(c.Request.Context(), acc.ID, ids)
	if err != nil {
		h.log.Error().Err(err).Int("account_id", acc.ID).Msg("[DB ERROR] не удалось добавить получателей")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// ListRecipients возвращает очередь получателей аккаунта.
func (h *Handler) ListRecipients(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.DB.GetRecipients(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int("account_id", id).Msg("[DB ERROR] не удалось получить получателей")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	c.JSON(http.StatusOK, list)
}

// ClearRecipients очищает очередь получателей аккаунта.
func (h *Handler) ClearRecipients(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.DB.ClearRecipients(c.Request.Context(), id); err != nil {
		h.log.Error().Err(err).Int("account_id", id).Msg("[DB ERROR] не удалось очистить получателей")
		httputil.RespondError(c, http.StatusInternalServerError, "db error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
