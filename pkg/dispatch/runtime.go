package dispatch

import (
	"sync"
	"time"

	"atg_dispatch/pkg/telegram/messenger"

	"golang.org/x/time/rate"
)

// window считает события в скользящем окне. Окно начинается при первом обращении
// после истечения предыдущего и не привязано к полуночи.
type window struct {
	count   int
	resetAt time.Time
}

func (w *window) roll(now time.Time) {
	if w.resetAt.IsZero() || now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(quotaWindow)
	}
}

// runtime хранит состояние выполнения одного запущенного аккаунта.
// Существует ровно столько, сколько аккаунт зарегистрирован в Coordinator.
type runtime struct {
	accountID int
	handle    messenger.Handle

	// guard не даёт двум шагам одного аккаунта выполняться одновременно
	guard sync.Mutex

	// Предупреждения пишутся один раз за паузу, поля меняются только под guard
	limitWarned    bool
	templateWarned bool

	mu             sync.Mutex
	startedAt      time.Time
	lastSentAt     time.Time
	nextSendAt     time.Time
	floodWaitUntil time.Time
	messages       window
	imports        window
	hourly         *rate.Limiter
	awaitingImport bool
}

func newRuntime(accountID int, handle messenger.Handle, limits Limits, now time.Time) *runtime {
	rt := &runtime{accountID: accountID, handle: handle, startedAt: now}
	if limits.MessagesPerHour > 0 {
		rt.hourly = rate.NewLimiter(rate.Every(time.Hour/time.Duration(limits.MessagesPerHour)), limits.MessagesPerHour)
	}
	return rt
}

// Snapshot показывает оператору состояние выполнения аккаунта.
type Snapshot struct {
	AccountID          int        `json:"account_id"`
	StartedAt          time.Time  `json:"started_at"`
	LastSentAt         *time.Time `json:"last_sent_at"`
	NextSendAt         *time.Time `json:"next_send_at"`
	FloodWaitRemaining int        `json:"flood_wait_remaining"`
	MessagesToday      int        `json:"messages_today"`
	MessagesResetAt    *time.Time `json:"messages_reset_at"`
	ImportsToday       int        `json:"imports_today"`
	ImportsResetAt     *time.Time `json:"imports_reset_at"`
	AwaitingImport     bool       `json:"awaiting_import"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
