package models

import "time"

// Типы расписания автозапуска аккаунта.
const (
	ScheduleManual = "manual"
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
)

// Account описывает аккаунт Telegram, от имени которого идёт рассылка.
// SessionString хранит сериализованную сессию gotd, без неё аккаунт не запустить.
type Account struct {
	ID              int        `json:"id"`
	Phone           string     `json:"phone_number"`
	SessionString   string     `json:"-"`
	ApiID           *int       `json:"api_id"`
	ApiHash         *string    `json:"api_hash"`
	ProxyURL        *string    `json:"proxy_url"`
	GroupID         *int       `json:"group_id"`
	MessageTemplate *string    `json:"message_template"`
	IsRunning       bool       `json:"is_running"`
	Status          string     `json:"status"`
	LastError       *string    `json:"last_error"`
	MinDelaySeconds int        `json:"min_delay_seconds"`
	MaxDelaySeconds int        `json:"max_delay_seconds"`
	ScheduleType    string     `json:"schedule_type"`
	ScheduleTime    *string    `json:"schedule_time"` // HH:MM
	ScheduleDays    []string   `json:"schedule_days"` // mon, tue, ...
	FloodWaitUntil  *time.Time `json:"floodwait_until"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasSession сообщает, сохранена ли сессия аккаунта.
func (a Account) HasSession() bool {
	return a.SessionString != ""
}

// AccountUpdate перечисляет изменяемые поля аккаунта.
// Поле со значением nil не обновляется.
type AccountUpdate struct {
	IsRunning      *bool
	Status         *string
	LastError      *string
	FloodWaitUntil *time.Time
	ClearFloodWait bool
}

// Empty возвращает true, если обновлять нечего.
func (u AccountUpdate) Empty() bool {
	return u.IsRunning == nil && u.Status == nil && u.LastError == nil && u.FloodWaitUntil == nil && !u.ClearFloodWait
}
