package models

// Значения поля accounts.status
const (
	StatusIdle             = "idle"
	StatusRunning          = "running"
	StatusWaiting          = "waiting"
	StatusSending          = "sending"
	StatusFloodWait        = "flood-wait"
	StatusPausedDailyLimit = "paused-daily-limit"
	StatusError            = "error"
	StatusReAuthNeeded     = "re-auth-needed"
)

// Значения поля recipients.status
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientFailed  = "failed"
)

// Уровни записей в таблице logs
const (
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)
