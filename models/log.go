package models

import "time"

// Log описывает запись журнала, видимую оператору.
type Log struct {
	ID        int       `json:"id"`
	AccountID *int      `json:"account_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats содержит сводку для панели оператора.
type Stats struct {
	TotalAccounts  int `json:"total_accounts"`
	ActiveAccounts int `json:"active_accounts"`
	MessagesSent   int `json:"messages_sent"`
	Errors         int `json:"errors"`
	FloodBanned    int `json:"flood_banned"`
}
