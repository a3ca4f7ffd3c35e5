package models

import "time"

// Recipient описывает адресата рассылки от конкретного аккаунта.
// Identifier может быть номером телефона или username.
type Recipient struct {
	ID           int        `json:"id"`
	AccountID    int        `json:"account_id"`
	Identifier   string     `json:"identifier"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message"`
	SentAt       *time.Time `json:"sent_at"`
}
