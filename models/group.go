package models

import "time"

// Group объединяет аккаунты с общим шаблоном сообщения.
type Group struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	MessageTemplate *string   `json:"message_template"`
	CreatedAt       time.Time `json:"created_at"`
}
