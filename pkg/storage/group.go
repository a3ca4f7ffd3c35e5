package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atg_dispatch/models"
)

// GetGroup возвращает группу аккаунтов с общим шаблоном. Для отсутствующей группы возвращается nil без ошибки.
func (db *DB) GetGroup(ctx context.Context, id int) (*models.Group, error) {
	var (
		g         models.Group
		createdAt sql.NullTime
	)
	err := db.Conn.QueryRowContext(ctx,
		"SELECT id, name, message_template, created_at FROM account_groups WHERE id = $1", id,
	).Scan(&g.ID, &g.Name, &g.MessageTemplate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	if createdAt.Valid {
		g.CreatedAt = createdAt.Time
	}
	return &g, nil
}
