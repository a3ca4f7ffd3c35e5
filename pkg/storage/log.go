package storage

import (
	"context"
	"fmt"

	"atg_dispatch/models"
)

// AddLog сохраняет событие в журнале оператора.
// accountID равен nil для событий, не относящихся к конкретному аккаунту.
// Время записи проставляет сама БД через DEFAULT NOW().
func (db *DB) AddLog(ctx context.Context, accountID *int, level, message string) error {
	_, err := db.Conn.ExecContext(ctx,
		"INSERT INTO logs (account_id, level, message) VALUES ($1, $2, $3)",
		accountID, level, message,
	)
	if err != nil {
		return fmt.Errorf("add log: %w", err)
	}
	return nil
}

// GetLogs возвращает последние записи журнала, новые первыми.
func (db *DB) GetLogs(ctx context.Context, limit int) ([]models.Log, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Conn.QueryContext(ctx,
		"SELECT id, account_id, level, message, created_at FROM logs ORDER BY created_at DESC LIMIT $1", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}
	defer rows.Close()

	var logs []models.Log
	for rows.Next() {
		var l models.Log
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetStats собирает сводку по аккаунтам и адресатам.
func (db *DB) GetStats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	err := db.Conn.QueryRowContext(ctx, `
              SELECT
                  (SELECT COUNT(*) FROM accounts),
                  (SELECT COUNT(*) FROM accounts WHERE is_running = true),
                  (SELECT COUNT(*) FROM recipients WHERE status = 'sent'),
                  (SELECT COUNT(*) FROM recipients WHERE status = 'failed'),
                  (SELECT COUNT(*) FROM accounts WHERE floodwait_until IS NOT NULL AND floodwait_until > NOW())
       `).Scan(&s.TotalAccounts, &s.ActiveAccounts, &s.MessagesSent, &s.Errors, &s.FloodBanned)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &s, nil
}
