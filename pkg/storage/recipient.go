package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atg_dispatch/models"

	"github.com/lib/pq"
)

const recipientColumns = `id, account_id, identifier, status, error_message, sent_at`

func scanRecipient(row rowScanner) (*models.Recipient, error) {
	var (
		r      models.Recipient
		status sql.NullString
	)
	if err := row.Scan(&r.ID, &r.AccountID, &r.Identifier, &status, &r.ErrorMessage, &r.SentAt); err != nil {
		return nil, err
	}
	r.Status = models.RecipientPending
	if status.Valid && status.String != "" {
		r.Status = status.String
	}
	return &r, nil
}

// GetNextPendingRecipient возвращает самого старого адресата в статусе pending.
// Если очередь пуста, возвращается nil без ошибки.
func (db *DB) GetNextPendingRecipient(ctx context.Context, accountID int) (*models.Recipient, error) {
	row := db.Conn.QueryRowContext(ctx, `
              SELECT `+recipientColumns+`
              FROM recipients
              WHERE account_id = $1 AND status = 'pending'
              ORDER BY id
              LIMIT 1
       `, accountID)
	r, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending recipient for account %d: %w", accountID, err)
	}
	return r, nil
}

// UpdateRecipientStatus переводит адресата из pending в конечный статус.
// Условие status = 'pending' не даёт вернуть адресата в очередь или перезаписать итог.
func (db *DB) UpdateRecipientStatus(ctx context.Context, id int, status, errMsg string) error {
	var errValue sql.NullString
	if errMsg != "" {
		errValue = sql.NullString{String: errMsg, Valid: true}
	}
	sentAt := "NULL"
	if status == models.RecipientSent {
		sentAt = "NOW()"
	}
	_, err := db.Conn.ExecContext(ctx, `
              UPDATE recipients
              SET status = $1, error_message = $2, sent_at = `+sentAt+`
              WHERE id = $3 AND status = 'pending'
       `, status, errValue, id)
	if err != nil {
		return fmt.Errorf("update recipient %d: %w", id, err)
	}
	return nil
}

// AddRecipients добавляет адресатов в очередь аккаунта одним запросом.
func (db *DB) AddRecipients(ctx context.Context, accountID int, identifiers []string) (int, error) {
	if len(identifiers) == 0 {
		return 0, nil
	}
	res, err := db.Conn.ExecContext(ctx, `
              INSERT INTO recipients (account_id, identifier, status)
              SELECT $1, unnest($2::text[]), 'pending'
       `, accountID, pq.Array(identifiers))
	if err != nil {
		return 0, fmt.Errorf("add recipients: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(identifiers), nil
	}
	return int(n), nil
}

// GetRecipients возвращает всех адресатов аккаунта.
func (db *DB) GetRecipients(ctx context.Context, accountID int) ([]models.Recipient, error) {
	rows, err := db.Conn.QueryContext(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("get recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, *r)
	}
	return recipients, rows.Err()
}

// ClearRecipients удаляет очередь аккаунта целиком.
func (db *DB) ClearRecipients(ctx context.Context, accountID int) error {
	_, err := db.Conn.ExecContext(ctx, "DELETE FROM recipients WHERE account_id = $1", accountID)
	return err
}
