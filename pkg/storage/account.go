package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"atg_dispatch/models"

	"github.com/lib/pq"
)

// Каст к text[] позволяет сканировать schedule_days напрямую в pq.StringArray
const accountColumns = `id, phone_number, session_string, api_id, api_hash, proxy_url, group_id, message_template,
              is_running, status, last_error, min_delay_seconds, max_delay_seconds,
              schedule_type, schedule_time, schedule_days::text[], floodwait_until, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account      models.Account
		session      sql.NullString
		status       sql.NullString
		minDelay     sql.NullInt64
		maxDelay     sql.NullInt64
		scheduleType sql.NullString
		days         pq.StringArray
		createdAt    sql.NullTime
	)
	err := row.Scan(
		&account.ID,
		&account.Phone,
		&session,
		&account.ApiID,
		&account.ApiHash,
		&account.ProxyURL,
		&account.GroupID,
		&account.MessageTemplate,
		&account.IsRunning,
		&status,
		&account.LastError,
		&minDelay,
		&maxDelay,
		&scheduleType,
		&account.ScheduleTime,
		&days,
		&account.FloodWaitUntil,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	account.SessionString = session.String
	account.Status = models.StatusIdle
	if status.Valid && status.String != "" {
		account.Status = status.String
	}
	// Значения по умолчанию совпадают с DEFAULT в таблице accounts
	account.MinDelaySeconds = 60
	if minDelay.Valid {
		account.MinDelaySeconds = int(minDelay.Int64)
	}
	account.MaxDelaySeconds = 180
	if maxDelay.Valid {
		account.MaxDelaySeconds = int(maxDelay.Int64)
	}
	account.ScheduleType = models.ScheduleManual
	if scheduleType.Valid && scheduleType.String != "" {
		account.ScheduleType = scheduleType.String
	}
	account.ScheduleDays = []string(days)
	if createdAt.Valid {
		account.CreatedAt = createdAt.Time
	}
	return &account, nil
}

// GetAccount возвращает аккаунт по ID. Если аккаунт удалён, возвращается nil без ошибки.
func (db *DB) GetAccount(ctx context.Context, id int) (*models.Account, error) {
	row := db.Conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

// GetAccounts возвращает все аккаунты в порядке создания.
func (db *DB) GetAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := db.Conn.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccount обновляет только переданные поля аккаунта.
func (db *DB) UpdateAccount(ctx context.Context, id int, upd models.AccountUpdate) error {
	if upd.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.IsRunning != nil {
		add("is_running", *upd.IsRunning)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.LastError != nil {
		add("last_error", *upd.LastError)
	}
	if upd.FloodWaitUntil != nil {
		add("floodwait_until", *upd.FloodWaitUntil)
	} else if upd.ClearFloodWait {
		sets = append(sets, "floodwait_until = NULL")
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := db.Conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	return nil
}

// UpdateSession сохраняет обновлённую сессию gotd, чтобы ключи пережили перезапуск.
func (db *DB) UpdateSession(ctx context.Context, id int, data []byte) error {
	_, err := db.Conn.ExecContext(ctx, "UPDATE accounts SET session_string = $1 WHERE id = $2", string(data), id)
	return err
}

// LoadSession читает сессию gotd аккаунта. Пустая строка означает отсутствие сессии.
func (db *DB) LoadSession(ctx context.Context, id int) (string, error) {
	var data sql.NullString
	err := db.Conn.QueryRowContext(ctx, "SELECT session_string FROM accounts WHERE id = $1", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data.String, nil
}
