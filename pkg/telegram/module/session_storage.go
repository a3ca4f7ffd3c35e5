package module

import (
	"context"

	"github.com/gotd/td/session"
	"github.com/rs/zerolog/log"
)

// SessionStore читает и сохраняет сессии аккаунтов.
type SessionStore interface {
	LoadSession(ctx context.Context, accountID int) (string, error)
	UpdateSession(ctx context.Context, accountID int, data []byte) error
}

// DBSessionStorage хранит и загружает сессии Telegram из accounts.session_string,
// чтобы обновлённые gotd ключи переживали перезапуск сервиса.
type DBSessionStorage struct {
	Store     SessionStore
	AccountID int
}

// LoadSession загружает текст сессии из БД.
func (s *DBSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.Store == nil {
		return nil, session.ErrNotFound
	}
	data, err := s.Store.LoadSession(ctx, s.AccountID)
	if err != nil {
		log.Error().Err(err).Int("account_id", s.AccountID).Msg("[SESSION] ошибка чтения сессии")
		return nil, err
	}
	if data == "" {
		return nil, session.ErrNotFound
	}
	return []byte(data), nil
}

// StoreSession сохраняет текст сессии в БД.
func (s *DBSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.Store == nil {
		return session.ErrNotFound
	}
	if err := s.Store.UpdateSession(ctx, s.AccountID, data); err != nil {
		log.Error().Err(err).Int("account_id", s.AccountID).Msg("[SESSION] ошибка сохранения сессии")
		return err
	}
	return nil
}
