package module

import (
	"fmt"

	"atg_dispatch/models"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

// Modf_AccountInitialization создаёт клиент Telegram с указанным хранилищем сессии.
// Если у аккаунта задан прокси, все соединения идут через SOCKS5.
func Modf_AccountInitialization(apiID int, apiHash, phone string, p *models.Proxy, storage session.Storage) (*telegram.Client, error) {
	if storage == nil {
		storage = &session.StorageMemory{}
	}
	opts := telegram.Options{SessionStorage: storage}
	if p != nil {
		var auth *proxy.Auth
		if p.Login != "" || p.Password != "" {
			auth = &proxy.Auth{User: p.Login, Password: p.Password}
		}
		d, err := proxy.SOCKS5("tcp", p.Addr(), auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		dc, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer missing context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dc.DialContext})
		log.Info().Str("phone", phone).Str("proxy", p.Addr()).Msg("[PROXY] подключение через прокси")
	}
	return telegram.NewClient(apiID, apiHash, opts), nil
}
