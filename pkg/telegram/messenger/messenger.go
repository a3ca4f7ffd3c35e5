package messenger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"atg_dispatch/models"
	"atg_dispatch/pkg/telegram/module"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

// connectTimeout ограничивает установку соединения и проверку авторизации.
const connectTimeout = 60 * time.Second

// Credentials содержит всё, что нужно для подключения аккаунта.
type Credentials struct {
	AccountID int
	Phone     string
	Session   string
	APIID     int
	APIHash   string
	Proxy     *models.Proxy
}

// Client подключает аккаунты к Telegram через gotd и выполняет вызовы рассылки.
type Client struct {
	sessions module.SessionStore
	log      zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// New создаёт клиент. sessions может быть nil, тогда сессия живёт только в памяти.
func New(sessions module.SessionStore, log zerolog.Logger) *Client {
	return &Client{
		sessions: sessions,
		log:      log.With().Str("component", "messenger").Logger(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Conn хранит подключение одного аккаунта. Клиент gotd работает в отдельной горутине,
// пока не будет вызван Disconnect.
type Conn struct {
	accountID int
	selfID    int64
	api       *tg.Client
	cancel    context.CancelFunc
	done      chan struct{}
}

// SelfID возвращает Telegram ID авторизованного пользователя.
func (c *Conn) SelfID() int64 { return c.selfID }

func (c *Client) randomID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63()
}

// Connect поднимает соединение и проверяет, что сессия авторизована.
func (c *Client) Connect(ctx context.Context, cred Credentials) (Handle, Result) {
	var storage session.Storage
	if c.sessions != nil {
		storage = &module.DBSessionStorage{Store: c.sessions, AccountID: cred.AccountID}
	} else {
		mem := &session.StorageMemory{}
		if err := mem.StoreSession(ctx, []byte(cred.Session)); err != nil {
			return nil, Transient(err.Error())
		}
		storage = mem
	}

	client, err := module.Modf_AccountInitialization(cred.APIID, cred.APIHash, cred.Phone, cred.Proxy, storage)
	if err != nil {
		return nil, Transient(err.Error())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{accountID: cred.AccountID, cancel: cancel, done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		defer close(conn.done)
		err := client.Run(runCtx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				ready <- err
				return err
			}
			if !status.Authorized {
				ready <- errUnauthorized
				return errUnauthorized
			}
			if status.User != nil {
				conn.selfID = status.User.ID
			}
			conn.api = client.API()
			ready <- nil
			<-ctx.Done()
			return ctx.Err()
		})
		// Run мог завершиться до вызова колбэка, например при ошибке соединения
		select {
		case ready <- err:
		default:
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn().Err(err).Int("account_id", cred.AccountID).Msg("[CONNECT] клиент остановлен с ошибкой")
		}
	}()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-conn.done
			if errors.Is(err, session.ErrNotFound) {
				return nil, Fatal("session not found")
			}
			return nil, Classify(err)
		}
	case <-ctx.Done():
		cancel()
		return nil, Transient(ctx.Err().Error())
	case <-timer.C:
		cancel()
		return nil, Transient("connect timeout")
	}

	c.log.Info().Int("account_id", cred.AccountID).Int64("self_id", conn.selfID).Msg("[CONNECT] аккаунт подключён")
	return conn, OK()
}

// Disconnect останавливает клиент аккаунта и ждёт завершения его горутины.
func (c *Client) Disconnect(ctx context.Context, h Handle) error {
	conn, ok := h.(*Conn)
	if !ok || conn == nil {
		return fmt.Errorf("unknown handle %T", h)
	}
	conn.cancel()
	select {
	case <-conn.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveEntity ищет адресата по номеру телефона или username без импорта в контакты.
func (c *Client) ResolveEntity(ctx context.Context, h Handle, identifier string) (Target, Result) {
	conn, ok := h.(*Conn)
	if !ok || conn == nil || conn.api == nil {
		return Target{}, Transient("connection is not ready")
	}

	if IsPhone(identifier) {
		phone := NormalizePhone(identifier)
		resolved, err := conn.api.ContactsResolvePhone(ctx, phone[1:])
		if err != nil {
			return Target{}, Classify(err)
		}
		return targetFromResolved(resolved, phone)
	}

	username := Username(identifier)
	resolved, err := conn.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return Target{}, Classify(err)
	}
	return targetFromResolved(resolved, "@"+username)
}

// ImportContact добавляет номер в контакты аккаунта, чтобы получить доступ к пользователю.
func (c *Client) ImportContact(ctx context.Context, h Handle, phone string) (Target, Result) {
	conn, ok := h.(*Conn)
	if !ok || conn == nil || conn.api == nil {
		return Target{}, Transient("connection is not ready")
	}
	phone = NormalizePhone(phone)
	lastName := phone
	if len(phone) > 4 {
		lastName = phone[len(phone)-4:]
	}

	imported, err := conn.api.ContactsImportContacts(ctx, []tg.InputPhoneContact{{
		ClientID:  c.randomID(),
		Phone:     phone,
		FirstName: "Contact",
		LastName:  lastName,
	}})
	if err != nil {
		return Target{}, Classify(err)
	}
	for _, u := range imported.Users {
		if user, ok := u.(*tg.User); ok {
			return Target{Peer: &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, Display: phone}, OK()
		}
	}
	return Target{}, NotFound(fmt.Sprintf("user not found on Telegram: %s", phone))
}

// SendMessage отправляет текстовое сообщение адресату.
func (c *Client) SendMessage(ctx context.Context, h Handle, target Target, text string) Result {
	conn, ok := h.(*Conn)
	if !ok || conn == nil || conn.api == nil {
		return Transient("connection is not ready")
	}
	if target.Peer == nil {
		return Transient("empty target")
	}
	_, err := conn.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     target.Peer,
		Message:  text,
		RandomID: c.randomID(),
	})
	return Classify(err)
}

// targetFromResolved выбирает пира из ответа contacts.resolve*.
func targetFromResolved(resolved *tg.ContactsResolvedPeer, display string) (Target, Result) {
	switch peer := resolved.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if user, ok := u.(*tg.User); ok && user.ID == peer.UserID {
				return Target{Peer: &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, Display: display}, OK()
			}
		}
	case *tg.PeerChannel:
		for _, ch := range resolved.Chats {
			if channel, ok := ch.(*tg.Channel); ok && channel.ID == peer.ChannelID {
				return Target{Peer: &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, Display: display}, OK()
			}
		}
	case *tg.PeerChat:
		return Target{Peer: &tg.InputPeerChat{ChatID: peer.ChatID}, Display: display}, OK()
	}
	return Target{}, NotFound(fmt.Sprintf("peer not found: %s", display))
}
