package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"atg_dispatch/models"
	"atg_dispatch/pkg/telegram/messenger"

	"github.com/rs/zerolog"
)

// Store описывает операции хранилища, нужные движку.
type Store interface {
	GetAccount(ctx context.Context, id int) (*models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccount(ctx context.Context, id int, upd models.AccountUpdate) error
	GetNextPendingRecipient(ctx context.Context, accountID int) (*models.Recipient, error)
	UpdateRecipientStatus(ctx context.Context, id int, status, errMsg string) error
	GetGroup(ctx context.Context, id int) (*models.Group, error)
	AddLog(ctx context.Context, accountID *int, level, message string) error
}

// Messenger описывает вызовы Telegram, нужные движку. Все исходы размечены messenger.Result.
type Messenger interface {
	Connect(ctx context.Context, cred messenger.Credentials) (messenger.Handle, messenger.Result)
	Disconnect(ctx context.Context, h messenger.Handle) error
	ResolveEntity(ctx context.Context, h messenger.Handle, identifier string) (messenger.Target, messenger.Result)
	ImportContact(ctx context.Context, h messenger.Handle, phone string) (messenger.Target, messenger.Result)
	SendMessage(ctx context.Context, h messenger.Handle, target messenger.Target, text string) messenger.Result
}

// Options передаёт Coordinator зависимости и настройки.
type Options struct {
	Store     Store
	Messenger Messenger
	Logger    zerolog.Logger
	Limits    Limits

	// API-ключи по умолчанию для аккаунтов без собственных api_id/api_hash
	APIID   int
	APIHash string

	// Часовой пояс календарного автозапуска
	Location *time.Location

	Clock Clock
	Rand  Rand
	Sleep Sleeper
}

// Coordinator владеет состоянием выполнения всех запущенных аккаунтов.
type Coordinator struct {
	store Store
	msg   Messenger
	log   zerolog.Logger
	quota *Quota
	clock Clock
	rnd   Rand
	sleep Sleeper
	loc   *time.Location

	limits  Limits
	apiID   int
	apiHash string

	mu       sync.Mutex
	accounts map[int]*runtime
	starting map[int]*pendingStart
	// активный массовый запуск, его отменяют stop_all и pause_all
	bulk *bulkStart
}

// pendingStart отмечает аккаунт, который сейчас подключается.
type pendingStart struct {
	cancel  context.CancelFunc
	stopped bool
}

type bulkStart struct {
	cancel context.CancelFunc
}

// New создаёт Coordinator. Незаданные часы, генератор и ожидание заменяются системными.
func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	if opts.Sleep == nil {
		opts.Sleep = defaultSleeper
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	limits := opts.Limits.normalized()
	return &Coordinator{
		store:    opts.Store,
		msg:      opts.Messenger,
		log:      opts.Logger.With().Str("component", "dispatch").Logger(),
		quota:    newQuota(opts.Clock, opts.Rand, limits),
		clock:    opts.Clock,
		rnd:      opts.Rand,
		sleep:    opts.Sleep,
		loc:      opts.Location,
		limits:   limits,
		apiID:    opts.APIID,
		apiHash:  opts.APIHash,
		accounts: make(map[int]*runtime),
		starting: make(map[int]*pendingStart),
	}
}

// Quota возвращает контроллер квот движка.
func (c *Coordinator) Quota() *Quota { return c.quota }

func (c *Coordinator) lookup(id int) *runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[id]
}

// IsRunning сообщает, зарегистрирован ли аккаунт в реестре.
func (c *Coordinator) IsRunning(id int) bool {
	return c.lookup(id) != nil
}

// isCurrent проверяет, что rt всё ещё принадлежит реестру, а не осталась от остановленного аккаунта.
func (c *Coordinator) isCurrent(rt *runtime) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[rt.accountID] == rt
}

// Running возвращает снимок ID запущенных аккаунтов в порядке возрастания.
func (c *Coordinator) Running() []int {
	c.mu.Lock()
	ids := make([]int, 0, len(c.accounts))
	for id := range c.accounts {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Ints(ids)
	return ids
}

// Snapshot возвращает состояние выполнения аккаунта, если он запущен.
func (c *Coordinator) Snapshot(id int) (Snapshot, bool) {
	rt := c.lookup(id)
	if rt == nil {
		return Snapshot{}, false
	}
	return c.quota.snapshot(rt), true
}

// addLog пишет событие и в журнал оператора, и в лог сервиса.
func (c *Coordinator) addLog(ctx context.Context, accountID int, level, message string) {
	ev := c.log.Info()
	switch level {
	case models.LogWarn:
		ev = c.log.Warn()
	case models.LogError:
		ev = c.log.Error()
	}
	ev.Int("account_id", accountID).Msg(message)

	if err := c.store.AddLog(ctx, &accountID, level, message); err != nil {
		c.log.Error().Err(err).Int("account_id", accountID).Msg("[LOG] не удалось записать событие в журнал")
	}
}

func (c *Coordinator) updateAccount(ctx context.Context, id int, upd models.AccountUpdate) {
	if err := c.store.UpdateAccount(ctx, id, upd); err != nil {
		c.log.Error().Err(err).Int("account_id", id).Msg("[DB ERROR] не удалось обновить аккаунт")
	}
}

// setStatus сохраняет статус, только если он изменился.
func (c *Coordinator) setStatus(ctx context.Context, acc *models.Account, status string) {
	if acc.Status == status {
		return
	}
	acc.Status = status
	c.updateAccount(ctx, acc.ID, models.AccountUpdate{Status: &status})
}
