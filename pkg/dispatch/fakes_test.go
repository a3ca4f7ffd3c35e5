package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"atg_dispatch/models"
	"atg_dispatch/pkg/telegram/messenger"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

// memStore — хранилище в памяти с той же семантикой, что и Postgres.
type memStore struct {
	mu         sync.Mutex
	accounts   map[int]*models.Account
	groups     map[int]*models.Group
	recipients []*models.Recipient
	logs       []models.Log
	nextID     int
	updates    int
}

func newMemStore() *memStore {
	return &memStore{accounts: map[int]*models.Account{}, groups: map[int]*models.Group{}}
}

func (s *memStore) putAccount(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = &acc
}

func (s *memStore) addRecipients(accountID int, identifiers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range identifiers {
		s.nextID++
		s.recipients = append(s.recipients, &models.Recipient{
			ID:         s.nextID,
			AccountID:  accountID,
			Identifier: ident,
			Status:     models.RecipientPending,
		})
	}
}

func (s *memStore) account(id int) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *memStore) recipientStatuses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for _, r := range s.recipients {
		out[r.Identifier] = r.Status
	}
	return out
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *memStore) countLogs(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.logs {
		if strings.Contains(l.Message, substr) {
			n++
		}
	}
	return n
}

func (s *memStore) GetAccount(_ context.Context, id int) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (s *memStore) GetAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateAccount(ctx context.Context, id int, upd models.AccountUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	acc, ok := s.accounts[id]
	if !ok {
		return nil
	}
	if upd.IsRunning != nil {
		acc.IsRunning = *upd.IsRunning
	}
	if upd.Status != nil {
		acc.Status = *upd.Status
	}
	if upd.LastError != nil {
		acc.LastError = upd.LastError
	}
	if upd.FloodWaitUntil != nil {
		acc.FloodWaitUntil = upd.FloodWaitUntil
	}
	if upd.ClearFloodWait {
		acc.FloodWaitUntil = nil
	}
	return nil
}

func (s *memStore) GetNextPendingRecipient(_ context.Context, accountID int) (*models.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.AccountID == accountID && r.Status == models.RecipientPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateRecipientStatus(_ context.Context, id int, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.ID != id || r.Status != models.RecipientPending {
			continue
		}
		r.Status = status
		if errMsg != "" {
			r.ErrorMessage = &errMsg
		}
	}
	return nil
}

func (s *memStore) GetGroup(_ context.Context, id int) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) AddLog(_ context.Context, accountID *int, level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.Log{AccountID: accountID, Level: level, Message: message})
	return nil
}

type fakeHandle struct{ id int64 }

func (h *fakeHandle) SelfID() int64 { return h.id }

// fakeMessenger записывает вызовы и отвечает заданными результатами.
type fakeMessenger struct {
	mu sync.Mutex

	connectResult map[int]messenger.Result
	// connectGate, если задан, блокирует Connect до закрытия канала
	connectGate chan struct{}

	resolve  func(identifier string) messenger.Result
	doImport func(phone string) messenger.Result
	sendFn   func(display string) messenger.Result

	connects    []int
	creds       []messenger.Credentials
	disconnects int
	resolves    []string
	imports     []string
	sends       []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{connectResult: map[int]messenger.Result{}}
}

func (m *fakeMessenger) Connect(_ context.Context, cred messenger.Credentials) (messenger.Handle, messenger.Result) {
	m.mu.Lock()
	m.connects = append(m.connects, cred.AccountID)
	m.creds = append(m.creds, cred)
	gate := m.connectGate
	res, ok := m.connectResult[cred.AccountID]
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if ok && !res.IsOK() {
		return nil, res
	}
	return &fakeHandle{id: int64(cred.AccountID)}, messenger.OK()
}

func (m *fakeMessenger) Disconnect(_ context.Context, _ messenger.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	return nil
}

func (m *fakeMessenger) ResolveEntity(_ context.Context, _ messenger.Handle, identifier string) (messenger.Target, messenger.Result) {
	m.mu.Lock()
	m.resolves = append(m.resolves, identifier)
	fn := m.resolve
	m.mu.Unlock()
	res := messenger.OK()
	if fn != nil {
		res = fn(identifier)
	}
	if !res.IsOK() {
		return messenger.Target{}, res
	}
	return messenger.Target{Peer: &tg.InputPeerSelf{}, Display: identifier}, res
}

func (m *fakeMessenger) ImportContact(_ context.Context, _ messenger.Handle, phone string) (messenger.Target, messenger.Result) {
	m.mu.Lock()
	m.imports = append(m.imports, phone)
	fn := m.doImport
	m.mu.Unlock()
	res := messenger.OK()
	if fn != nil {
		res = fn(phone)
	}
	if !res.IsOK() {
		return messenger.Target{}, res
	}
	return messenger.Target{Peer: &tg.InputPeerSelf{}, Display: phone}, res
}

func (m *fakeMessenger) SendMessage(_ context.Context, _ messenger.Handle, target messenger.Target, _ string) messenger.Result {
	m.mu.Lock()
	m.sends = append(m.sends, target.Display)
	fn := m.sendFn
	m.mu.Unlock()
	if fn != nil {
		return fn(target.Display)
	}
	return messenger.OK()
}

func (m *fakeMessenger) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

func (m *fakeMessenger) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connects)
}

func (m *fakeMessenger) disconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// waitConnects ждёт, пока Connect будет вызван n раз.
func (m *fakeMessenger) waitConnects(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.connectCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("ожидалось %d подключений, получено %d", n, m.connectCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *fakeMessenger) importCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imports)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixedRand всегда выбирает наименьшее значение диапазона.
type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return nil
}

var testStart = time.Date(2026, time.October, 14, 6, 0, 0, 0, time.UTC)

type harness struct {
	store  *memStore
	msg    *fakeMessenger
	clock  *fakeClock
	sleeps *sleepRecorder
	coord  *Coordinator
}

func newHarness(limits Limits) *harness {
	h := &harness{
		store:  newMemStore(),
		msg:    newFakeMessenger(),
		clock:  &fakeClock{now: testStart},
		sleeps: &sleepRecorder{},
	}
	h.coord = New(Options{
		Store:     h.store,
		Messenger: h.msg,
		Logger:    zerolog.Nop(),
		Limits:    limits,
		APIID:     1,
		APIHash:   "hash",
		Location:  time.FixedZone("MSK", 3*60*60),
		Clock:     h.clock,
		Rand:      fixedRand{},
		Sleep:     h.sleeps.Sleep,
	})
	return h
}

func testAccount(id int) models.Account {
	tmpl := fmt.Sprintf("hello from %d", id)
	return models.Account{
		ID:              id,
		Phone:           fmt.Sprintf("+7900000000%d", id),
		SessionString:   `{"Version":1}`,
		MessageTemplate: &tmpl,
		Status:          models.StatusIdle,
		MinDelaySeconds: 60,
		MaxDelaySeconds: 180,
		ScheduleType:    models.ScheduleManual,
	}
}

// startAccount сохраняет и запускает аккаунт.
func (h *harness) startAccount(t *testing.T, acc models.Account) {
	t.Helper()
	h.store.putAccount(acc)
	if err := h.coord.Start(context.Background(), acc); err != nil {
		t.Fatalf("запуск аккаунта %d: %v", acc.ID, err)
	}
}

func (h *harness) step(t *testing.T, id int) string {
	t.Helper()
	status, err := h.coord.Step(context.Background(), id)
	if err != nil {
		t.Fatalf("шаг аккаунта %d: %v", id, err)
	}
	return status
}
