package dispatch

import (
	"context"
	"fmt"
	"time"

	"atg_dispatch/internal/common"
	"atg_dispatch/models"
	"atg_dispatch/pkg/telegram/messenger"
)

// disconnectTimeout ограничивает ожидание остановки клиента gotd.
const disconnectTimeout = 10 * time.Second

// Start подключает аккаунт и регистрирует его подключение.
// Повторный вызов для запущенного (или запускаемого) аккаунта ничего не делает.
func (c *Coordinator) Start(ctx context.Context, acc models.Account) error {
	if !acc.HasSession() {
		c.failStart(ctx, acc.ID, models.StatusError, "Missing session - please re-authenticate")
		return fmt.Errorf("account %d: missing session: %w", acc.ID, ErrConfiguration)
	}
	var proxyURL string
	if acc.ProxyURL != nil {
		proxyURL = *acc.ProxyURL
	}
	proxy, err := models.ParseProxyURL(proxyURL)
	if err != nil {
		c.failStart(ctx, acc.ID, models.StatusError, fmt.Sprintf("Invalid proxy: %v", err))
		return fmt.Errorf("account %d: %v: %w", acc.ID, err, ErrConfiguration)
	}

	c.mu.Lock()
	if c.accounts[acc.ID] != nil || c.starting[acc.ID] != nil {
		c.mu.Unlock()
		return nil
	}
	// stop_all отменяет ctx раньше, чем останавливает аккаунты
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("account %d: %w", acc.ID, err)
	}
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pending := &pendingStart{cancel: cancel}
	c.starting[acc.ID] = pending
	c.mu.Unlock()

	cred := messenger.Credentials{
		AccountID: acc.ID,
		Phone:     acc.Phone,
		Session:   acc.SessionString,
		APIID:     c.apiID,
		APIHash:   c.apiHash,
		Proxy:     proxy,
	}
	// Собственные ключи аккаунта используются, только если заданы оба
	if acc.ApiID != nil && *acc.ApiID > 0 && acc.ApiHash != nil && *acc.ApiHash != "" {
		cred.APIID = *acc.ApiID
		cred.APIHash = *acc.ApiHash
	}

	handle, res := c.msg.Connect(cctx, cred)

	// Флаг is_running пишется до регистрации, пока Stop видит запись в starting
	persisted := false
	if res.IsOK() && !c.startCanceled(ctx, pending) {
		running := true
		status := models.StatusRunning
		empty := ""
		c.updateAccount(ctx, acc.ID, models.AccountUpdate{IsRunning: &running, Status: &status, LastError: &empty, ClearFloodWait: true})
		persisted = true
	}

	c.mu.Lock()
	delete(c.starting, acc.ID)
	stopped := pending.stopped || ctx.Err() != nil
	if !stopped && res.IsOK() {
		c.accounts[acc.ID] = newRuntime(acc.ID, handle, c.limits, c.clock.Now())
	}
	c.mu.Unlock()

	if stopped {
		if res.IsOK() {
			c.disconnect(ctx, &runtime{accountID: acc.ID, handle: handle})
		}
		if persisted {
			running := false
			status := models.StatusIdle
			c.updateAccount(context.WithoutCancel(ctx), acc.ID, models.AccountUpdate{IsRunning: &running, Status: &status})
		}
		c.log.Info().Int("account_id", acc.ID).Msg("[START] запуск отменён остановкой")
		return fmt.Errorf("account %d: %w", acc.ID, ErrStartCanceled)
	}
	if !res.IsOK() {
		status := models.StatusError
		if res.Kind == messenger.KindFatal {
			status = models.StatusReAuthNeeded
		}
		c.failStart(ctx, acc.ID, status, "Failed to start: "+res.Reason)
		return fmt.Errorf("account %d: %s: %w", acc.ID, res, ErrConnect)
	}

	c.addLog(ctx, acc.ID, models.LogInfo, "Account started")
	return nil
}

func (c *Coordinator) startCanceled(ctx context.Context, pending *pendingStart) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pending.stopped || ctx.Err() != nil
}

func (c *Coordinator) failStart(ctx context.Context, id int, status, message string) {
	running := false
	c.updateAccount(ctx, id, models.AccountUpdate{IsRunning: &running, Status: &status, LastError: &message})
	c.addLog(ctx, id, models.LogError, message)
}

// Stop отключает аккаунт и снимает регистрацию.
// Флаг is_running сбрасывается всегда, даже если аккаунт не был запущен.
func (c *Coordinator) Stop(ctx context.Context, id int) {
	c.stop(ctx, id, models.StatusIdle, "")
}

func (c *Coordinator) stop(ctx context.Context, id int, status, lastError string) {
	c.mu.Lock()
	rt := c.accounts[id]
	delete(c.accounts, id)
	// Идущий запуск не зарегистрирует аккаунт после остановки
	if pending := c.starting[id]; pending != nil {
		pending.stopped = true
		pending.cancel()
	}
	c.mu.Unlock()

	c.disconnect(ctx, rt)

	// Состояние сохраняется, даже если клиент API уже ушёл
	ctx = context.WithoutCancel(ctx)

	running := false
	upd := models.AccountUpdate{IsRunning: &running, Status: &status}
	if lastError != "" {
		upd.LastError = &lastError
	}
	c.updateAccount(ctx, id, upd)
	c.addLog(ctx, id, models.LogInfo, "Account stopped")
}

func (c *Coordinator) disconnect(ctx context.Context, rt *runtime) {
	if rt == nil || rt.handle == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if err := c.msg.Disconnect(dctx, rt.handle); err != nil {
		c.log.Warn().Err(err).Int("account_id", rt.accountID).Msg("[STOP] ошибка отключения клиента")
	}
}

// Shutdown отключает все аккаунты при остановке сервиса.
// Флаг is_running не меняется, поэтому Restore поднимет аккаунты при следующем запуске.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	rts := make([]*runtime, 0, len(c.accounts))
	for id, rt := range c.accounts {
		rts = append(rts, rt)
		delete(c.accounts, id)
	}
	c.mu.Unlock()

	for _, rt := range rts {
		c.disconnect(ctx, rt)
	}
	c.log.Info().Int("accounts", len(rts)).Msg("[SHUTDOWN] аккаунты отключены")
}

// Restore запускает аккаунты, которые были активны до перезапуска сервиса.
func (c *Coordinator) Restore(ctx context.Context) error {
	accounts, err := c.store.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("restore accounts: %w", err)
	}
	for _, acc := range accounts {
		if !acc.IsRunning {
			continue
		}
		if err := c.Start(ctx, acc); err != nil {
			c.log.Warn().Err(err).Int("account_id", acc.ID).Msg("[RESTORE] аккаунт не запущен")
		}
	}
	return nil
}

// Действия глобального управления аккаунтами.
const (
	ActionStartAll = "start_all"
	ActionStopAll  = "stop_all"
	ActionPauseAll = "pause_all"
)

// Control применяет действие ко всем аккаунтам.
// При массовом запуске между аккаунтами выдерживается пауза, чтобы не подключать их пачкой.
// stop_all и pause_all прерывают идущий массовый запуск.
func (c *Coordinator) Control(ctx context.Context, action string, startDelay [2]int) error {
	switch action {
	case ActionStartAll:
		return c.startAll(ctx, startDelay)
	case ActionStopAll, ActionPauseAll:
		c.cancelBulk()
		accounts, err := c.store.GetAccounts(ctx)
		if err != nil {
			return fmt.Errorf("control %s: %w", action, err)
		}
		for _, acc := range accounts {
			c.Stop(ctx, acc.ID)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (c *Coordinator) startAll(ctx context.Context, startDelay [2]int) error {
	ctx, cancel := context.WithCancel(ctx)
	bulk := &bulkStart{cancel: cancel}
	c.mu.Lock()
	if c.bulk != nil {
		c.bulk.cancel()
	}
	c.bulk = bulk
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.bulk == bulk {
			c.bulk = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	accounts, err := c.store.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("control %s: %w", ActionStartAll, err)
	}
	started := 0
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.IsRunning(acc.ID) {
			continue
		}
		if started > 0 {
			if err := common.WaitWithCancellation(ctx, startDelay); err != nil {
				return err
			}
		}
		if err := c.Start(ctx, acc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Int("account_id", acc.ID).Msg("[CONTROL] аккаунт не запущен")
			continue
		}
		started++
	}
	return nil
}

func (c *Coordinator) cancelBulk() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bulk != nil {
		c.bulk.cancel()
		c.bulk = nil
	}
}
