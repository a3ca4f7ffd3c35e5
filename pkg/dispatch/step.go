package dispatch

import (
	"context"
	"fmt"

	"atg_dispatch/models"
)

// Step выполняет одну единицу работы аккаунта: проверяет ограничения,
// берёт следующего получателя и отправляет ему сообщение.
// Возвращает статус, в котором аккаунт остался после шага.
func (c *Coordinator) Step(ctx context.Context, id int) (string, error) {
	rt := c.lookup(id)
	if rt == nil {
		return "", fmt.Errorf("account %d: %w", id, ErrNotRegistered)
	}
	if !rt.guard.TryLock() {
		return "", fmt.Errorf("account %d: %w", id, ErrStepInFlight)
	}
	defer rt.guard.Unlock()

	acc, err := c.store.GetAccount(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get account %d: %w", id, err)
	}
	if acc == nil || !acc.IsRunning {
		c.Stop(ctx, id)
		return models.StatusIdle, nil
	}

	if _, active := c.quota.FloodWaitRemaining(rt); active {
		c.setStatus(ctx, acc, models.StatusFloodWait)
		return acc.Status, nil
	}
	if c.quota.ImportPaused(rt) {
		c.setStatus(ctx, acc, models.StatusPausedDailyLimit)
		return acc.Status, nil
	}
	if !c.quota.CanSendToday(rt) {
		if !rt.limitWarned {
			rt.limitWarned = true
			c.addLog(ctx, id, models.LogWarn, "Daily message limit reached, pausing until the quota window resets")
		}
		c.setStatus(ctx, acc, models.StatusPausedDailyLimit)
		return acc.Status, nil
	}
	rt.limitWarned = false

	if !c.quota.CanSendNow(rt) {
		c.setStatus(ctx, acc, models.StatusWaiting)
		return acc.Status, nil
	}

	rcpt, err := c.store.GetNextPendingRecipient(ctx, id)
	if err != nil {
		return "", fmt.Errorf("next recipient for account %d: %w", id, err)
	}
	if rcpt == nil {
		c.setStatus(ctx, acc, models.StatusIdle)
		return acc.Status, nil
	}

	text, err := c.messageText(ctx, acc)
	if err != nil {
		return "", err
	}
	if text == "" {
		if !rt.templateWarned {
			rt.templateWarned = true
			c.addLog(ctx, id, models.LogWarn, "No message template found, skipping")
		}
		c.setStatus(ctx, acc, models.StatusIdle)
		return acc.Status, nil
	}
	rt.templateWarned = false

	c.setStatus(ctx, acc, models.StatusSending)
	res := c.send(ctx, rt, acc, rcpt, text)

	// Аккаунт могли остановить во время отправки, тогда статус уже записан в Stop
	if !c.isCurrent(rt) {
		return models.StatusIdle, nil
	}

	switch res.outcome {
	case outcomeSent, outcomeFailed:
		c.setStatus(ctx, acc, models.StatusWaiting)
	case outcomeFloodWait:
		status := models.StatusFloodWait
		until := res.floodWaitUntil
		acc.Status = status
		c.updateAccount(ctx, id, models.AccountUpdate{Status: &status, FloodWaitUntil: &until})
	case outcomeFatal:
		c.stop(ctx, id, models.StatusReAuthNeeded, res.reason)
		return models.StatusReAuthNeeded, nil
	case outcomeQuotaExhausted:
		c.quota.pauseForImport(rt)
		c.addLog(ctx, id, models.LogWarn, "Daily import limit reached, pausing until the quota window resets")
		c.setStatus(ctx, acc, models.StatusPausedDailyLimit)
	}
	return acc.Status, nil
}

// messageText выбирает шаблон аккаунта, а если его нет, шаблон группы.
func (c *Coordinator) messageText(ctx context.Context, acc *models.Account) (string, error) {
	if acc.MessageTemplate != nil && *acc.MessageTemplate != "" {
		return *acc.MessageTemplate, nil
	}
	if acc.GroupID == nil {
		return "", nil
	}
	group, err := c.store.GetGroup(ctx, *acc.GroupID)
	if err != nil {
		return "", fmt.Errorf("get group %d: %w", *acc.GroupID, err)
	}
	if group == nil || group.MessageTemplate == nil {
		return "", nil
	}
	return *group.MessageTemplate, nil
}
