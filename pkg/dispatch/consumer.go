package dispatch

import (
	"context"
	"fmt"
	"time"

	"atg_dispatch/models"
	"atg_dispatch/pkg/telegram/messenger"
)

// outcome передаёт автомату аккаунта итог одной попытки отправки.
type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeFloodWait
	outcomeFatal
	outcomeQuotaExhausted
)

type sendResult struct {
	outcome        outcome
	reason         string
	floodWaitUntil time.Time
}

// resolveTarget превращает идентификатор получателя в адресата.
// Username ищется напрямую. Номер телефона сначала ищется напрямую, а если
// пользователь не найден, импортируется в контакты с паузами до и после импорта.
// При исчерпанной квоте импорта возвращает ErrQuotaExhausted без обращения к Telegram.
func (c *Coordinator) resolveTarget(ctx context.Context, rt *runtime, identifier string) (messenger.Target, messenger.Result, error) {
	if !messenger.IsPhone(identifier) {
		target, res := c.msg.ResolveEntity(ctx, rt.handle, identifier)
		return target, res, nil
	}

	phone := messenger.NormalizePhone(identifier)
	target, res := c.msg.ResolveEntity(ctx, rt.handle, phone)
	switch res.Kind {
	case messenger.KindOK, messenger.KindFloodWait, messenger.KindFatal:
		return target, res, nil
	}

	if !c.quota.CanImportToday(rt) {
		return messenger.Target{}, res, fmt.Errorf("account %d: import %s: %w", rt.accountID, phone, ErrQuotaExhausted)
	}

	c.addLog(ctx, rt.accountID, models.LogInfo, "Importing contact: "+phone)
	if err := c.sleep(ctx, c.randomSeconds(c.limits.ImportDelayBefore)); err != nil {
		return messenger.Target{}, messenger.Transient(err.Error()), nil
	}

	target, res = c.msg.ImportContact(ctx, rt.handle, phone)
	if res.Kind == messenger.KindFloodWait && res.Seconds <= 0 {
		res = messenger.FloodWait(defaultImportFloodWait)
	}
	if !res.IsOK() {
		return messenger.Target{}, res, nil
	}
	c.quota.RecordImport(rt)
	c.addLog(ctx, rt.accountID, models.LogInfo, "Imported contact: "+phone)

	if err := c.sleep(ctx, c.randomSeconds(c.limits.ImportDelayAfter)); err != nil {
		return messenger.Target{}, messenger.Transient(err.Error()), nil
	}
	return target, res, nil
}

func (c *Coordinator) randomSeconds(bounds [2]int) time.Duration {
	return time.Duration(randomBetween(c.rnd, bounds[0], bounds[1])) * time.Second
}

// send выполняет одну отправку получателю и обновляет его статус.
func (c *Coordinator) send(ctx context.Context, rt *runtime, acc *models.Account, rcpt *models.Recipient, text string) sendResult {
	target, res, err := c.resolveTarget(ctx, rt, rcpt.Identifier)
	if err != nil {
		// Получатель остаётся в очереди до восстановления квоты импорта
		return sendResult{outcome: outcomeQuotaExhausted, reason: err.Error()}
	}
	if res.IsOK() {
		res = c.msg.SendMessage(ctx, rt.handle, target, text)
	}

	if res.IsOK() {
		c.markRecipient(ctx, rcpt.ID, models.RecipientSent, "")
		c.addLog(ctx, acc.ID, models.LogInfo, "Sent to "+rcpt.Identifier)
		c.quota.RecordSend(rt)
		c.quota.ScheduleNext(rt, acc.MinDelaySeconds, acc.MaxDelaySeconds)
		return sendResult{outcome: outcomeSent}
	}

	c.markRecipient(ctx, rcpt.ID, models.RecipientFailed, res.Reason)
	c.addLog(ctx, acc.ID, models.LogError, fmt.Sprintf("Failed: %s - %s", rcpt.Identifier, res.Reason))

	switch res.Kind {
	case messenger.KindFloodWait:
		seconds := res.Seconds
		if seconds <= 0 {
			seconds = defaultSendFloodWait
		}
		until := c.quota.SetFloodWait(rt, seconds)
		c.addLog(ctx, acc.ID, models.LogWarn, fmt.Sprintf("Flood wait triggered: %ds", seconds))
		return sendResult{outcome: outcomeFloodWait, reason: res.Reason, floodWaitUntil: until}
	case messenger.KindFatal:
		return sendResult{outcome: outcomeFatal, reason: res.Reason}
	default:
		return sendResult{outcome: outcomeFailed, reason: res.Reason}
	}
}

func (c *Coordinator) markRecipient(ctx context.Context, id int, status, errMsg string) {
	if err := c.store.UpdateRecipientStatus(ctx, id, status, errMsg); err != nil {
		c.log.Error().Err(err).Int("recipient_id", id).Msg("[DB ERROR] не удалось обновить статус получателя")
	}
}
