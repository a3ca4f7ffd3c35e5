package dispatch

import "time"

// Quota ведёт суточные квоты, флуд-вейты и темп отправки аккаунтов.
// Состояние хранится в runtime, Quota лишь применяет к нему правила.
type Quota struct {
	clock  Clock
	rnd    Rand
	limits Limits
}

func newQuota(clock Clock, rnd Rand, limits Limits) *Quota {
	return &Quota{clock: clock, rnd: rnd, limits: limits}
}

// CanSendToday проверяет суточную квоту сообщений, лениво открывая новое окно.
func (q *Quota) CanSendToday(rt *runtime) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.messages.roll(q.clock.Now())
	return rt.messages.count < q.limits.DailyMessageLimit
}

// RecordSend учитывает успешную отправку.
func (q *Quota) RecordSend(rt *runtime) {
	now := q.clock.Now()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.messages.roll(now)
	rt.messages.count++
	rt.lastSentAt = now
	if rt.hourly != nil {
		rt.hourly.AllowN(now, 1)
	}
}

// CanImportToday проверяет суточную квоту импорта контактов.
func (q *Quota) CanImportToday(rt *runtime) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.imports.roll(q.clock.Now())
	return rt.imports.count < q.limits.DailyImportLimit
}

// RecordImport учитывает успешный импорт контакта.
func (q *Quota) RecordImport(rt *runtime) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.imports.roll(q.clock.Now())
	rt.imports.count++
}

// ImportPaused сообщает, ждёт ли аккаунт восстановления квоты импорта.
// Как только окно импорта сброшено, пауза снимается.
func (q *Quota) ImportPaused(rt *runtime) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.awaitingImport {
		return false
	}
	rt.imports.roll(q.clock.Now())
	if rt.imports.count < q.limits.DailyImportLimit {
		rt.awaitingImport = false
		return false
	}
	return true
}

func (q *Quota) pauseForImport(rt *runtime) {
	rt.mu.Lock()
	rt.awaitingImport = true
	rt.mu.Unlock()
}

// SetFloodWait запоминает срок окончания флуд-вейта с учётом запаса FloodWaitBuffer.
func (q *Quota) SetFloodWait(rt *runtime, seconds int) time.Time {
	until := q.clock.Now().Add(time.Duration(seconds+FloodWaitBuffer) * time.Second)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.floodWaitUntil = until
	return until
}

// FloodWaitRemaining возвращает остаток флуд-вейта в секундах (с округлением вверх).
func (q *Quota) FloodWaitRemaining(rt *runtime) (int, bool) {
	now := q.clock.Now()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.floodWaitUntil.IsZero() || !now.Before(rt.floodWaitUntil) {
		return 0, false
	}
	left := rt.floodWaitUntil.Sub(now)
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs, true
}

// DelayBounds возвращает границы паузы между отправками.
// Нижняя граница не меньше MinDelayFloor, верхняя не меньше нижней.
func DelayBounds(minSec, maxSec int) (int, int) {
	lo := max(minSec, MinDelayFloor)
	hi := max(maxSec, lo)
	return lo, hi
}

// ScheduleNext выбирает случайную паузу до следующей отправки и запоминает момент.
func (q *Quota) ScheduleNext(rt *runtime, minSec, maxSec int) time.Duration {
	lo, hi := DelayBounds(minSec, maxSec)
	delay := time.Duration(randomBetween(q.rnd, lo, hi)) * time.Second
	next := q.clock.Now().Add(delay)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextSendAt = next
	return delay
}

// CanSendNow проверяет, наступил ли момент следующей отправки.
// Если момент ещё не назначен (первое сообщение), отправлять можно сразу.
func (q *Quota) CanSendNow(rt *runtime) bool {
	now := q.clock.Now()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.nextSendAt.IsZero() && now.Before(rt.nextSendAt) {
		return false
	}
	if rt.hourly != nil && rt.hourly.TokensAt(now) < 1 {
		return false
	}
	return true
}

func (q *Quota) snapshot(rt *runtime) Snapshot {
	remaining, _ := q.FloodWaitRemaining(rt)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return Snapshot{
		AccountID:          rt.accountID,
		StartedAt:          rt.startedAt,
		LastSentAt:         timePtr(rt.lastSentAt),
		NextSendAt:         timePtr(rt.nextSendAt),
		FloodWaitRemaining: remaining,
		MessagesToday:      rt.messages.count,
		MessagesResetAt:    timePtr(rt.messages.resetAt),
		ImportsToday:       rt.imports.count,
		ImportsResetAt:     timePtr(rt.imports.resetAt),
		AwaitingImport:     rt.awaitingImport,
	}
}
