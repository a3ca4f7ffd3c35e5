package dispatch

import (
	"context"
	"strings"
	"time"

	"atg_dispatch/models"
)

// ScheduleMatches сообщает, должен ли аккаунт стартовать в минуту now.
// now должен быть уже переведён в часовой пояс расписания.
func ScheduleMatches(acc models.Account, now time.Time) bool {
	if acc.ScheduleType != models.ScheduleDaily && acc.ScheduleType != models.ScheduleWeekly {
		return false
	}
	if acc.ScheduleTime == nil {
		return false
	}
	at, err := time.Parse("15:04", strings.TrimSpace(*acc.ScheduleTime))
	if err != nil {
		return false
	}
	if now.Hour() != at.Hour() || now.Minute() != at.Minute() {
		return false
	}
	if acc.ScheduleType == models.ScheduleDaily {
		return true
	}

	today := strings.ToLower(now.Weekday().String()[:3])
	for _, day := range acc.ScheduleDays {
		day = strings.ToLower(strings.TrimSpace(day))
		if len(day) >= 3 && day[:3] == today {
			return true
		}
	}
	return false
}

// CalendarSweep запускает аккаунты, расписание которых совпало с текущей минутой.
// Пропущенные минуты не навёрстываются. Возвращает ID успешно запущенных аккаунтов.
func (c *Coordinator) CalendarSweep(ctx context.Context, now time.Time) []int {
	accounts, err := c.store.GetAccounts(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("[SCHEDULER] не удалось получить аккаунты")
		return nil
	}
	local := now.In(c.loc)

	var started []int
	for _, acc := range accounts {
		if acc.IsRunning || c.IsRunning(acc.ID) {
			continue
		}
		if !ScheduleMatches(acc, local) {
			continue
		}
		c.log.Info().Int("account_id", acc.ID).Str("time", local.Format("15:04")).Msg("[SCHEDULER] автозапуск по расписанию")
		if err := c.Start(ctx, acc); err != nil {
			c.log.Warn().Err(err).Int("account_id", acc.ID).Msg("[SCHEDULER] аккаунт не запущен")
			continue
		}
		started = append(started, acc.ID)
	}
	return started
}
