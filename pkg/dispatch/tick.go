package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sweep выполняет по одному шагу для каждого запущенного аккаунта.
// Аккаунты обрабатываются последовательно по снимку реестра на момент начала обхода.
func (c *Coordinator) Sweep(ctx context.Context) {
	sweepID := uuid.NewString()
	ids := c.Running()
	log := c.log.With().Str("sweep_id", sweepID).Logger()
	log.Debug().Int("accounts", len(ids)).Msg("[TICK] обход аккаунтов")

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		status, err := c.Step(ctx, id)
		switch {
		case err == nil:
			log.Debug().Int("account_id", id).Str("status", status).Msg("[TICK] шаг выполнен")
		case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrStepInFlight):
			log.Debug().Err(err).Int("account_id", id).Msg("[TICK] шаг пропущен")
		default:
			log.Error().Err(err).Int("account_id", id).Msg("[TICK] ошибка шага")
		}
	}
}
