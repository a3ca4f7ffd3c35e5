package common

import (
	"context"
	"math/rand"
	"time"
)

// После каждого шага ожидания проверяется отмена контекста.
const waitStep = 5 * time.Second

// Wait ожидает d и регулярно проверяет контекст на отмену,
// чтобы не блокировать остановку сервиса на долгих задержках.
func Wait(ctx context.Context, d time.Duration) error {
	for remaining := d; remaining > 0; {
		step := waitStep
		if remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			// Возвращаем ошибку контекста, чтобы вызвать обработку прерывания выше по стеку.
			return ctx.Err()
		case <-timer.C:
		}
		remaining -= step
	}
	return nil
}

// WaitWithCancellation выполняет ожидание случайной длительности из диапазона секунд.
func WaitWithCancellation(ctx context.Context, delayRange [2]int) error {
	delay := delayRange[0]
	if delayRange[1] > delayRange[0] {
		delay = rand.Intn(delayRange[1]-delayRange[0]+1) + delayRange[0]
	}
	return Wait(ctx, time.Duration(delay)*time.Second)
}
