package common

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась ошибка отмены, получено %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("ожидание не прервано отменой контекста")
	}
}

func TestWaitShortDelay(t *testing.T) {
	if err := Wait(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if err := WaitWithCancellation(context.Background(), [2]int{0, 0}); err != nil {
		t.Fatalf("нулевая задержка не должна ждать: %v", err)
	}
}
