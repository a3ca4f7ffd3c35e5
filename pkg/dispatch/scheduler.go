package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultTickInterval задаёт период обхода запущенных аккаунтов.
const DefaultTickInterval = 5 * time.Second

// calendarSpec срабатывает в начале каждой минуты.
const calendarSpec = "* * * * *"

// Loop выполняет периодическую задачу на cron с явными Start и Stop.
// Запуски одной задачи не перекрываются: пока идёт предыдущий, следующий пропускается.
type Loop struct {
	name string
	spec string
	loc  *time.Location
	now  func() time.Time
	job  func(ctx context.Context, now time.Time)
	log  zerolog.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func newLoop(name, spec string, loc *time.Location, clock Clock, log zerolog.Logger, job func(ctx context.Context, now time.Time)) *Loop {
	return &Loop{
		name: name,
		spec: spec,
		loc:  loc,
		now:  clock.Now,
		job:  job,
		log:  log.With().Str("loop", name).Logger(),
	}
}

// NewDispatchLoop создаёт цикл, который раз в interval выполняет Sweep.
func NewDispatchLoop(c *Coordinator, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	spec := fmt.Sprintf("@every %s", interval)
	return newLoop("dispatch", spec, c.loc, c.clock, c.log, func(ctx context.Context, _ time.Time) {
		c.Sweep(ctx)
	})
}

// NewCalendarLoop создаёт цикл автозапуска аккаунтов по расписанию.
func NewCalendarLoop(c *Coordinator) *Loop {
	return newLoop("calendar", calendarSpec, c.loc, c.clock, c.log, func(ctx context.Context, now time.Time) {
		c.CalendarSweep(ctx, now)
	})
}

// Start запускает цикл. Задачи получают ctx и прекращают работу при его отмене.
// Повторный Start ничего не делает.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c != nil {
		return nil
	}

	logger := cronLogger{log: l.log}
	c := cron.New(
		cron.WithLocation(l.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(l.spec, func() { l.fire(ctx) }); err != nil {
		return fmt.Errorf("schedule %s loop %q: %w", l.name, l.spec, err)
	}
	c.Start()
	l.c = c
	l.log.Info().Str("spec", l.spec).Str("tz", l.loc.String()).Msg("[SCHEDULER] цикл запущен")
	return nil
}

// fire выполняет одно срабатывание задачи.
func (l *Loop) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	l.job(ctx, l.now())
}

// Stop останавливает цикл и ждёт завершения выполняющейся задачи.
func (l *Loop) Stop() {
	l.mu.Lock()
	c := l.c
	l.c = nil
	l.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	l.log.Info().Msg("[SCHEDULER] цикл остановлен")
}

// cronLogger передаёт журнал cron в zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("[CRON] " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("[CRON] " + msg)
}
