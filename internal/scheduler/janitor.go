package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule — расписание очистки по умолчанию.
const DefaultSchedule = "@every 1m"

// DefaultTTL — время жизни run после завершения по умолчанию.
const DefaultTTL = time.Hour

// scheduleParser — стандартные 5 полей cron и дескрипторы (@every 1m, @hourly).
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule разбирает расписание очистки.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Evictor — реестр, из которого вытесняются устаревшие run.
type Evictor interface {
	EvictExpired(ttl time.Duration) int
}

// Janitor — периодическая очистка реестра run по TTL.
type Janitor struct {
	cron    *cron.Cron
	evictor Evictor
	ttl     time.Duration
	logger  *slog.Logger
}

// Config — конфигурация Janitor.
type Config struct {
	Evictor  Evictor
	TTL      time.Duration // default: DefaultTTL
	Schedule string        // cron-выражение или дескриптор (default: DefaultSchedule)
	Logger   *slog.Logger
}

// New создаёт Janitor. Ошибка, если расписание невалидно.
func New(cfg Config) (*Janitor, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		cron:    cron.New(),
		evictor: cfg.Evictor,
		ttl:     ttl,
		logger:  logger,
	}

	j.cron.Schedule(sched, cron.FuncJob(func() { j.Sweep() }))
	return j, nil
}

// Start запускает расписание в отдельной горутине.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started", "ttl", j.ttl, "next", j.Next())
}

// Stop останавливает расписание и ждёт завершения текущей очистки
// (или отмены ctx).
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.logger.Warn("janitor stop timed out")
	}
}

// Next возвращает время следующей очистки.
func (j *Janitor) Next() time.Time {
	entries := j.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if next := entries[0].Next; !next.IsZero() {
		return next
	}
	return entries[0].Schedule.Next(time.Now())
}

// Sweep вытесняет устаревшие run один раз и возвращает их количество.
func (j *Janitor) Sweep() int {
	n := j.evictor.EvictExpired(j.ttl)
	if n > 0 {
		j.logger.Info("expired runs evicted", "count", n)
	}
	return n
}
