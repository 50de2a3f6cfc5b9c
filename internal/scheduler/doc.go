// Package scheduler реализует периодическую очистку реестра run.
//
// Janitor по cron-расписанию (robfig/cron) вызывает EvictExpired у
// оркестратора: завершённые run удаляются через TTL после окончания,
// приостановленные — после TTL простоя.
//
// Использование:
//
//	j, err := scheduler.New(scheduler.Config{
//	    Evictor:  orch,
//	    TTL:      time.Hour,
//	    Schedule: "@every 1m",
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	j.Start()
//	defer j.Stop(ctx)
package scheduler
