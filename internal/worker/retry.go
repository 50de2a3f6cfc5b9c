package worker

import (
	"time"

	"github.com/shaiso/tableflow/internal/remote"
)

// Default retry values.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// RetryPolicy — политика повторов одного вызова.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток, включая первую (default: 3).
	MaxAttempts int

	// Backoff — "exponential" (по умолчанию) или "fixed".
	Backoff string

	// InitialDelay — задержка перед первым повтором (default: 1s).
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки (default: 30s).
	MaxDelay time.Duration
}

// withDefaults возвращает копию политики с заполненными значениями по умолчанию.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Backoff == "" {
		p.Backoff = "exponential"
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// shouldRetry определяет, нужно ли повторять вызов после ошибки.
//
// Ошибки, помеченные как постоянные (HTTP 4xx кроме 408/429,
// невалидный запрос), не повторяются.
func shouldRetry(err error) bool {
	return err != nil && !remote.IsPermanent(err)
}

// calculateBackoff вычисляет задержку перед повтором после попытки attempt.
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	policy = policy.withDefaults()

	var delay time.Duration
	switch policy.Backoff {
	case "fixed":
		delay = policy.InitialDelay
	default:
		// delay = initialDelay * 2^(attempt-1)
		delay = policy.InitialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
				break
			}
		}
	}

	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	return delay
}
