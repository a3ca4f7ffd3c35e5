package dispatch

import "errors"

var (
	// ErrConfiguration — аккаунт нельзя запустить без исправления настроек (нет сессии, неверный прокси).
	ErrConfiguration = errors.New("account configuration error")
	// ErrQuotaExhausted — суточная квота импорта контактов исчерпана.
	ErrQuotaExhausted = errors.New("daily quota exhausted")
	// ErrConnect — не удалось подключить аккаунт к Telegram.
	ErrConnect = errors.New("connect failed")
	// ErrStartCanceled означает, что аккаунт остановили, пока шло подключение.
	ErrStartCanceled = errors.New("start canceled by stop")
	// ErrNotRegistered — аккаунт не запущен.
	ErrNotRegistered = errors.New("account is not running")
	// ErrStepInFlight — предыдущий шаг аккаунта ещё выполняется.
	ErrStepInFlight = errors.New("account step already in flight")
)
