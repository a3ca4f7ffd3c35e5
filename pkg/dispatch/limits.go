package dispatch

import "time"

// Жёсткие ограничения безопасности. Настройки аккаунта не могут их ослабить.
const (
	// Минимальная пауза между отправками в секундах.
	MinDelayFloor = 30
	// FloodWaitBuffer добавляется к каждому флуд-вейту от Telegram.
	FloodWaitBuffer = 10
	// Потолок суточных квот.
	MaxDailyMessages = 200
	MaxDailyImports  = 20

	// Флуд-вейт по умолчанию, если Telegram не сообщил длительность.
	defaultSendFloodWait   = 120
	defaultImportFloodWait = 60

	quotaWindow = 24 * time.Hour
)

// Limits задаёт настраиваемые лимиты рассылки.
type Limits struct {
	// Сообщений на аккаунт за скользящие сутки, 0 означает потолок.
	DailyMessageLimit int
	// Импортов контактов на аккаунт за скользящие сутки, 0 означает потолок.
	DailyImportLimit int
	// MessagesPerHour включает почасовое ограничение, 0 его выключает.
	MessagesPerHour int
	// Диапазоны пауз вокруг импорта контакта, секунды.
	ImportDelayBefore [2]int
	ImportDelayAfter  [2]int
}

// DefaultLimits возвращает лимиты, с которыми сервис работает без конфигурации.
func DefaultLimits() Limits {
	return Limits{
		DailyMessageLimit: MaxDailyMessages,
		DailyImportLimit:  MaxDailyImports,
		ImportDelayBefore: [2]int{2, 5},
		ImportDelayAfter:  [2]int{4, 8},
	}
}

func clampLimit(configured, ceiling int) int {
	if configured <= 0 || configured > ceiling {
		return ceiling
	}
	return configured
}

func (l Limits) normalized() Limits {
	l.DailyMessageLimit = clampLimit(l.DailyMessageLimit, MaxDailyMessages)
	l.DailyImportLimit = clampLimit(l.DailyImportLimit, MaxDailyImports)
	if l.MessagesPerHour < 0 {
		l.MessagesPerHour = 0
	}
	def := DefaultLimits()
	if l.ImportDelayBefore[1] <= 0 {
		l.ImportDelayBefore = def.ImportDelayBefore
	}
	if l.ImportDelayAfter[1] <= 0 {
		l.ImportDelayAfter = def.ImportDelayAfter
	}
	return l
}
