package domain

import "time"

// FailureKind — закрытое множество исходов неудачной отправки.
// Транспортный адаптер классифицирует сырые ошибки Telegram на границе,
// дальше движок рассылки работает только с этим перечислением.
type FailureKind int

const (
	// FailureKicked — бот исключён из чата или доступ запрещён навсегда.
	FailureKicked FailureKind = iota
	// FailurePermissionLost — у бота отобрали право отправлять сообщения
	// или опросы; конфигурация чата сохраняется для восстановления.
	FailurePermissionLost
	// FailureThreadDeleted — тред супергруппы удалён, отправляем в основной чат.
	FailureThreadDeleted
	// FailureMigrated — группа стала супергруппой и получила новый ChatID.
	FailureMigrated
	// FailureChatNotFound — чат удалён.
	FailureChatNotFound
	// FailureBlockedByUser — пользователь заблокировал бота в личном чате.
	FailureBlockedByUser
	// FailureRateLimited — сервер попросил подождать retry_after секунд.
	FailureRateLimited
	// FailureTransient — таймаут шлюза или сетевая ошибка, повтор позже.
	FailureTransient
	// FailureUnknown — неклассифицированная ошибка, чат отключается
	// до ручного разбора.
	FailureUnknown
)

// String возвращает метку для логов и метрик.
func (k FailureKind) String() string {
	switch k {
	case FailureKicked:
		return "kicked"
	case FailurePermissionLost:
		return "permission_lost"
	case FailureThreadDeleted:
		return "thread_deleted"
	case FailureMigrated:
		return "migrated"
	case FailureChatNotFound:
		return "chat_not_found"
	case FailureBlockedByUser:
		return "blocked_by_user"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// SendFailure — классифицированная ошибка отправки.
type SendFailure struct {
	Kind        FailureKind
	Description string

	// Backoff — сколько движок должен проспать до следующего чата.
	Backoff time.Duration
	// RetryIn — через сколько назначить следующую попытку этому чату.
	// Ноль для постоянных отказов.
	RetryIn time.Duration
	// MigrateToChatID заполнен только для FailureMigrated.
	MigrateToChatID int64
}

func (f *SendFailure) Error() string { return f.Description }
