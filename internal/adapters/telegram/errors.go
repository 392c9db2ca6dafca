package telegram

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-quiz-bot/internal/domain"
)

// Задержки повторов для разных видов отказов.
const (
	threadDeletedRetry   = 5 * time.Second
	defaultRateLimitWait = 5 * time.Second
	gatewayTimeoutSleep  = 20 * time.Second
	gatewayTimeoutRetry  = time.Minute
	networkRetry         = 5 * time.Minute
)

// classify переводит сырую ошибку Telegram в закрытое множество
// domain.SendFailure. Вызывается только на границе транспорта; выше
// по стеку никто не разбирает форму ошибок Bot API.
func classify(err error) *domain.SendFailure {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == 403 && strings.Contains(desc, "blocked by the user"):
			return &domain.SendFailure{Kind: domain.FailureBlockedByUser, Description: apiErr.Message}
		case apiErr.Code == 403 || strings.Contains(desc, "bot was kicked"):
			return &domain.SendFailure{Kind: domain.FailureKicked, Description: apiErr.Message}
		case apiErr.Code == 400 && strings.Contains(desc, "group chat was upgraded to a supergroup chat"):
			return &domain.SendFailure{
				Kind:            domain.FailureMigrated,
				Description:     apiErr.Message,
				MigrateToChatID: apiErr.ResponseParameters.MigrateToChatID,
			}
		case apiErr.Code == 400 && strings.Contains(desc, "message thread not found"):
			return &domain.SendFailure{
				Kind:        domain.FailureThreadDeleted,
				Description: apiErr.Message,
				RetryIn:     threadDeletedRetry,
			}
		case apiErr.Code == 400 && strings.Contains(desc, "chat not found"):
			return &domain.SendFailure{Kind: domain.FailureChatNotFound, Description: apiErr.Message}
		case apiErr.Code == 400 && (strings.Contains(desc, "not enough rights to send") ||
			strings.Contains(desc, "polls") ||
			strings.Contains(desc, "chat_write_forbidden")):
			return &domain.SendFailure{Kind: domain.FailurePermissionLost, Description: apiErr.Message}
		case apiErr.Code == 429:
			wait := defaultRateLimitWait
			if apiErr.ResponseParameters.RetryAfter > 0 {
				wait = time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second
			}
			return &domain.SendFailure{
				Kind:        domain.FailureRateLimited,
				Description: apiErr.Message,
				Backoff:     wait,
				RetryIn:     wait,
			}
		case apiErr.Code == 504:
			return &domain.SendFailure{
				Kind:        domain.FailureTransient,
				Description: apiErr.Message,
				Backoff:     gatewayTimeoutSleep,
				RetryIn:     gatewayTimeoutRetry,
			}
		}
		return &domain.SendFailure{Kind: domain.FailureUnknown, Description: apiErr.Message}
	}

	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	if timeout || errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "connection reset") {
		return &domain.SendFailure{
			Kind:        domain.FailureTransient,
			Description: err.Error(),
			RetryIn:     networkRetry,
		}
	}

	return &domain.SendFailure{Kind: domain.FailureUnknown, Description: err.Error()}
}
