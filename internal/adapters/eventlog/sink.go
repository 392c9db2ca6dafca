// Package eventlog пишет телеметрию рассылок во внешнюю лог-группу
// через отдельного бота.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/adapters/telegram"
	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/metrics"
)

const (
	// chunkLimit — с запасом меньше лимита Telegram, чтобы префикс
	// "Part x/y" не выбил сообщение за границу.
	chunkLimit    = 4000
	interChunkGap = 500 * time.Millisecond
	retryDefault  = 5 * time.Second
	maxAttempts   = 5
)

type api interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Sink отправляет события в лог-группу, а особые ошибки — в отдельную.
type Sink struct {
	bot          api
	groupID      int64
	topicID      int64
	errorGroupID int64
	log          zerolog.Logger

	sleep func(time.Duration)
}

var _ domain.EventSink = (*Sink)(nil)

// NewSink создаёт сток телеметрии.
func NewSink(bot *tgbotapi.BotAPI, groupID int64, topicID int, errorGroupID int64, logger zerolog.Logger) *Sink {
	return &Sink{
		bot:          bot,
		groupID:      groupID,
		topicID:      int64(topicID),
		errorGroupID: errorGroupID,
		log:          logger,
		sleep:        time.Sleep,
	}
}

// Record пишет событие в лог-группу, пережидая rate limit.
func (s *Sink) Record(ctx context.Context, text string) {
	s.send(ctx, s.groupID, s.topicID, text, true)
}

// RecordError пишет в группу особых ошибок; здесь без повторов,
// потеря сообщения об ошибке не должна задерживать рассылку.
func (s *Sink) RecordError(ctx context.Context, text string) {
	s.send(ctx, s.errorGroupID, 0, text, false)
}

func (s *Sink) send(ctx context.Context, groupID, topicID int64, text string, retry bool) {
	if groupID == 0 {
		return
	}
	parts := telegram.Split(text, chunkLimit)
	for i, part := range parts {
		s.sleep(interChunkGap)
		if len(parts) > 1 {
			part = fmt.Sprintf("Part %d/%d\n\n%s", i+1, len(parts), part)
		}
		s.sendPart(ctx, groupID, topicID, part, retry)
	}
}

func (s *Sink) sendPart(ctx context.Context, groupID, topicID int64, part string, retry bool) {
	attempts := maxAttempts
	if !retry {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err := s.sendWithThread(groupID, topicID, part)
		if err == nil {
			return
		}
		var apiErr *tgbotapi.Error
		if retry && errors.As(err, &apiErr) && apiErr.Code == 429 {
			wait := retryDefault
			if apiErr.ResponseParameters.RetryAfter > 0 {
				wait = time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second
			}
			s.log.Warn().Dur("wait", wait).Msg("eventlog: rate limit, ждём")
			s.sleep(wait)
			continue
		}
		metrics.EventSinkErrors.Inc()
		s.log.Error().Err(err).Msg("eventlog: не удалось записать событие")
		return
	}
	metrics.EventSinkErrors.Inc()
}

func (s *Sink) sendWithThread(groupID, topicID int64, text string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", groupID)
	params["text"] = text
	params.AddNonZero64("message_thread_id", topicID)
	_, err := s.bot.MakeRequest("sendMessage", params)
	return err
}
