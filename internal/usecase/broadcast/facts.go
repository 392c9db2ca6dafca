package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/metrics"
	"tg-quiz-bot/internal/usecase/questions"
)

// Facts — рассыльщик фактов. Устроен как упрощённый движок викторин:
// те же пачки, троттлинг и классификация отказов, но без банковского
// курсора, факты идут по кругу из общей очереди.
type Facts struct {
	chats  domain.ChatRepo
	sender domain.QuizSender
	bank   *questions.FactBank
	log    zerolog.Logger
	cfg    Config

	running atomic.Bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewFacts создаёт рассыльщик фактов.
func NewFacts(chats domain.ChatRepo, sender domain.QuizSender, bank *questions.FactBank, logger zerolog.Logger, cfg Config) *Facts {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PerChatDelay <= 0 {
		cfg.PerChatDelay = defaultPerChatDelay
	}
	return &Facts{
		chats:  chats,
		sender: sender,
		bank:   bank,
		log:    logger,
		cfg:    cfg,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Run выполняет один проход рассылки фактов.
func (f *Facts) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		f.log.Info().Msg("facts: предыдущий проход ещё идёт, пропуск")
		return nil
	}
	defer f.running.Store(false)

	for {
		chats, err := f.chats.ListDueFacts(ctx, f.now(), f.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("выборка чатов для фактов: %w", err)
		}
		if len(chats) == 0 {
			return nil
		}
		for _, chat := range chats {
			f.processChat(ctx, chat)
			f.sleep(f.cfg.PerChatDelay)
		}
	}
}

func (f *Facts) processChat(ctx context.Context, chat *domain.Chat) {
	if chat.LastFactMessageID != 0 {
		if err := f.sender.DeleteMessage(ctx, chat.ChatID, chat.LastFactMessageID); err != nil {
			f.log.Debug().Err(err).Int64("chat", chat.ChatID).Msg("facts: удаление старого факта")
		}
	}

	text, ok := f.bank.Next()
	if !ok {
		f.log.Warn().Msg("facts: очередь фактов пуста")
		return
	}

	msgID, err := f.sender.SendHTML(ctx, chat.ChatID, chat.TopicID, text)
	if err == nil {
		chat.LastFactMessageID = msgID
		next := f.now().Add(chat.FactFrequency())
		chat.NextFactTime = &next
		f.save(ctx, chat)
		metrics.FactsSent.Inc()
		return
	}

	var sf *domain.SendFailure
	if !errors.As(err, &sf) {
		sf = &domain.SendFailure{Kind: domain.FailureUnknown, Description: err.Error()}
	}
	metrics.IncSendFailure(sf.Kind)

	switch sf.Kind {
	case domain.FailureKicked, domain.FailureBlockedByUser, domain.FailureChatNotFound, domain.FailureMigrated:
		// Миграцию чата целиком разруливает движок викторин, здесь
		// достаточно погасить старую запись.
		chat.FactsEnabled = false
		chat.CanSend = false
		chat.QuizState = domain.QuizOffByUser
		chat.NextQuizTime = nil
		chat.NextFactTime = nil
		f.save(ctx, chat)
	case domain.FailurePermissionLost, domain.FailureUnknown:
		chat.FactsEnabled = false
		chat.NextFactTime = nil
		f.save(ctx, chat)
	case domain.FailureThreadDeleted:
		chat.TopicID = 0
		retryAt := f.now().Add(sf.RetryIn)
		chat.NextFactTime = &retryAt
		f.save(ctx, chat)
	case domain.FailureRateLimited, domain.FailureTransient:
		if sf.Backoff > 0 {
			f.sleep(sf.Backoff)
		}
		retryAt := f.now().Add(sf.RetryIn)
		chat.NextFactTime = &retryAt
		f.save(ctx, chat)
	}
}

func (f *Facts) save(ctx context.Context, chat *domain.Chat) {
	if err := f.chats.Save(ctx, chat); err != nil {
		f.log.Error().Err(err).Int64("chat", chat.ChatID).Msg("facts: сохранение чата")
	}
}
