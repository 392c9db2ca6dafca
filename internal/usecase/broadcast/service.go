// Package broadcast реализует движок рассылки викторин: выборку
// созревших чатов пачками, отправку ровно одного вопроса на чат,
// классифицированную реакцию на отказы и телеметрию прохода.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/metrics"
	"tg-quiz-bot/internal/usecase/questions"
	"tg-quiz-bot/internal/usecase/schedule"
)

const (
	defaultBatchSize    = 100
	defaultPerChatDelay = 3 * time.Second
	// migrationFirstSend — первая викторина в мигрировавшем чате.
	migrationFirstSend = 5 * time.Minute
)

// Config — параметры движка.
type Config struct {
	BatchSize    int
	PerChatDelay time.Duration
	// Location — фиксированный часовой пояс статистики и отчётов.
	Location *time.Location
}

// Service — движок рассылки викторин. Чаты обрабатываются строго
// последовательно: глобальный rate limit Telegram общий на бота,
// параллелизм здесь ломал бы это ограничение.
type Service struct {
	chats  domain.ChatRepo
	stats  domain.StatsRepo
	sender domain.QuizSender
	sink   domain.EventSink
	bank   *questions.Bank
	log    zerolog.Logger
	cfg    Config

	// running — защита от наложения проходов: триггер срабатывает
	// каждую минуту, а проход может идти дольше.
	running atomic.Bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewService создаёт движок рассылки.
func NewService(chats domain.ChatRepo, stats domain.StatsRepo, sender domain.QuizSender, sink domain.EventSink, bank *questions.Bank, logger zerolog.Logger, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PerChatDelay <= 0 {
		cfg.PerChatDelay = defaultPerChatDelay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		chats:  chats,
		stats:  stats,
		sender: sender,
		sink:   sink,
		bank:   bank,
		log:    logger,
		cfg:    cfg,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Run выполняет один проход рассылки: пачки созревших чатов выбираются,
// пока реестр их отдаёт. Ошибка одного чата никогда не прерывает проход.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		metrics.BroadcastRunsSkipped.Inc()
		s.log.Info().Msg("broadcast: предыдущий проход ещё идёт, пропуск")
		return nil
	}
	defer s.running.Store(false)

	started := s.now()
	defer func() {
		metrics.BroadcastRunSeconds.Observe(time.Since(started).Seconds())
	}()

	runID := uuid.NewString()
	// Размер банка фиксируется на весь проход: арифметика индексов не
	// должна поплыть, если банк перечитают между деплоями.
	bankSize := s.bank.Size()

	var allSuccess, allFailed []string
	for {
		chats, err := s.chats.ListDueQuizzes(ctx, s.now(), s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("выборка созревших чатов: %w", err)
		}
		if len(chats) == 0 {
			break
		}

		rep := &report{}
		for _, chat := range chats {
			s.processChat(ctx, chat, bankSize, rep)
			s.sleep(s.cfg.PerChatDelay)
		}
		allSuccess = append(allSuccess, rep.success...)
		allFailed = append(allFailed, rep.failed...)
		s.sink.Record(ctx, rep.render(runID, s.now().In(s.cfg.Location)))
	}

	if len(allSuccess)+len(allFailed) > 0 {
		s.sink.Record(ctx, renderRunSummary(runID, s.now().In(s.cfg.Location), allSuccess, allFailed))
	}
	return nil
}

// processChat выполняет контракт одного чата: зачистка, отбор вопроса,
// отправка, реакция на отказ, продвижение курсора.
func (s *Service) processChat(ctx context.Context, chat *domain.Chat, bankSize int, rep *report) {
	title := chat.ChatTitle
	if title == "" {
		title = fmt.Sprintf("chat %d", chat.ChatID)
	}

	if chat.DeleteOldQuizzes && chat.LastQuizMessageID != 0 {
		if err := s.sender.DeleteMessage(ctx, chat.ChatID, chat.LastQuizMessageID); err != nil {
			rep.logf("не удалось удалить старую викторину в %q: %v", title, err)
		} else {
			rep.logf("удалена предыдущая викторина в %q", title)
		}
	}

	// Запрос уже фильтрует по canSend, но реакция на отказ могла снять
	// флаг прямо внутри пачки.
	if !chat.CanSend {
		rep.logf("пропуск %q: отправка запрещена", title)
		return
	}

	index := mod(chat.QuizIndex, bankSize)
	q := s.bank.Get(index)
	if err := questions.Validate(q); err != nil {
		// Плохой вопрос считается израсходованным: курсор и расписание
		// двигаются, иначе один битый вопрос остановит чат навсегда.
		rep.fail(title, fmt.Sprintf("невалидный вопрос #%d: %v", index, err))
		s.advance(chat, index, bankSize)
		s.save(ctx, chat)
		return
	}

	sent, err := s.sender.SendQuiz(ctx, chat.ChatID, chat.TopicID, q, chat.AnonymousQuizzes)
	if err == nil {
		s.bumpStats(ctx)
		chat.LastQuizPollID = sent.PollID
		chat.LastQuizMessageID = sent.MessageID
		chat.LastQuizQuestion = index
		s.advance(chat, index, bankSize)
		s.save(ctx, chat)
		metrics.QuizzesSent.Inc()
		rep.ok(title)
		return
	}

	var f *domain.SendFailure
	if !errors.As(err, &f) {
		f = &domain.SendFailure{Kind: domain.FailureUnknown, Description: err.Error()}
	}
	metrics.IncSendFailure(f.Kind)

	switch f.Kind {
	case domain.FailureKicked:
		s.disable(ctx, chat, domain.QuizOffByUser)
		rep.fail(title, "бот исключён из чата, рассылка отключена")
	case domain.FailureBlockedByUser:
		s.disable(ctx, chat, domain.QuizOffByUser)
		rep.fail(title, "пользователь заблокировал бота, рассылка отключена")
	case domain.FailureChatNotFound:
		s.disable(ctx, chat, domain.QuizOffByUser)
		rep.fail(title, "чат не найден (удалён), рассылка отключена")
	case domain.FailurePermissionLost:
		// Отдельное состояние: конфигурация сохраняется, чтобы чат
		// ожил после возврата прав.
		s.disable(ctx, chat, domain.QuizOffBySystem)
		rep.fail(title, "нет прав на отправку, викторины приостановлены")
	case domain.FailureThreadDeleted:
		chat.TopicID = 0
		retryAt := s.now().Add(f.RetryIn)
		chat.NextQuizTime = &retryAt
		s.save(ctx, chat)
		rep.fail(title, "тред удалён, следующие викторины в основной чат")
	case domain.FailureMigrated:
		s.migrate(ctx, chat, f, rep, title)
	case domain.FailureRateLimited, domain.FailureTransient:
		// Вопрос не израсходован: индекс не двигается, только расписание.
		if f.Backoff > 0 {
			s.sleep(f.Backoff)
		}
		retryAt := s.now().Add(f.RetryIn)
		chat.NextQuizTime = &retryAt
		s.save(ctx, chat)
		rep.fail(title, fmt.Sprintf("временный отказ (%s), повтор через %s", f.Kind, f.RetryIn))
	default:
		s.disable(ctx, chat, domain.QuizOffByUser)
		rep.fail(title, fmt.Sprintf("неизвестная ошибка: %s", f.Description))
		s.sink.RecordError(ctx, fmt.Sprintf(
			"Неожиданная ошибка рассылки в %q в %s\n\nОшибка: %s\n\nЧат: ID=%d, Topic=%d, QuizIndex=%d\n\nЛог пачки:\n%s",
			title, s.now().In(s.cfg.Location).Format(time.RFC3339),
			f.Description, chat.ChatID, chat.TopicID, chat.QuizIndex, rep.renderLogs(),
		))
	}
}

// migrate обрабатывает апгрейд группы в супергруппу: старая запись
// гасится, для нового ChatID создаётся запись с перенесённой
// конфигурацией. Повторное событие миграции — no-op.
func (s *Service) migrate(ctx context.Context, chat *domain.Chat, f *domain.SendFailure, rep *report, title string) {
	s.disable(ctx, chat, domain.QuizOffByUser)

	if f.MigrateToChatID == 0 {
		rep.fail(title, "миграция без нового идентификатора чата")
		return
	}

	_, err := s.chats.Get(ctx, f.MigrateToChatID)
	if err == nil {
		rep.fail(title, fmt.Sprintf("миграция уже обработана, запись %d существует", f.MigrateToChatID))
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		rep.fail(title, fmt.Sprintf("проверка новой записи: %v", err))
		return
	}

	firstSend := s.now().Add(migrationFirstSend)
	next := &domain.Chat{
		ChatID:               f.MigrateToChatID,
		ChatTitle:            chat.ChatTitle,
		QuizState:            domain.QuizOn,
		CanSend:              true,
		FactsEnabled:         chat.FactsEnabled,
		QuizIndex:            chat.QuizIndex,
		LastQuizQuestion:     chat.LastQuizQuestion,
		QuizFrequencyMinutes: chat.QuizFrequencyMinutes,
		FactFrequencyMinutes: chat.FactFrequencyMinutes,
		NextQuizTime:         &firstSend,
		DeleteOldQuizzes:     chat.DeleteOldQuizzes,
		ShowMyScoreInGroup:   chat.ShowMyScoreInGroup,
		AnonymousQuizzes:     chat.AnonymousQuizzes,
		SendLeaderboard:      chat.SendLeaderboard,
		LeaderboardHour:      chat.LeaderboardHour,
		LeaderboardMinute:    chat.LeaderboardMinute,
		NextLeaderboardTime:  chat.NextLeaderboardTime,
	}
	if err := s.chats.Create(ctx, next); err != nil {
		rep.fail(title, fmt.Sprintf("создание мигрированной записи: %v", err))
		return
	}
	rep.fail(title, fmt.Sprintf("чат мигрировал, новая запись %d", f.MigrateToChatID))
}

func (s *Service) advance(chat *domain.Chat, index, bankSize int) {
	chat.QuizIndex = (index + 1) % bankSize
	next := schedule.NextQuizTime(s.now(), chat.Frequency())
	chat.NextQuizTime = &next
}

func (s *Service) disable(ctx context.Context, chat *domain.Chat, state domain.QuizState) {
	chat.CanSend = false
	chat.QuizState = state
	chat.NextQuizTime = nil
	s.save(ctx, chat)
}

func (s *Service) save(ctx context.Context, chat *domain.Chat) {
	if err := s.chats.Save(ctx, chat); err != nil {
		s.log.Error().Err(err).Int64("chat", chat.ChatID).Msg("broadcast: сохранение чата")
	}
}

func (s *Service) bumpStats(ctx context.Context) {
	stats, err := s.stats.GetStats(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		stats = &domain.QuizStats{}
	} else if err != nil {
		s.log.Error().Err(err).Msg("broadcast: чтение статистики")
		return
	}
	ApplySent(stats, s.now(), s.cfg.Location)
	if err := s.stats.SaveStats(ctx, stats); err != nil {
		s.log.Error().Err(err).Msg("broadcast: сохранение статистики")
	}
}

func mod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}
