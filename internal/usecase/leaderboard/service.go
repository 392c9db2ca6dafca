// Package leaderboard собирает и публикует дневные таблицы лидеров и
// выполняет ночной перенос дневных счётчиков.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/metrics"
	"tg-quiz-bot/internal/usecase/schedule"
)

const (
	defaultMinScore   = 3
	defaultTop        = 10
	defaultWarmup     = 8 * time.Hour
	defaultDelay      = 2 * time.Second
	maxSendAttempts   = 3
	defaultRetryIn429 = 5 * time.Second
)

// Config — параметры публикации таблиц.
type Config struct {
	// MinScore — минимум правильных ответов за день для попадания в таблицу.
	MinScore int
	// Top — сколько строк публикуется.
	Top int
	// Warmup — возраст чата, раньше которого таблица не публикуется.
	Warmup time.Duration
	// PerChatDelay — пауза между чатами.
	PerChatDelay time.Duration
	Location     *time.Location
}

// Service публикует таблицы лидеров в чаты, чьё время подошло.
type Service struct {
	chats  domain.ChatRepo
	scores domain.ScoreRepo
	sender domain.QuizSender
	log    zerolog.Logger
	cfg    Config

	running atomic.Bool

	now   func() time.Time
	sleep func(time.Duration)
	rnd   *rand.Rand
}

// NewService создаёт сервис таблиц лидеров.
func NewService(chats domain.ChatRepo, scores domain.ScoreRepo, sender domain.QuizSender, logger zerolog.Logger, cfg Config) *Service {
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	if cfg.Top <= 0 {
		cfg.Top = defaultTop
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = defaultWarmup
	}
	if cfg.PerChatDelay <= 0 {
		cfg.PerChatDelay = defaultDelay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		chats:  chats,
		scores: scores,
		sender: sender,
		log:    logger,
		cfg:    cfg,
		now:    time.Now,
		sleep:  time.Sleep,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run публикует таблицы во все созревшие чаты. Чаты моложе периода
// прогрева пропускаются выборкой: у них ещё нет содержательного дня.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info().Msg("leaderboard: предыдущий проход ещё идёт, пропуск")
		return nil
	}
	defer s.running.Store(false)

	now := s.now()
	chats, err := s.chats.ListDueLeaderboards(ctx, now, now.Add(-s.cfg.Warmup))
	if err != nil {
		return fmt.Errorf("выборка чатов для таблиц: %w", err)
	}

	for _, chat := range chats {
		if err := s.publish(ctx, chat); err != nil {
			s.log.Error().Err(err).Int64("chat", chat.ChatID).Msg("leaderboard: публикация")
		}
		s.sleep(s.cfg.PerChatDelay)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, chat *domain.Chat) error {
	entries, err := s.scores.TopToday(ctx, chat.ChatID, s.cfg.MinScore, s.cfg.Top)
	if err != nil {
		return fmt.Errorf("выборка лидеров: %w", err)
	}

	if len(entries) > 0 {
		if err := s.send(ctx, chat, Render(entries)); err != nil {
			// Чат остаётся немаркированным: следующий проход попробует
			// снова, пока не наступит ночной сброс.
			return err
		}
		metrics.LeaderboardsSent.Inc()
		if err := s.scores.ResetToday(ctx, chat.ChatID); err != nil {
			s.log.Error().Err(err).Int64("chat", chat.ChatID).Msg("leaderboard: сброс дневных очков")
		}
	}

	chat.LeaderboardSentToday = true
	chat.NextLeaderboardTime = s.nextTime(chat)
	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("сохранение чата: %w", err)
	}
	return nil
}

// send отправляет таблицу с повторами только на rate limit: остальные
// отказы отдаются наверх как есть.
func (s *Service) send(ctx context.Context, chat *domain.Chat, html string) error {
	var lastErr error
	for attempt := 0; attempt < maxSendAttempts; attempt++ {
		_, err := s.sender.SendHTML(ctx, chat.ChatID, chat.TopicID, html)
		if err == nil {
			return nil
		}
		lastErr = err
		var f *domain.SendFailure
		if !errors.As(err, &f) || f.Kind != domain.FailureRateLimited {
			return err
		}
		wait := f.Backoff
		if wait <= 0 {
			wait = defaultRetryIn429
		}
		s.sleep(wait)
	}
	return lastErr
}

// nextTime двигает публикацию ровно на сутки вперёд; чату без
// сохранённого времени слот пересчитывается из настроек.
func (s *Service) nextTime(chat *domain.Chat) *time.Time {
	if chat.NextLeaderboardTime != nil {
		next := chat.NextLeaderboardTime.Add(24 * time.Hour)
		return &next
	}
	next := schedule.NextLeaderboardTime(s.now(), s.cfg.Location, chat.LeaderboardHour, chat.LeaderboardMinute, s.rnd)
	return &next
}

// NightlyReset переносит дневные счётчики в снимок прошлого дня и
// разрешает завтрашнюю публикацию всем чатам.
func (s *Service) NightlyReset(ctx context.Context) error {
	if err := s.scores.RollDaily(ctx); err != nil {
		return fmt.Errorf("перенос дневных счётчиков: %w", err)
	}
	if err := s.chats.ResetLeaderboardSent(ctx); err != nil {
		return fmt.Errorf("сброс флага публикации: %w", err)
	}
	return nil
}

var medals = [...]string{"🥇", "🥈", "🥉"}

// Render собирает HTML таблицы лидеров.
func Render(entries []domain.Score) string {
	var b strings.Builder
	b.WriteString("<b>🏆 Today's Leaderboard</b>\n\n<blockquote>")
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s — %d/%d\n", rank, html(e.DisplayName), e.TodayCorrect, e.TodayAttempted)
	}
	b.WriteString("</blockquote>\n<i>Keep answering quizzes to climb the board!</i>")
	return b.String()
}

func html(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
