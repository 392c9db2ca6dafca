// Package settings управляет регистрацией чатов и их настройками.
package settings

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/usecase/schedule"
)

// firstQuizDelay — пауза перед первой викториной в новом чате, чтобы
// участники успели увидеть приветствие.
const firstQuizDelay = 5 * time.Minute

// Service — настройки и жизненный цикл чатов.
type Service struct {
	chats domain.ChatRepo
	log   zerolog.Logger
	loc   *time.Location

	bankSize int
	now      func() time.Time
	rnd      *rand.Rand
}

// NewService создаёт сервис настроек. bankSize задаёт диапазон
// стартового курсора: новые чаты начинают со случайного вопроса, чтобы
// соседние группы не получали одинаковые викторины синхронно.
func NewService(chats domain.ChatRepo, logger zerolog.Logger, loc *time.Location, bankSize int, rnd *rand.Rand) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if bankSize <= 0 {
		bankSize = 1
	}
	return &Service{
		chats:    chats,
		log:      logger,
		loc:      loc,
		bankSize: bankSize,
		now:      time.Now,
		rnd:      rnd,
	}
}

// Register регистрирует чат либо включает викторины обратно, если чат
// уже известен. Расписание получают только группы: в личном чате бот
// отвечает на команды, но сам ничего не рассылает. Возвращает true,
// когда запись создана впервые.
func (s *Service) Register(ctx context.Context, chatID, topicID int64, title string, isGroup bool) (bool, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err == nil {
		chat.ChatTitle = title
		chat.TopicID = topicID
		if isGroup {
			chat.QuizState = domain.QuizOn
			chat.CanSend = true
			if chat.NextQuizTime == nil {
				first := s.now().Add(firstQuizDelay)
				chat.NextQuizTime = &first
			}
			chat.FactsEnabled = true
			if chat.NextFactTime == nil {
				fact := s.now().Add(chat.FactFrequency())
				chat.NextFactTime = &fact
			}
		}
		return false, s.chats.Save(ctx, chat)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("поиск чата: %w", err)
	}

	chat = &domain.Chat{
		ChatID:             chatID,
		ChatTitle:          title,
		TopicID:            topicID,
		QuizState:          domain.QuizOn,
		CanSend:            isGroup,
		FactsEnabled:       isGroup,
		QuizIndex:          s.rnd.Intn(s.bankSize),
		LastQuizQuestion:   -1,
		DeleteOldQuizzes:   true,
		ShowMyScoreInGroup: true,
		// Таблица лидеров имеет смысл только там, где есть соревнование.
		SendLeaderboard: isGroup,
	}
	if isGroup {
		first := s.now().Add(firstQuizDelay)
		chat.NextQuizTime = &first
		fact := s.now().Add(chat.FactFrequency())
		chat.NextFactTime = &fact
		hour, minute := schedule.RandomLeaderboardSlot(s.rnd)
		lb := schedule.LeaderboardTimeAt(s.now(), s.loc, hour, minute)
		chat.LeaderboardHour = &hour
		chat.LeaderboardMinute = &minute
		chat.NextLeaderboardTime = &lb
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return false, fmt.Errorf("создание чата: %w", err)
	}
	s.log.Info().Int64("chat", chatID).Str("title", title).Msg("settings: чат зарегистрирован")
	return true, nil
}

// EnableQuizzes включает рассылку в известном чате.
func (s *Service) EnableQuizzes(ctx context.Context, chatID int64) error {
	return s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.QuizState = domain.QuizOn
		chat.CanSend = true
		if chat.NextQuizTime == nil {
			next := s.now().Add(firstQuizDelay)
			chat.NextQuizTime = &next
		}
	})
}

// DisableQuizzes останавливает рассылку по просьбе пользователя.
// Настройки и очки сохраняются.
func (s *Service) DisableQuizzes(ctx context.Context, chatID int64) error {
	return s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.QuizState = domain.QuizOffByUser
		chat.CanSend = false
		chat.NextQuizTime = nil
	})
}

// SetQuizInterval меняет период викторин; следующая отправка
// пересчитывается от текущего момента.
func (s *Service) SetQuizInterval(ctx context.Context, chatID int64, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("недопустимый интервал: %d", minutes)
	}
	return s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.QuizFrequencyMinutes = minutes
		next := schedule.NextQuizTime(s.now(), chat.Frequency())
		chat.NextQuizTime = &next
	})
}

// SetFactInterval меняет период фактов и включает их, если выключены.
func (s *Service) SetFactInterval(ctx context.Context, chatID int64, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("недопустимый интервал: %d", minutes)
	}
	return s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.FactFrequencyMinutes = minutes
		chat.FactsEnabled = true
		next := s.now().Add(chat.FactFrequency())
		chat.NextFactTime = &next
	})
}

// ToggleDeleteOld переключает зачистку предыдущей викторины.
func (s *Service) ToggleDeleteOld(ctx context.Context, chatID int64) (bool, error) {
	var v bool
	err := s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.DeleteOldQuizzes = !chat.DeleteOldQuizzes
		v = chat.DeleteOldQuizzes
	})
	return v, err
}

// ToggleShowMyScore переключает показ личного счёта прямо в группе.
func (s *Service) ToggleShowMyScore(ctx context.Context, chatID int64) (bool, error) {
	var v bool
	err := s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.ShowMyScoreInGroup = !chat.ShowMyScoreInGroup
		v = chat.ShowMyScoreInGroup
	})
	return v, err
}

// ToggleAnonymous переключает анонимные опросы. Включение гасит
// таблицу лидеров и показ счёта: анонимный опрос не сообщает, кто
// ответил, и вести счёт нечем.
func (s *Service) ToggleAnonymous(ctx context.Context, chatID int64) (bool, error) {
	var v bool
	err := s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.AnonymousQuizzes = !chat.AnonymousQuizzes
		if chat.AnonymousQuizzes {
			chat.SendLeaderboard = false
			chat.ShowMyScoreInGroup = false
		}
		v = chat.AnonymousQuizzes
	})
	return v, err
}

// ToggleLeaderboard переключает публикацию таблицы лидеров. Включение
// выключает анонимность по той же причине, что и в ToggleAnonymous.
func (s *Service) ToggleLeaderboard(ctx context.Context, chatID int64) (bool, error) {
	var v bool
	err := s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.SendLeaderboard = !chat.SendLeaderboard
		if chat.SendLeaderboard {
			chat.AnonymousQuizzes = false
			if chat.NextLeaderboardTime == nil {
				next := schedule.NextLeaderboardTime(s.now(), s.loc, chat.LeaderboardHour, chat.LeaderboardMinute, s.rnd)
				chat.NextLeaderboardTime = &next
			}
		}
		v = chat.SendLeaderboard
	})
	return v, err
}

// SetLeaderboardTime задаёт ежедневное время публикации таблицы.
func (s *Service) SetLeaderboardTime(ctx context.Context, chatID int64, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("недопустимое время: %02d:%02d", hour, minute)
	}
	return s.update(ctx, chatID, func(chat *domain.Chat) {
		chat.LeaderboardHour = &hour
		chat.LeaderboardMinute = &minute
		next := schedule.LeaderboardTimeAt(s.now(), s.loc, hour, minute)
		chat.NextLeaderboardTime = &next
	})
}

// Get отдаёт запись чата для отрисовки меню настроек.
func (s *Service) Get(ctx context.Context, chatID int64) (*domain.Chat, error) {
	return s.chats.Get(ctx, chatID)
}

func (s *Service) update(ctx context.Context, chatID int64, mutate func(*domain.Chat)) error {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("поиск чата %d: %w", chatID, err)
	}
	mutate(chat)
	if err := s.chats.Save(ctx, chat); err != nil {
		return fmt.Errorf("сохранение чата %d: %w", chatID, err)
	}
	return nil
}
