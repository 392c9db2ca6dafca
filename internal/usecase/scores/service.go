// Package scores сопоставляет ответы на опросы с отправленными
// викторинами и ведёт личный счёт участников.
package scores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/metrics"
	"tg-quiz-bot/internal/usecase/questions"
)

// Service учитывает ответы участников.
type Service struct {
	chats  domain.ChatRepo
	scores domain.ScoreRepo
	bank   *questions.Bank
	log    zerolog.Logger
}

// NewService создаёт сервис учёта очков.
func NewService(chats domain.ChatRepo, scores domain.ScoreRepo, bank *questions.Bank, logger zerolog.Logger) *Service {
	return &Service{chats: chats, scores: scores, bank: bank, log: logger}
}

// HandlePollAnswer учитывает один ответ. Ответы на опросы, которые бот
// не отправлял (или которые уже вытеснены следующей викториной),
// молча игнорируются.
func (s *Service) HandlePollAnswer(ctx context.Context, ans *domain.PollAnswer) error {
	chat, err := s.chats.FindByPollID(ctx, ans.PollID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("поиск чата по опросу: %w", err)
	}
	if len(ans.OptionIDs) == 0 {
		// Отзыв голоса очки не возвращает.
		return nil
	}

	q := s.bank.Get(s.questionIndex(chat))
	correct := ans.OptionIDs[0] == q.Correct

	event := domain.AnswerEvent{
		ChatID:    chat.ChatID,
		UserID:    ans.UserID,
		Username:  ans.Username,
		FirstName: ans.FirstName,
		LastName:  ans.LastName,
		ChatTitle: chat.ChatTitle,
		Correct:   correct,
	}
	if err := s.scores.RecordAnswer(ctx, event); err != nil {
		return fmt.Errorf("запись ответа: %w", err)
	}
	metrics.AnswersRecorded.WithLabelValues(strconv.FormatBool(correct)).Inc()
	return nil
}

// questionIndex возвращает индекс вопроса активного опроса. Записи,
// созданные до появления поля lastQuizQuestion, восстанавливают его из
// курсора: курсор уже продвинут на следующий вопрос.
func (s *Service) questionIndex(chat *domain.Chat) int {
	if chat.LastQuizQuestion >= 0 {
		return chat.LastQuizQuestion
	}
	size := s.bank.Size()
	return ((chat.QuizIndex-1)%size + size) % size
}

// MyScore возвращает текст личной статистики участника в чате.
func (s *Service) MyScore(ctx context.Context, chatID, userID int64) (string, error) {
	score, err := s.scores.GetScore(ctx, chatID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "You haven't answered any quizzes here yet. Wait for the next one!", nil
	}
	if err != nil {
		return "", fmt.Errorf("чтение очков: %w", err)
	}
	return fmt.Sprintf(
		"📊 <b>Your score</b>\n\nToday: %d/%d correct\nAll time: %d/%d correct",
		score.TodayCorrect, score.TodayAttempted,
		score.TotalCorrect, score.TotalAttempted,
	), nil
}

// EraseUser удаляет очки пользователя во всех чатах.
func (s *Service) EraseUser(ctx context.Context, userID int64) error {
	return s.scores.DeleteUser(ctx, userID)
}
