package scores

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/usecase/questions"
)

type stubChats struct {
	byPoll map[string]*domain.Chat
}

func (s *stubChats) Get(context.Context, int64) (*domain.Chat, error) {
	return nil, domain.ErrNotFound
}
func (s *stubChats) Create(context.Context, *domain.Chat) error { return nil }
func (s *stubChats) Save(context.Context, *domain.Chat) error   { return nil }
func (s *stubChats) Delete(context.Context, int64) error        { return nil }
func (s *stubChats) ListDueQuizzes(context.Context, time.Time, int) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) ListDueFacts(context.Context, time.Time, int) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) ListDueLeaderboards(context.Context, time.Time, time.Time) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) FindByPollID(_ context.Context, pollID string) (*domain.Chat, error) {
	chat, ok := s.byPoll[pollID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return chat, nil
}
func (s *stubChats) ResetLeaderboardSent(context.Context) error      { return nil }
func (s *stubChats) ListAll(context.Context) ([]*domain.Chat, error) { return nil, nil }

type stubScores struct {
	events []domain.AnswerEvent
	score  *domain.Score
}

func (s *stubScores) RecordAnswer(_ context.Context, event domain.AnswerEvent) error {
	s.events = append(s.events, event)
	return nil
}
func (s *stubScores) GetScore(context.Context, int64, int64) (*domain.Score, error) {
	if s.score == nil {
		return nil, domain.ErrNotFound
	}
	return s.score, nil
}
func (s *stubScores) TopToday(context.Context, int64, int, int) ([]domain.Score, error) {
	return nil, nil
}
func (s *stubScores) ResetToday(context.Context, int64) error { return nil }
func (s *stubScores) RollDaily(context.Context) error         { return nil }
func (s *stubScores) DeleteUser(context.Context, int64) error { return nil }

func testBank() *questions.Bank {
	qs := make([]domain.Question, 5)
	for i := range qs {
		qs[i] = domain.Question{Question: "вопрос", Options: []string{"а", "б", "в"}, Correct: i % 3}
	}
	return questions.NewBank(qs)
}

func answer(pollID string, option int) *domain.PollAnswer {
	return &domain.PollAnswer{
		PollID:    pollID,
		UserID:    42,
		Username:  "alice",
		OptionIDs: []int{option},
	}
}

func TestHandlePollAnswerCorrect(t *testing.T) {
	// Вопрос 2 имеет правильный вариант 2.
	chat := &domain.Chat{ChatID: -1, ChatTitle: "группа", LastQuizQuestion: 2, QuizIndex: 3}
	chats := &stubChats{byPoll: map[string]*domain.Chat{"p1": chat}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	if err := svc.HandlePollAnswer(context.Background(), answer("p1", 2)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(scoreRepo.events) != 1 {
		t.Fatalf("ожидали 1 событие, получили %d", len(scoreRepo.events))
	}
	event := scoreRepo.events[0]
	if !event.Correct {
		t.Fatalf("ответ 2 на вопрос 2 должен быть верным")
	}
	if event.ChatID != -1 || event.UserID != 42 || event.ChatTitle != "группа" {
		t.Fatalf("событие должно нести контекст чата: %+v", event)
	}
}

func TestHandlePollAnswerWrong(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, LastQuizQuestion: 2, QuizIndex: 3}
	chats := &stubChats{byPoll: map[string]*domain.Chat{"p1": chat}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	if err := svc.HandlePollAnswer(context.Background(), answer("p1", 0)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(scoreRepo.events) != 1 || scoreRepo.events[0].Correct {
		t.Fatalf("неверный ответ тоже учитывается, но как неверный")
	}
}

func TestHandlePollAnswerLegacyChatUsesCursor(t *testing.T) {
	// Запись без lastQuizQuestion: активный вопрос восстанавливается
	// как курсор минус один.
	chat := &domain.Chat{ChatID: -1, LastQuizQuestion: -1, QuizIndex: 3}
	chats := &stubChats{byPoll: map[string]*domain.Chat{"p1": chat}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	// Вопрос 2, правильный вариант 2.
	if err := svc.HandlePollAnswer(context.Background(), answer("p1", 2)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(scoreRepo.events) != 1 || !scoreRepo.events[0].Correct {
		t.Fatalf("ожидали верный ответ по восстановленному индексу")
	}
}

func TestHandlePollAnswerCursorWrapsAroundZero(t *testing.T) {
	// Курсор 0 означает, что последним ушёл последний вопрос банка.
	chat := &domain.Chat{ChatID: -1, LastQuizQuestion: -1, QuizIndex: 0}
	chats := &stubChats{byPoll: map[string]*domain.Chat{"p1": chat}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	// Вопрос 4, правильный вариант 4%3=1.
	if err := svc.HandlePollAnswer(context.Background(), answer("p1", 1)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(scoreRepo.events) != 1 || !scoreRepo.events[0].Correct {
		t.Fatalf("индекс должен заворачиваться через ноль")
	}
}

func TestHandlePollAnswerUnknownPollIgnored(t *testing.T) {
	chats := &stubChats{byPoll: map[string]*domain.Chat{}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	if err := svc.HandlePollAnswer(context.Background(), answer("ghost", 0)); err != nil {
		t.Fatalf("чужой опрос игнорируется без ошибки: %v", err)
	}
	if len(scoreRepo.events) != 0 {
		t.Fatalf("чужой опрос не должен порождать событий")
	}
}

func TestHandlePollAnswerRetractionIgnored(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, LastQuizQuestion: 2}
	chats := &stubChats{byPoll: map[string]*domain.Chat{"p1": chat}}
	scoreRepo := &stubScores{}
	svc := NewService(chats, scoreRepo, testBank(), zerolog.Nop())

	ans := &domain.PollAnswer{PollID: "p1", UserID: 42}
	if err := svc.HandlePollAnswer(context.Background(), ans); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(scoreRepo.events) != 0 {
		t.Fatalf("отзыв голоса не учитывается")
	}
}

func TestMyScore(t *testing.T) {
	scoreRepo := &stubScores{score: &domain.Score{
		TodayCorrect: 3, TodayAttempted: 4,
		TotalCorrect: 30, TotalAttempted: 50,
	}}
	svc := NewService(&stubChats{}, scoreRepo, testBank(), zerolog.Nop())

	text, err := svc.MyScore(context.Background(), -1, 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(text, "3/4") || !strings.Contains(text, "30/50") {
		t.Fatalf("ожидали оба счётчика в тексте: %s", text)
	}
}

func TestMyScoreWithoutHistory(t *testing.T) {
	svc := NewService(&stubChats{}, &stubScores{}, testBank(), zerolog.Nop())

	text, err := svc.MyScore(context.Background(), -1, 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(text, "haven't answered") {
		t.Fatalf("новичок должен получить подсказку, а не ошибку: %s", text)
	}
}
