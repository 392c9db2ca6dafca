package settings

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type stubChats struct {
	chats   map[int64]*domain.Chat
	created int
}

func newStubChats(chats ...*domain.Chat) *stubChats {
	m := make(map[int64]*domain.Chat)
	for _, c := range chats {
		m[c.ChatID] = c
	}
	return &stubChats{chats: m}
}

func (s *stubChats) Get(_ context.Context, chatID int64) (*domain.Chat, error) {
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return chat, nil
}
func (s *stubChats) Create(_ context.Context, chat *domain.Chat) error {
	s.chats[chat.ChatID] = chat
	s.created++
	return nil
}
func (s *stubChats) Save(_ context.Context, chat *domain.Chat) error {
	s.chats[chat.ChatID] = chat
	return nil
}
func (s *stubChats) Delete(_ context.Context, chatID int64) error {
	delete(s.chats, chatID)
	return nil
}
func (s *stubChats) ListDueQuizzes(context.Context, time.Time, int) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) ListDueFacts(context.Context, time.Time, int) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) ListDueLeaderboards(context.Context, time.Time, time.Time) ([]*domain.Chat, error) {
	return nil, nil
}
func (s *stubChats) FindByPollID(context.Context, string) (*domain.Chat, error) {
	return nil, domain.ErrNotFound
}
func (s *stubChats) ResetLeaderboardSent(context.Context) error      { return nil }
func (s *stubChats) ListAll(context.Context) ([]*domain.Chat, error) { return nil, nil }

func testService(chats *stubChats) *Service {
	svc := NewService(chats, zerolog.Nop(), time.UTC, 150, rand.New(rand.NewSource(1)))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestRegisterGroupDefaults(t *testing.T) {
	chats := newStubChats()
	svc := testService(chats)

	created, err := svc.Register(context.Background(), -1, 0, "группа", true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !created {
		t.Fatalf("ожидали создание записи")
	}
	chat := chats.chats[-1]
	if chat.QuizState != domain.QuizOn || !chat.CanSend {
		t.Fatalf("новый чат должен быть включён")
	}
	if chat.QuizIndex < 0 || chat.QuizIndex >= 150 {
		t.Fatalf("стартовый курсор вне банка: %d", chat.QuizIndex)
	}
	if chat.LastQuizQuestion != -1 {
		t.Fatalf("новый чат ещё не получал вопросов")
	}
	want := testNow.Add(firstQuizDelay)
	if chat.NextQuizTime == nil || !chat.NextQuizTime.Equal(want) {
		t.Fatalf("первая викторина должна прийти через 5 минут, получили %v", chat.NextQuizTime)
	}
	if !chat.SendLeaderboard {
		t.Fatalf("группам таблица лидеров включается по умолчанию")
	}
	if chat.LeaderboardHour == nil || *chat.LeaderboardHour < 16 || *chat.LeaderboardHour > 19 {
		t.Fatalf("слот таблицы должен попасть в вечернее окно: %v", chat.LeaderboardHour)
	}
	if !chat.DeleteOldQuizzes || !chat.ShowMyScoreInGroup {
		t.Fatalf("ожидали включённые умолчания зачистки и показа счёта")
	}
}

func TestRegisterGroupEnablesFacts(t *testing.T) {
	chats := newStubChats()
	svc := testService(chats)

	if _, err := svc.Register(context.Background(), -1, 0, "группа", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	chat := chats.chats[-1]
	if !chat.FactsEnabled {
		t.Fatalf("группа должна получать факты")
	}
	want := testNow.Add(chat.FactFrequency())
	if chat.NextFactTime == nil || !chat.NextFactTime.Equal(want) {
		t.Fatalf("первый факт должен быть назначен, получили %v", chat.NextFactTime)
	}
}

func TestRegisterPrivateChatHasNoSchedule(t *testing.T) {
	chats := newStubChats()
	svc := testService(chats)

	if _, err := svc.Register(context.Background(), 42, 0, "alice", false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	chat := chats.chats[42]
	if chat.CanSend {
		t.Fatalf("личный чат не получает рассылку")
	}
	if chat.NextQuizTime != nil || chat.NextFactTime != nil {
		t.Fatalf("личному чату не назначается расписание: %v, %v", chat.NextQuizTime, chat.NextFactTime)
	}
	if chat.FactsEnabled {
		t.Fatalf("факты рассылаются только в группы")
	}
	if chat.SendLeaderboard {
		t.Fatalf("личному чату таблица лидеров не нужна")
	}
	if chat.LeaderboardHour != nil || chat.NextLeaderboardTime != nil {
		t.Fatalf("личному чату не назначается слот таблицы")
	}
}

func TestRegisterExistingGroupReenablesFacts(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, QuizState: domain.QuizOffByUser, FactsEnabled: false}
	chats := newStubChats(chat)
	svc := testService(chats)

	if _, err := svc.Register(context.Background(), -1, 0, "группа", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !chat.FactsEnabled || chat.NextFactTime == nil {
		t.Fatalf("повторная регистрация группы должна включить факты")
	}
}

func TestRegisterExistingChatReenables(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, QuizState: domain.QuizOffByUser, QuizIndex: 77}
	chats := newStubChats(chat)
	svc := testService(chats)

	created, err := svc.Register(context.Background(), -1, 0, "группа", true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if created {
		t.Fatalf("существующий чат не пересоздаётся")
	}
	if chat.QuizState != domain.QuizOn || !chat.CanSend {
		t.Fatalf("чат должен включиться обратно")
	}
	if chat.QuizIndex != 77 {
		t.Fatalf("курсор должен сохраниться, получили %d", chat.QuizIndex)
	}
}

func TestDisableQuizzesKeepsConfig(t *testing.T) {
	next := testNow.Add(time.Hour)
	chat := &domain.Chat{ChatID: -1, QuizState: domain.QuizOn, CanSend: true, NextQuizTime: &next, AnonymousQuizzes: true, QuizIndex: 5}
	chats := newStubChats(chat)
	svc := testService(chats)

	if err := svc.DisableQuizzes(context.Background(), -1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if chat.QuizState != domain.QuizOffByUser || chat.CanSend {
		t.Fatalf("ожидали пользовательское отключение")
	}
	if chat.NextQuizTime != nil {
		t.Fatalf("расписание должно очиститься")
	}
	if !chat.AnonymousQuizzes || chat.QuizIndex != 5 {
		t.Fatalf("настройки и курсор должны пережить отключение")
	}
}

func TestAnonymousTurnsOffLeaderboard(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, SendLeaderboard: true, ShowMyScoreInGroup: true}
	chats := newStubChats(chat)
	svc := testService(chats)

	on, err := svc.ToggleAnonymous(context.Background(), -1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !on {
		t.Fatalf("ожидали включение анонимности")
	}
	if chat.SendLeaderboard || chat.ShowMyScoreInGroup {
		t.Fatalf("анонимность несовместима с таблицей и показом счёта")
	}
}

func TestLeaderboardTurnsOffAnonymous(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, AnonymousQuizzes: true}
	chats := newStubChats(chat)
	svc := testService(chats)

	on, err := svc.ToggleLeaderboard(context.Background(), -1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !on {
		t.Fatalf("ожидали включение таблицы")
	}
	if chat.AnonymousQuizzes {
		t.Fatalf("таблица несовместима с анонимными опросами")
	}
	if chat.NextLeaderboardTime == nil {
		t.Fatalf("включение таблицы должно назначить время публикации")
	}
}

func TestToggleOffDoesNotTouchOtherSettings(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, SendLeaderboard: true, ShowMyScoreInGroup: true}
	chats := newStubChats(chat)
	svc := testService(chats)

	// Выключение анонимности (она и так выключена -> включение и сразу
	// выключение) возвращает исходное состояние таблицы не трогая её.
	if _, err := svc.ToggleAnonymous(context.Background(), -1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	on, err := svc.ToggleAnonymous(context.Background(), -1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if on {
		t.Fatalf("ожидали выключенную анонимность")
	}
	if chat.SendLeaderboard {
		t.Fatalf("выключение анонимности не включает таблицу обратно")
	}
}

func TestSetQuizIntervalReschedules(t *testing.T) {
	old := testNow.Add(10 * time.Hour)
	chat := &domain.Chat{ChatID: -1, QuizState: domain.QuizOn, CanSend: true, NextQuizTime: &old}
	chats := newStubChats(chat)
	svc := testService(chats)

	if err := svc.SetQuizInterval(context.Background(), -1, 90); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if chat.QuizFrequencyMinutes != 90 {
		t.Fatalf("интервал должен сохраниться, получили %d", chat.QuizFrequencyMinutes)
	}
	want := testNow.Add(90 * time.Minute)
	if chat.NextQuizTime == nil || !chat.NextQuizTime.Equal(want) {
		t.Fatalf("расписание должно пересчитаться от текущего момента, получили %v", chat.NextQuizTime)
	}
}

func TestSetQuizIntervalRejectsNonPositive(t *testing.T) {
	chats := newStubChats(&domain.Chat{ChatID: -1})
	svc := testService(chats)

	if err := svc.SetQuizInterval(context.Background(), -1, 0); err == nil {
		t.Fatalf("нулевой интервал должен отклоняться")
	}
}

func TestSetLeaderboardTime(t *testing.T) {
	chat := &domain.Chat{ChatID: -1, SendLeaderboard: true}
	chats := newStubChats(chat)
	svc := testService(chats)

	if err := svc.SetLeaderboardTime(context.Background(), -1, 19, 30); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if chat.LeaderboardHour == nil || *chat.LeaderboardHour != 19 || *chat.LeaderboardMinute != 30 {
		t.Fatalf("время должно сохраниться")
	}
	next := chat.NextLeaderboardTime
	if next == nil || next.Hour() != 19 || next.Minute() != 30 {
		t.Fatalf("следующая публикация должна попасть в слот, получили %v", next)
	}
	if !next.After(testNow) {
		t.Fatalf("публикация не может быть в прошлом")
	}

	if err := svc.SetLeaderboardTime(context.Background(), -1, 24, 0); err == nil {
		t.Fatalf("недопустимое время должно отклоняться")
	}
}
