package leaderboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
)

var testNow = time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

type stubChats struct {
	due        []*domain.Chat
	resetCalls int
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
func (s *stubChats) ListDueLeaderboards(_ context.Context, _ time.Time, createdBefore time.Time) ([]*domain.Chat, error) {
	var due []*domain.Chat
	for _, c := range s.due {
		if c.CreatedAt.Before(createdBefore) {
			due = append(due, c)
		}
	}
	return due, nil
}
func (s *stubChats) FindByPollID(context.Context, string) (*domain.Chat, error) {
	return nil, domain.ErrNotFound
}
func (s *stubChats) ResetLeaderboardSent(context.Context) error {
	s.resetCalls++
	return nil
}
func (s *stubChats) ListAll(context.Context) ([]*domain.Chat, error) { return s.due, nil }

type stubScores struct {
	top        []domain.Score
	resetChats []int64
	rolled     int
}

func (s *stubScores) RecordAnswer(context.Context, domain.AnswerEvent) error { return nil }
func (s *stubScores) GetScore(context.Context, int64, int64) (*domain.Score, error) {
	return nil, domain.ErrNotFound
}
func (s *stubScores) TopToday(context.Context, int64, int, int) ([]domain.Score, error) {
	return s.top, nil
}
func (s *stubScores) ResetToday(_ context.Context, chatID int64) error {
	s.resetChats = append(s.resetChats, chatID)
	return nil
}
func (s *stubScores) RollDaily(context.Context) error {
	s.rolled++
	return nil
}
func (s *stubScores) DeleteUser(context.Context, int64) error { return nil }

type stubSender struct {
	failures []error
	sent     []string
}

func (s *stubSender) SendQuiz(context.Context, int64, int64, domain.Question, bool) (domain.SentQuiz, error) {
	return domain.SentQuiz{}, nil
}
func (s *stubSender) SendHTML(_ context.Context, _ int64, _ int64, text string) (int, error) {
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return 0, err
		}
	}
	s.sent = append(s.sent, text)
	return 1, nil
}
func (s *stubSender) DeleteMessage(context.Context, int64, int) error { return nil }

func boardChat() *domain.Chat {
	lbTime := testNow.Add(-time.Minute)
	return &domain.Chat{
		ChatID:              -1,
		ChatTitle:           "группа",
		QuizState:           domain.QuizOn,
		CanSend:             true,
		SendLeaderboard:     true,
		NextLeaderboardTime: &lbTime,
		CreatedAt:           testNow.Add(-48 * time.Hour),
	}
}

func testService(chats *stubChats, scores *stubScores, sender *stubSender) *Service {
	svc := NewService(chats, scores, sender, zerolog.Nop(), Config{Location: time.UTC})
	svc.now = func() time.Time { return testNow }
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestRunPublishesAndMarks(t *testing.T) {
	chat := boardChat()
	prev := *chat.NextLeaderboardTime
	chats := &stubChats{due: []*domain.Chat{chat}}
	scores := &stubScores{top: []domain.Score{
		{DisplayName: "@alice", TodayCorrect: 7, TodayAttempted: 8},
		{DisplayName: "Боб", TodayCorrect: 5, TodayAttempted: 9},
	}}
	sender := &stubSender{}
	svc := testService(chats, scores, sender)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("ожидали 1 публикацию, получили %d", len(sender.sent))
	}
	if !chat.LeaderboardSentToday {
		t.Fatalf("ожидали отметку об отправке")
	}
	want := prev.Add(24 * time.Hour)
	if chat.NextLeaderboardTime == nil || !chat.NextLeaderboardTime.Equal(want) {
		t.Fatalf("ожидали сдвиг ровно на сутки, получили %v", chat.NextLeaderboardTime)
	}
	if len(scores.resetChats) != 1 || scores.resetChats[0] != -1 {
		t.Fatalf("дневные очки чата должны сброситься после публикации")
	}
}

func TestRunFailureLeavesChatUnmarked(t *testing.T) {
	chat := boardChat()
	chats := &stubChats{due: []*domain.Chat{chat}}
	scores := &stubScores{top: []domain.Score{{DisplayName: "@alice", TodayCorrect: 5, TodayAttempted: 5}}}
	sender := &stubSender{failures: []error{
		&domain.SendFailure{Kind: domain.FailurePermissionLost},
	}}
	svc := testService(chats, scores, sender)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if chat.LeaderboardSentToday {
		t.Fatalf("при отказе отметка не ставится, чат попробует снова")
	}
	if len(scores.resetChats) != 0 {
		t.Fatalf("очки не должны сбрасываться без публикации")
	}
}

func TestRunRetriesOnRateLimit(t *testing.T) {
	chat := boardChat()
	chats := &stubChats{due: []*domain.Chat{chat}}
	scores := &stubScores{top: []domain.Score{{DisplayName: "@alice", TodayCorrect: 5, TodayAttempted: 5}}}
	sender := &stubSender{failures: []error{
		&domain.SendFailure{Kind: domain.FailureRateLimited, Backoff: time.Second},
	}}
	svc := testService(chats, scores, sender)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("после rate limit публикация должна повториться")
	}
	if !chat.LeaderboardSentToday {
		t.Fatalf("ожидали отметку после успешного повтора")
	}
}

func TestRunEmptyBoardAdvancesWithoutSending(t *testing.T) {
	chat := boardChat()
	chats := &stubChats{due: []*domain.Chat{chat}}
	sender := &stubSender{}
	svc := testService(chats, &stubScores{}, sender)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("пустая таблица не публикуется")
	}
	if !chat.LeaderboardSentToday {
		t.Fatalf("чат без лидеров всё равно должен продвинуться на завтра")
	}
}

func TestWarmupFiltersYoungChats(t *testing.T) {
	young := boardChat()
	young.CreatedAt = testNow.Add(-time.Hour)
	chats := &stubChats{due: []*domain.Chat{young}}
	sender := &stubSender{}
	svc := testService(chats, &stubScores{top: []domain.Score{{DisplayName: "@a", TodayCorrect: 5, TodayAttempted: 5}}}, sender)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("молодой чат не должен получать таблицу")
	}
}

func TestNextTimeWithoutStoredSlot(t *testing.T) {
	svc := testService(&stubChats{}, &stubScores{}, &stubSender{})
	chat := &domain.Chat{ChatID: -1, SendLeaderboard: true}

	next := svc.nextTime(chat)
	if next == nil {
		t.Fatalf("чат без сохранённого слота должен получить новый")
	}
	if next.Before(testNow) {
		t.Fatalf("слот не может быть в прошлом: %v", next)
	}
}

func TestNightlyReset(t *testing.T) {
	chats := &stubChats{}
	scores := &stubScores{}
	svc := testService(chats, scores, &stubSender{})

	if err := svc.NightlyReset(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if scores.rolled != 1 {
		t.Fatalf("ожидали перенос дневных счётчиков")
	}
	if chats.resetCalls != 1 {
		t.Fatalf("ожидали сброс дневного флага")
	}
}

func TestRenderEscapesAndRanks(t *testing.T) {
	entries := []domain.Score{
		{DisplayName: "<b>alice</b>", TodayCorrect: 9, TodayAttempted: 10},
		{DisplayName: "@bob", TodayCorrect: 7, TodayAttempted: 10},
		{DisplayName: "@carol", TodayCorrect: 5, TodayAttempted: 10},
		{DisplayName: "@dave", TodayCorrect: 3, TodayAttempted: 10},
	}
	html := Render(entries)
	if strings.Contains(html, "<b>alice</b>") {
		t.Fatalf("имена должны экранироваться")
	}
	if !strings.Contains(html, "🥇 &lt;b&gt;alice&lt;/b&gt; — 9/10") {
		t.Fatalf("первое место должно получить медаль: %s", html)
	}
	if !strings.Contains(html, "4. @dave — 3/10") {
		t.Fatalf("места после третьего нумеруются: %s", html)
	}
}
