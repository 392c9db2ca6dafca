package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, если документ отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// ChatRepo управляет реестром чатов.
type ChatRepo interface {
	Get(ctx context.Context, chatID int64) (*Chat, error)
	// Create вставляет новый документ; чат с таким ChatID не должен существовать.
	Create(ctx context.Context, chat *Chat) error
	// Save целиком перезаписывает документ по ChatID (upsert).
	Save(ctx context.Context, chat *Chat) error
	Delete(ctx context.Context, chatID int64) error

	// ListDueQuizzes возвращает пачку чатов, которым пора отправить викторину.
	ListDueQuizzes(ctx context.Context, now time.Time, limit int) ([]*Chat, error)
	// ListDueFacts возвращает пачку чатов, которым пора отправить факт.
	ListDueFacts(ctx context.Context, now time.Time, limit int) ([]*Chat, error)
	// ListDueLeaderboards: включённая таблица лидеров, сегодня ещё не
	// отправлялась, время пришло и чат создан раньше createdBefore.
	ListDueLeaderboards(ctx context.Context, now, createdBefore time.Time) ([]*Chat, error)

	FindByPollID(ctx context.Context, pollID string) (*Chat, error)
	// ResetLeaderboardSent снимает дневной флаг у всех чатов.
	ResetLeaderboardSent(ctx context.Context) error
	// ListAll отдаёт весь реестр, для обслуживающих утилит.
	ListAll(ctx context.Context) ([]*Chat, error)
}

// ScoreRepo — журнал очков.
type ScoreRepo interface {
	// RecordAnswer атомарно инкрементирует счётчики пары (чат, пользователь),
	// создавая документ при первом ответе. Имя обновляется всегда.
	RecordAnswer(ctx context.Context, event AnswerEvent) error
	GetScore(ctx context.Context, chatID, userID int64) (*Score, error)
	// TopToday — лучшие за сегодня: минимум minCorrect верных ответов,
	// по убыванию, не более limit записей.
	TopToday(ctx context.Context, chatID int64, minCorrect, limit int) ([]Score, error)
	// ResetToday обнуляет дневные счётчики одного чата.
	ResetToday(ctx context.Context, chatID int64) error
	// RollDaily переносит дневные счётчики всех чатов во вчерашний снимок.
	RollDaily(ctx context.Context) error
	DeleteUser(ctx context.Context, userID int64) error
}

// StatsRepo хранит единственный документ QuizStats.
type StatsRepo interface {
	GetStats(ctx context.Context) (*QuizStats, error)
	SaveStats(ctx context.Context, stats *QuizStats) error
}

// QuizSender — то, что движку нужно от транспорта Telegram.
// Ошибки отправки возвращаются уже классифицированными (*SendFailure).
type QuizSender interface {
	SendQuiz(ctx context.Context, chatID, topicID int64, q Question, anonymous bool) (SentQuiz, error)
	SendHTML(ctx context.Context, chatID, topicID int64, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// AdminLister проверяет админские права в чате.
type AdminLister interface {
	IsBotAdmin(ctx context.Context, chatID int64) (bool, error)
	IsUserAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// EventSink принимает телеметрию рассылок. Реализация сама режет текст
// на допустимые куски и переживает собственные rate limit'ы; ошибки
// стока никогда не прерывают рассылку.
type EventSink interface {
	Record(ctx context.Context, text string)
	RecordError(ctx context.Context, text string)
}
