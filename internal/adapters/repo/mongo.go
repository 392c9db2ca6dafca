// Package repo реализует репозитории домена поверх MongoDB.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/infra/db"
)

// Mongo реализует ChatRepo, ScoreRepo и StatsRepo.
type Mongo struct {
	db *db.Mongo
}

var _ domain.ChatRepo = (*Mongo)(nil)
var _ domain.ScoreRepo = (*Mongo)(nil)
var _ domain.StatsRepo = (*Mongo)(nil)

// NewMongo создаёт адаптер БД.
func NewMongo(database *db.Mongo) *Mongo {
	return &Mongo{db: database}
}

func (m *Mongo) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Get возвращает чат по идентификатору.
func (m *Mongo) Get(ctx context.Context, chatID int64) (*domain.Chat, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	var chat domain.Chat
	err := m.db.Chats.FindOne(ctx, bson.M{"chatId": chatID}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("поиск чата %d: %w", chatID, err)
	}
	return &chat, nil
}

// Create вставляет новый документ чата.
func (m *Mongo) Create(ctx context.Context, chat *domain.Chat) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	if _, err := m.db.Chats.InsertOne(ctx, chat); err != nil {
		return fmt.Errorf("создание чата %d: %w", chat.ChatID, err)
	}
	return nil
}

// Save перезаписывает документ чата целиком (upsert по chatId).
func (m *Mongo) Save(ctx context.Context, chat *domain.Chat) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	chat.UpdatedAt = time.Now().UTC()
	_, err := m.db.Chats.ReplaceOne(ctx,
		bson.M{"chatId": chat.ChatID},
		chat,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("сохранение чата %d: %w", chat.ChatID, err)
	}
	return nil
}

// Delete удаляет документ чата.
func (m *Mongo) Delete(ctx context.Context, chatID int64) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	if _, err := m.db.Chats.DeleteOne(ctx, bson.M{"chatId": chatID}); err != nil {
		return fmt.Errorf("удаление чата %d: %w", chatID, err)
	}
	return nil
}

func (m *Mongo) listChats(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Chat, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	cursor, err := m.db.Chats.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("выборка чатов: %w", err)
	}
	defer cursor.Close(ctx)

	var chats []*domain.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("чтение курсора чатов: %w", err)
	}
	return chats, nil
}

// ListDueQuizzes возвращает пачку чатов, которым пора отправить викторину.
func (m *Mongo) ListDueQuizzes(ctx context.Context, now time.Time, limit int) ([]*domain.Chat, error) {
	return m.listChats(ctx, bson.M{
		"quizState":    domain.QuizOn,
		"canSend":      true,
		"nextQuizTime": bson.M{"$lte": now},
	}, options.Find().SetLimit(int64(limit)))
}

// ListDueFacts возвращает пачку чатов, которым пора отправить факт.
func (m *Mongo) ListDueFacts(ctx context.Context, now time.Time, limit int) ([]*domain.Chat, error) {
	return m.listChats(ctx, bson.M{
		"factsEnabled": true,
		"canSend":      true,
		"nextFactTime": bson.M{"$lte": now},
	}, options.Find().SetLimit(int64(limit)))
}

// ListDueLeaderboards выбирает чаты, готовые к таблице лидеров.
func (m *Mongo) ListDueLeaderboards(ctx context.Context, now, createdBefore time.Time) ([]*domain.Chat, error) {
	return m.listChats(ctx, bson.M{
		"quizState":            domain.QuizOn,
		"sendLeaderboard":      true,
		"leaderboardSentToday": false,
		"nextLeaderboardTime":  bson.M{"$lte": now},
		"createdAt":            bson.M{"$lte": createdBefore},
	}, nil)
}

// FindByPollID находит чат по идентификатору последнего опроса.
func (m *Mongo) FindByPollID(ctx context.Context, pollID string) (*domain.Chat, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	var chat domain.Chat
	err := m.db.Chats.FindOne(ctx, bson.M{"lastQuizPollId": pollID}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("поиск чата по опросу: %w", err)
	}
	return &chat, nil
}

// ResetLeaderboardSent снимает дневной флаг у всех чатов.
func (m *Mongo) ResetLeaderboardSent(ctx context.Context) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	_, err := m.db.Chats.UpdateMany(ctx, bson.M{},
		bson.M{"$set": bson.M{"leaderboardSentToday": false}})
	if err != nil {
		return fmt.Errorf("сброс флага таблицы лидеров: %w", err)
	}
	return nil
}

// ListAll возвращает весь реестр чатов.
func (m *Mongo) ListAll(ctx context.Context) ([]*domain.Chat, error) {
	return m.listChats(ctx, bson.M{}, nil)
}

// RecordAnswer атомарно инкрементирует счётчики через $inc-upsert:
// параллельные ответы одной пары (чат, пользователь) не теряются.
func (m *Mongo) RecordAnswer(ctx context.Context, event domain.AnswerEvent) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	correct := 0
	if event.Correct {
		correct = 1
	}
	displayName := domain.DisplayName(event.Username, event.FirstName, event.LastName)

	now := time.Now().UTC()
	_, err := m.db.Scores.UpdateOne(ctx,
		bson.M{"chatId": event.ChatID, "userId": event.UserID},
		bson.M{
			"$inc": bson.M{
				"totalAttempted": 1,
				"todayAttempted": 1,
				"totalCorrect":   correct,
				"todayCorrect":   correct,
			},
			"$set": bson.M{
				"displayName": displayName,
				"firstName":   event.FirstName,
				"lastName":    event.LastName,
				"chatTitle":   event.ChatTitle,
				"updatedAt":   now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("запись ответа %d/%d: %w", event.ChatID, event.UserID, err)
	}
	return nil
}

// Get возвращает очки пользователя в чате.
func (m *Mongo) GetScore(ctx context.Context, chatID, userID int64) (*domain.Score, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	var score domain.Score
	err := m.db.Scores.FindOne(ctx, bson.M{"chatId": chatID, "userId": userID}).Decode(&score)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("поиск очков %d/%d: %w", chatID, userID, err)
	}
	return &score, nil
}

// TopToday — лучшие участники чата за сегодня.
func (m *Mongo) TopToday(ctx context.Context, chatID int64, minCorrect, limit int) ([]domain.Score, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	cursor, err := m.db.Scores.Find(ctx,
		bson.M{"chatId": chatID, "todayCorrect": bson.M{"$gte": minCorrect}},
		options.Find().SetSort(bson.D{{Key: "todayCorrect", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("выборка лидеров чата %d: %w", chatID, err)
	}
	defer cursor.Close(ctx)

	var scores []domain.Score
	if err := cursor.All(ctx, &scores); err != nil {
		return nil, fmt.Errorf("чтение курсора лидеров: %w", err)
	}
	return scores, nil
}

// ResetToday обнуляет дневные счётчики одного чата.
func (m *Mongo) ResetToday(ctx context.Context, chatID int64) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	_, err := m.db.Scores.UpdateMany(ctx, bson.M{"chatId": chatID},
		bson.M{"$set": bson.M{"todayCorrect": 0, "todayAttempted": 0}})
	if err != nil {
		return fmt.Errorf("сброс дневных очков чата %d: %w", chatID, err)
	}
	return nil
}

// RollDaily переносит дневные счётчики во вчерашний снимок (pipeline-update).
func (m *Mongo) RollDaily(ctx context.Context) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	_, err := m.db.Scores.UpdateMany(ctx, bson.M{}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"dayCorrect":     "$todayCorrect",
			"dayAttempted":   "$todayAttempted",
			"todayCorrect":   0,
			"todayAttempted": 0,
		}}},
	})
	if err != nil {
		return fmt.Errorf("ночной перенос очков: %w", err)
	}
	return nil
}

// DeleteUser стирает все очки пользователя по запросу на удаление данных.
func (m *Mongo) DeleteUser(ctx context.Context, userID int64) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	if _, err := m.db.Scores.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("удаление очков пользователя %d: %w", userID, err)
	}
	return nil
}

// GetStats возвращает единственный документ статистики.
func (m *Mongo) GetStats(ctx context.Context) (*domain.QuizStats, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	var stats domain.QuizStats
	err := m.db.Stats.FindOne(ctx, bson.M{}).Decode(&stats)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение статистики: %w", err)
	}
	return &stats, nil
}

// SaveStats перезаписывает документ статистики (upsert).
func (m *Mongo) SaveStats(ctx context.Context, stats *domain.QuizStats) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	_, err := m.db.Stats.ReplaceOne(ctx, bson.M{}, stats, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("сохранение статистики: %w", err)
	}
	return nil
}
