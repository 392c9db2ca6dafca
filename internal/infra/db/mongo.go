package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo держит клиент и коллекции бота.
type Mongo struct {
	Client *mongo.Client

	Chats  *mongo.Collection
	Scores *mongo.Collection
	Stats  *mongo.Collection
}

// Connect подключается к MongoDB и создаёт индексы.
func Connect(uri, dbName string, logger zerolog.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("подключение к MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	m := &Mongo{
		Client: client,
		Chats:  database.Collection("chats"),
		Scores: database.Collection("scores"),
		Stats:  database.Collection("quizstats"),
	}
	m.createIndexes(logger)

	logger.Info().Str("db", dbName).Msg("mongo: подключено")
	return m, nil
}

func (m *Mongo) createIndexes(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chatIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chatId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "nextQuizTime", Value: 1}}},
		{Keys: bson.D{{Key: "lastQuizPollId", Value: 1}}},
	}
	if _, err := m.Chats.Indexes().CreateMany(ctx, chatIndexes); err != nil {
		logger.Error().Err(err).Msg("mongo: индексы chats")
	}

	scoreIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "todayCorrect", Value: -1}}},
	}
	if _, err := m.Scores.Indexes().CreateMany(ctx, scoreIndexes); err != nil {
		logger.Error().Err(err).Msg("mongo: индексы scores")
	}
}

// Disconnect закрывает соединение.
func (m *Mongo) Disconnect(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Client.Disconnect(ctx); err != nil {
		logger.Error().Err(err).Msg("mongo: ошибка отключения")
	}
}
