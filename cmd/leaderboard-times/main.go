// Утилита разового обслуживания: пересчитывает время публикации таблиц
// лидеров у всех чатов, раскладывая их по случайным вечерним слотам.
package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"tg-quiz-bot/internal/adapters/repo"
	"tg-quiz-bot/internal/infra/config"
	"tg-quiz-bot/internal/infra/db"
	"tg-quiz-bot/internal/infra/log"
	"tg-quiz-bot/internal/usecase/schedule"
)

const perChatPause = 100 * time.Millisecond

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("не удалось загрузить часовой пояс")
	}

	database, err := db.Connect(cfg.MongoURI, cfg.MongoDBName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer database.Disconnect(logger)

	repoAdapter := repo.NewMongo(database)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	ctx := context.Background()
	chats, err := repoAdapter.ListAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось получить чаты")
	}

	updated := 0
	for _, chat := range chats {
		if !chat.SendLeaderboard {
			continue
		}
		hour, minute := schedule.RandomLeaderboardSlot(rnd)
		next := schedule.LeaderboardTimeAt(time.Now(), loc, hour, minute)
		chat.LeaderboardHour = &hour
		chat.LeaderboardMinute = &minute
		chat.NextLeaderboardTime = &next
		if err := repoAdapter.Save(ctx, chat); err != nil {
			logger.Error().Err(err).Int64("chat", chat.ChatID).Msg("не удалось сохранить чат")
			continue
		}
		updated++
		logger.Info().Int64("chat", chat.ChatID).Str("slot", next.Format("15:04")).Msg("слот обновлён")
		time.Sleep(perChatPause)
	}
	logger.Info().Int("updated", updated).Int("total", len(chats)).Msg("готово")
}
