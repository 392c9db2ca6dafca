package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"tg-quiz-bot/internal/adapters/bot"
	"tg-quiz-bot/internal/adapters/eventlog"
	"tg-quiz-bot/internal/adapters/repo"
	"tg-quiz-bot/internal/adapters/telegram"
	"tg-quiz-bot/internal/infra/config"
	"tg-quiz-bot/internal/infra/db"
	httpinfra "tg-quiz-bot/internal/infra/http"
	"tg-quiz-bot/internal/infra/log"
	"tg-quiz-bot/internal/infra/metrics"
	"tg-quiz-bot/internal/usecase/broadcast"
	"tg-quiz-bot/internal/usecase/leaderboard"
	"tg-quiz-bot/internal/usecase/questions"
	"tg-quiz-bot/internal/usecase/scores"
	"tg-quiz-bot/internal/usecase/settings"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("не удалось загрузить часовой пояс")
	}

	database, err := db.Connect(cfg.MongoURI, cfg.MongoDBName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer database.Disconnect(logger)

	bank, err := questions.LoadBank(cfg.Quiz.QuestionsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.Quiz.QuestionsFile).Msg("не удалось загрузить банк вопросов")
	}
	facts, err := questions.LoadFacts(cfg.Quiz.FactsFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.Quiz.FactsFile).Msg("факты недоступны, рассылка фактов выключена")
		facts = questions.NewFactBank(nil)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("бот авторизован")

	eventBot := botAPI
	if cfg.Telegram.EventToken != "" {
		eventBot, err = tgbotapi.NewBotAPI(cfg.Telegram.EventToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать бота телеметрии")
		}
	}
	sink := eventlog.NewSink(eventBot, cfg.Telegram.EventGroupID, cfg.Telegram.EventTopicID, cfg.Telegram.ErrorGroupID, logger)

	repoAdapter := repo.NewMongo(database)
	sender := telegram.NewSender(botAPI, logger)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	engineCfg := broadcast.Config{
		BatchSize:    cfg.Quiz.BatchSize,
		PerChatDelay: time.Duration(cfg.Quiz.SendDelayMS) * time.Millisecond,
		Location:     loc,
	}
	engine := broadcast.NewService(repoAdapter, repoAdapter, sender, sink, bank, logger, engineCfg)
	factsEngine := broadcast.NewFacts(repoAdapter, sender, facts, logger, engineCfg)
	boards := leaderboard.NewService(repoAdapter, repoAdapter, sender, logger, leaderboard.Config{
		MinScore: cfg.Leaderboard.MinScore,
		Top:      cfg.Leaderboard.Top,
		Warmup:   time.Duration(cfg.Leaderboard.WarmupHours) * time.Hour,
		Location: loc,
	})
	scoreUC := scores.NewService(repoAdapter, repoAdapter, bank, logger)
	settingsUC := settings.NewService(repoAdapter, logger, loc, bank.Size(), rnd)
	limiter := bot.NewLimiter()
	handler := bot.NewHandler(botAPI, logger, settingsUC, scoreUC, sender, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New(cron.WithLocation(loc))
	schedule := func(spec string, fn func()) {
		if _, err := scheduler.AddFunc(spec, fn); err != nil {
			logger.Fatal().Err(err).Str("spec", spec).Msg("не удалось зарегистрировать задачу")
		}
	}
	schedule("* * * * *", func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("проход рассылки викторин")
		}
	})
	// Факты по своим интервалам длиной в часы, минутная точность не нужна.
	schedule("*/7 * * * *", func() {
		if err := factsEngine.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("проход рассылки фактов")
		}
	})
	// Таблицы публикуются в вечернем окне, вне окна выборка пустая.
	schedule("* 16-23 * * *", func() {
		if err := boards.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("проход таблиц лидеров")
		}
	})
	schedule("1 0 * * *", func() {
		if err := boards.NightlyReset(ctx); err != nil {
			logger.Error().Err(err).Msg("ночной сброс")
		}
		limiter.Reset()
	})
	scheduler.Start()
	defer scheduler.Stop()

	srv := httpinfra.NewServer(logger)
	go func() {
		if err := srv.Start(cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("служебный HTTP сервер остановлен")
		}
	}()

	updates := sender.Updates(ctx, 30)
	go func() {
		for upd := range updates {
			handler.HandleUpdate(ctx, upd)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
