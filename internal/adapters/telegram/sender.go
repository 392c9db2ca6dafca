// Package telegram реализует транспорт поверх Bot API: отправку
// опросов-викторин, сообщений и проверку админских прав.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/domain"
)

// Sender оборачивает tgbotapi.BotAPI. Все ошибки отправки возвращаются
// уже классифицированными (*domain.SendFailure).
type Sender struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.QuizSender = (*Sender)(nil)
var _ domain.AdminLister = (*Sender)(nil)

// NewSender создаёт транспорт.
func NewSender(bot *tgbotapi.BotAPI, logger zerolog.Logger) *Sender {
	return &Sender{bot: bot, log: logger}
}

// SendQuiz отправляет опрос типа quiz. Запрос собирается вручную, потому
// что конфиги tgbotapi не умеют message_thread_id для тредов супергрупп.
func (s *Sender) SendQuiz(ctx context.Context, chatID, topicID int64, q domain.Question, anonymous bool) (domain.SentQuiz, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return domain.SentQuiz{}, fmt.Errorf("сериализация вариантов: %w", err)
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["question"] = q.Question
	params["options"] = string(options)
	params["type"] = "quiz"
	params["correct_option_id"] = strconv.Itoa(q.Correct)
	params["is_anonymous"] = strconv.FormatBool(anonymous)
	params.AddNonEmpty("explanation", q.Explanation)
	params.AddNonZero64("message_thread_id", topicID)

	resp, err := s.bot.MakeRequest("sendPoll", params)
	if err != nil {
		return domain.SentQuiz{}, classify(err)
	}

	var msg tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return domain.SentQuiz{}, fmt.Errorf("разбор ответа sendPoll: %w", err)
	}
	sent := domain.SentQuiz{MessageID: msg.MessageID}
	if msg.Poll != nil {
		sent.PollID = msg.Poll.ID
	}
	return sent, nil
}

// SendHTML отправляет HTML-сообщение, при необходимости в тред.
func (s *Sender) SendHTML(ctx context.Context, chatID, topicID int64, text string) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	params["disable_web_page_preview"] = "true"
	params.AddNonZero64("message_thread_id", topicID)

	resp, err := s.bot.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, classify(err)
	}
	var msg tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("разбор ответа sendMessage: %w", err)
	}
	return msg.MessageID, nil
}

// DeleteMessage удаляет сообщение.
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := s.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Sender) admins(chatID int64) ([]tgbotapi.ChatMember, error) {
	members, err := s.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, classify(err)
	}
	return members, nil
}

// IsBotAdmin проверяет, является ли сам бот администратором чата.
func (s *Sender) IsBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	members, err := s.admins(chatID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.User != nil && m.User.ID == s.bot.Self.ID {
			return true, nil
		}
	}
	return false, nil
}

// IsUserAdmin проверяет, администратор ли пользователь в чате.
func (s *Sender) IsUserAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	members, err := s.admins(chatID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.User != nil && m.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}
