// Package bot обслуживает входящие апдейты: команды, кнопки настроек и
// ответы на опросы.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-quiz-bot/internal/adapters/telegram"
	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/usecase/scores"
	"tg-quiz-bot/internal/usecase/settings"
)

// anonymousAdminName — служебный аккаунт, от имени которого пишут
// анонимные администраторы групп.
const anonymousAdminName = "GroupAnonymousBot"

type botClient interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Handler обрабатывает апдейты Telegram.
type Handler struct {
	bot        botClient
	log        zerolog.Logger
	settingsUC *settings.Service
	scoresUC   *scores.Service
	admins     domain.AdminLister
	limiter    *Limiter
}

// NewHandler создаёт обработчик.
func NewHandler(bot botClient, log zerolog.Logger, settingsUC *settings.Service, scoresUC *scores.Service, admins domain.AdminLister, limiter *Limiter) *Handler {
	return &Handler{
		bot:        bot,
		log:        log,
		settingsUC: settingsUC,
		scoresUC:   scoresUC,
		admins:     admins,
		limiter:    limiter,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.PollAnswer != nil:
		h.handlePollAnswer(ctx, upd.PollAnswer)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message, upd.ThreadID)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.MyChatMember != nil:
		h.handleMemberUpdate(ctx, upd.MyChatMember)
	}
}

func (h *Handler) handlePollAnswer(ctx context.Context, ans *tgbotapi.PollAnswer) {
	event := &domain.PollAnswer{
		PollID:    ans.PollID,
		UserID:    ans.User.ID,
		Username:  ans.User.UserName,
		FirstName: ans.User.FirstName,
		LastName:  ans.User.LastName,
		OptionIDs: ans.OptionIDs,
	}
	if err := h.scoresUC.HandlePollAnswer(ctx, event); err != nil {
		h.log.Error().Err(err).Str("poll", ans.PollID).Msg("bot: учёт ответа на опрос")
	}
}

// handleMemberUpdate реагирует на изменение членства самого бота:
// при добавлении в группу регистрирует её и здоровается, при
// исключении гасит рассылку сразу, не дожидаясь отказа следующей
// отправки.
func (h *Handler) handleMemberUpdate(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	switch upd.NewChatMember.Status {
	case "kicked", "left":
		if err := h.settingsUC.DisableQuizzes(ctx, upd.Chat.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.log.Error().Err(err).Int64("chat", upd.Chat.ID).Msg("bot: отключение после исключения")
		}
	case "member", "administrator":
		if !upd.Chat.IsGroup() && !upd.Chat.IsSuperGroup() {
			return
		}
		// Интересен только сам момент добавления, не смена прав.
		if old := upd.OldChatMember.Status; old != "left" && old != "kicked" {
			return
		}
		created, err := h.settingsUC.Register(ctx, upd.Chat.ID, 0, upd.Chat.Title, true)
		if err != nil {
			h.log.Error().Err(err).Int64("chat", upd.Chat.ID).Msg("bot: регистрация после добавления")
			return
		}
		if created {
			h.reply(upd.Chat.ID, 0, welcomeMessage(true), nil)
		}
	}
}

func (h *Handler) botIsAdmin(ctx context.Context, chatID int64) bool {
	ok, err := h.admins.IsBotAdmin(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: проверка собственных прав")
		return false
	}
	return ok
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message, threadID int) {
	if msg.From == nil {
		return
	}
	// Боты команд не отдают, кроме аккаунта анонимных админов.
	if msg.From.IsBot && msg.From.UserName != anonymousAdminName {
		return
	}
	if !msg.IsCommand() {
		return
	}
	if !h.limiter.Allow(msg.Chat.ID, msg.From.ID) {
		return
	}

	switch msg.Command() {
	case "start", "startquiz":
		h.handleStart(ctx, msg, threadID)
	case "stopquiz":
		if !h.requireAdmin(ctx, msg) {
			return
		}
		if err := h.settingsUC.DisableQuizzes(ctx, msg.Chat.ID); err != nil {
			h.replyError(msg.Chat.ID, threadID, err)
			return
		}
		h.reply(msg.Chat.ID, threadID, "Quizzes stopped. Your scores are kept. Send /startquiz to resume.", nil)
	case "settings":
		if !h.requireAdmin(ctx, msg) {
			return
		}
		h.sendSettingsMenu(ctx, msg.Chat.ID, threadID)
	case "myscore":
		h.handleMyScore(ctx, msg, threadID)
	case "help":
		h.reply(msg.Chat.ID, threadID, helpMessage(), nil)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message, threadID int) {
	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	if isGroup && !h.requireAdmin(ctx, msg) {
		return
	}
	// Без админских прав бот не может чистить старые викторины и
	// видеть служебные события, викторины не включаем.
	if isGroup && !h.botIsAdmin(ctx, msg.Chat.ID) {
		h.reply(msg.Chat.ID, threadID, "I need admin rights in this group to run quizzes. Promote me to admin and send /startquiz again.", nil)
		return
	}
	title := msg.Chat.Title
	if title == "" {
		title = domain.DisplayName(msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	}
	created, err := h.settingsUC.Register(ctx, msg.Chat.ID, int64(threadID), title, isGroup)
	if err != nil {
		h.replyError(msg.Chat.ID, threadID, err)
		return
	}
	if created {
		h.reply(msg.Chat.ID, threadID, welcomeMessage(isGroup), nil)
		return
	}
	if isGroup {
		h.reply(msg.Chat.ID, threadID, "Quizzes are on! The next one is coming in a few minutes. Use /settings to tweak things.", nil)
		return
	}
	h.reply(msg.Chat.ID, threadID, "You're all set. Use /myscore to check your scores in any chat we share.", nil)
}

func (h *Handler) handleMyScore(ctx context.Context, msg *tgbotapi.Message, threadID int) {
	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	if isGroup {
		chat, err := h.settingsUC.Get(ctx, msg.Chat.ID)
		if err == nil && !chat.ShowMyScoreInGroup {
			h.reply(msg.Chat.ID, threadID, "Score display is off in this group. Message me privately to see your score.", nil)
			return
		}
	}
	text, err := h.scoresUC.MyScore(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		h.replyError(msg.Chat.ID, threadID, err)
		return
	}
	name := domain.DisplayName(msg.From.UserName, msg.From.FirstName, msg.From.LastName)
	if isGroup {
		text = fmt.Sprintf("%s\n\n%s", htmlEscape(name), text)
	}
	h.reply(msg.Chat.ID, threadID, text, nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if !h.limiter.Allow(chatID, cb.From.ID) {
		h.answerCallback(cb.ID, "")
		return
	}
	if (cb.Message.Chat.IsGroup() || cb.Message.Chat.IsSuperGroup()) && !h.isAdminUser(ctx, chatID, cb.From) {
		h.answerCallback(cb.ID, "Only group admins can change settings")
		return
	}

	data := cb.Data
	notice := ""
	switch {
	case data == "settings":
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "intervals":
		markup := intervalKeyboard()
		h.reply(chatID, 0, "How often should quizzes go out?", &markup)
	case data == "lbtimes":
		markup := leaderboardTimeKeyboard()
		h.reply(chatID, 0, "When should the daily leaderboard be posted?", &markup)
	case data == "factints":
		markup := factIntervalKeyboard()
		h.reply(chatID, 0, "How often should fun facts go out?", &markup)
	case strings.HasPrefix(data, "factint:"):
		minutes, _ := strconv.Atoi(strings.TrimPrefix(data, "factint:"))
		if err := h.settingsUC.SetFactInterval(ctx, chatID, minutes); err != nil {
			notice = "Failed to save the interval"
			break
		}
		notice = fmt.Sprintf("Facts every %s", formatInterval(minutes))
		h.sendSettingsMenu(ctx, chatID, 0)
	case strings.HasPrefix(data, "interval:"):
		minutes, _ := strconv.Atoi(strings.TrimPrefix(data, "interval:"))
		if err := h.settingsUC.SetQuizInterval(ctx, chatID, minutes); err != nil {
			notice = "Failed to save the interval"
			break
		}
		notice = fmt.Sprintf("Quizzes every %s", formatInterval(minutes))
		h.sendSettingsMenu(ctx, chatID, 0)
	case strings.HasPrefix(data, "lbtime:"):
		hour, minute, ok := parseClock(strings.TrimPrefix(data, "lbtime:"))
		if !ok {
			notice = "Unrecognized time"
			break
		}
		if err := h.settingsUC.SetLeaderboardTime(ctx, chatID, hour, minute); err != nil {
			notice = "Failed to save the time"
			break
		}
		notice = fmt.Sprintf("Leaderboard at %02d:%02d", hour, minute)
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "toggle:deleteold":
		on, err := h.settingsUC.ToggleDeleteOld(ctx, chatID)
		notice = toggleNotice("Deleting old quizzes", on, err)
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "toggle:showscore":
		on, err := h.settingsUC.ToggleShowMyScore(ctx, chatID)
		notice = toggleNotice("Score display in group", on, err)
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "toggle:anonymous":
		on, err := h.settingsUC.ToggleAnonymous(ctx, chatID)
		notice = toggleNotice("Anonymous quizzes", on, err)
		if err == nil && on {
			notice += ". Leaderboard and score display turned off"
		}
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "toggle:leaderboard":
		on, err := h.settingsUC.ToggleLeaderboard(ctx, chatID)
		notice = toggleNotice("Daily leaderboard", on, err)
		if err == nil && on {
			notice += ". Anonymous quizzes turned off"
		}
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "quiz:on":
		if err := h.settingsUC.EnableQuizzes(ctx, chatID); err != nil {
			notice = "Failed to start quizzes"
			break
		}
		notice = "Quizzes resumed"
		h.sendSettingsMenu(ctx, chatID, 0)
	case data == "quiz:off":
		if err := h.settingsUC.DisableQuizzes(ctx, chatID); err != nil {
			notice = "Failed to stop quizzes"
			break
		}
		notice = "Quizzes stopped"
		h.sendSettingsMenu(ctx, chatID, 0)
	}
	h.answerCallback(cb.ID, notice)
}

func (h *Handler) sendSettingsMenu(ctx context.Context, chatID int64, threadID int) {
	chat, err := h.settingsUC.Get(ctx, chatID)
	if err != nil {
		h.reply(chatID, threadID, "This chat is not registered yet. Send /start first.", nil)
		return
	}
	markup := settingsKeyboard(chat)
	h.reply(chatID, threadID, settingsText(chat), &markup)
}

func (h *Handler) requireAdmin(ctx context.Context, msg *tgbotapi.Message) bool {
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return true
	}
	// Сообщение от имени самой группы — анонимный администратор.
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		return true
	}
	return h.isAdminUser(ctx, msg.Chat.ID, msg.From)
}

func (h *Handler) isAdminUser(ctx context.Context, chatID int64, user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	if user.UserName == anonymousAdminName {
		return true
	}
	ok, err := h.admins.IsUserAdmin(ctx, chatID, user.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Int64("user", user.ID).Msg("bot: проверка прав администратора")
		return false
	}
	return ok
}

func (h *Handler) answerCallback(id, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		h.log.Error().Err(err).Msg("bot: ответ на callback")
	}
}

func (h *Handler) replyError(chatID int64, threadID int, err error) {
	h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: ошибка обработки команды")
	h.reply(chatID, threadID, "Something went wrong, please try again later.", nil)
}

// reply отправляет HTML-ответ, при необходимости в тред и с клавиатурой.
// Запрос собирается вручную, потому что конфиги tgbotapi не умеют
// message_thread_id.
func (h *Handler) reply(chatID int64, threadID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	for i, part := range telegram.SplitMessage(text) {
		params := tgbotapi.Params{}
		params.AddNonZero64("chat_id", chatID)
		params["text"] = part
		params["parse_mode"] = tgbotapi.ModeHTML
		params.AddNonZero("message_thread_id", threadID)
		if i == 0 && keyboard != nil {
			encoded, err := json.Marshal(keyboard)
			if err == nil {
				params["reply_markup"] = string(encoded)
			}
		}
		if _, err := h.bot.MakeRequest("sendMessage", params); err != nil {
			h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: отправка ответа")
			return
		}
	}
}

func toggleNotice(what string, on bool, err error) string {
	if err != nil {
		return "Failed to save the setting"
	}
	if on {
		return what + ": on"
	}
	return what + ": off"
}

func parseClock(value string) (int, int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func formatInterval(minutes int) string {
	if minutes%60 == 0 {
		hours := minutes / 60
		if hours == 1 {
			return "hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
