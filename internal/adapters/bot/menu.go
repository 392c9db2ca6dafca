package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-quiz-bot/internal/domain"
)

func settingsText(chat *domain.Chat) string {
	lines := []string{
		"⚙️ <b>Quiz settings</b>",
		"",
		fmt.Sprintf("Quizzes: %s", onOff(chat.QuizState == domain.QuizOn)),
		fmt.Sprintf("Interval: every %s", formatInterval(int(chat.Frequency().Minutes()))),
		fmt.Sprintf("Delete old quizzes: %s", onOff(chat.DeleteOldQuizzes)),
		fmt.Sprintf("Show scores in group: %s", onOff(chat.ShowMyScoreInGroup)),
		fmt.Sprintf("Anonymous quizzes: %s", onOff(chat.AnonymousQuizzes)),
		fmt.Sprintf("Daily leaderboard: %s", onOff(chat.SendLeaderboard)),
	}
	if chat.FactsEnabled {
		lines = append(lines, fmt.Sprintf("Fun facts: every %s", formatInterval(int(chat.FactFrequency().Minutes()))))
	}
	if chat.SendLeaderboard && chat.LeaderboardHour != nil && chat.LeaderboardMinute != nil {
		lines = append(lines, fmt.Sprintf("Leaderboard time: %02d:%02d", *chat.LeaderboardHour, *chat.LeaderboardMinute))
	}
	return strings.Join(lines, "\n")
}

func onOff(v bool) string {
	if v {
		return "✅ on"
	}
	return "🚫 off"
}

func settingsKeyboard(chat *domain.Chat) tgbotapi.InlineKeyboardMarkup {
	quizToggle := tgbotapi.NewInlineKeyboardButtonData("▶️ Start quizzes", "quiz:on")
	if chat.QuizState == domain.QuizOn {
		quizToggle = tgbotapi.NewInlineKeyboardButtonData("⏸ Stop quizzes", "quiz:off")
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏱ Interval", "intervals"),
			tgbotapi.NewInlineKeyboardButtonData("🕐 Leaderboard time", "lbtimes"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💡 Fact interval", "factints"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧹 Delete old quizzes", "toggle:deleteold"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Scores in group", "toggle:showscore"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🕵️ Anonymous quizzes", "toggle:anonymous"),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Daily leaderboard", "toggle:leaderboard"),
		),
		tgbotapi.NewInlineKeyboardRow(quizToggle),
	)
}

func intervalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1 hour", "interval:60"),
			tgbotapi.NewInlineKeyboardButtonData("1.5 hours", "interval:90"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("2 hours", "interval:120"),
			tgbotapi.NewInlineKeyboardButtonData("3 hours", "interval:180"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("6 hours", "interval:360"),
			tgbotapi.NewInlineKeyboardButtonData("12 hours", "interval:720"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings"),
		),
	)
}

func leaderboardTimeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("16:00", "lbtime:16:00"),
			tgbotapi.NewInlineKeyboardButtonData("17:00", "lbtime:17:00"),
			tgbotapi.NewInlineKeyboardButtonData("18:00", "lbtime:18:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("19:00", "lbtime:19:00"),
			tgbotapi.NewInlineKeyboardButtonData("20:00", "lbtime:20:00"),
			tgbotapi.NewInlineKeyboardButtonData("21:00", "lbtime:21:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings"),
		),
	)
}

func factIntervalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1 hour", "factint:60"),
			tgbotapi.NewInlineKeyboardButtonData("3 hours", "factint:180"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("6 hours", "factint:360"),
			tgbotapi.NewInlineKeyboardButtonData("12 hours", "factint:720"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings"),
		),
	)
}

func welcomeMessage(isGroup bool) string {
	lines := []string{"👋 Welcome to the quiz bot!", ""}
	if isGroup {
		lines = append(lines,
			"The first quiz arrives in about 5 minutes, then they keep coming on a schedule.",
			"",
		)
	} else {
		lines = append(lines,
			"Quizzes run in groups. Add me to a group and send /startquiz there; here you can check your scores.",
			"",
		)
	}
	lines = append(lines,
		"Commands:",
		"• /settings — intervals, leaderboard and other options",
		"• /myscore — your personal score",
		"• /stopquiz — pause quizzes (scores are kept)",
		"• /help — full command list",
	)
	if isGroup {
		lines = append(lines, "", "A daily leaderboard of the top quizzers will be posted every evening. 🏆")
	}
	return strings.Join(lines, "\n")
}

func helpMessage() string {
	return strings.Join([]string{
		"📖 <b>Commands</b>",
		"",
		"• /start — register this chat and start quizzes",
		"• /startquiz — resume quizzes after a pause",
		"• /stopquiz — pause quizzes, scores are kept",
		"• /settings — quiz interval, leaderboard time, toggles (group admins only)",
		"• /myscore — your personal score in this chat",
		"",
		"Answer the quiz polls to earn points. The daily top is posted as a leaderboard every evening.",
	}, "\n")
}
