package broadcast

import (
	"time"

	"tg-quiz-bot/internal/domain"
	"tg-quiz-bot/internal/usecase/schedule"
)

// ApplySent учитывает одну отправленную викторину в глобальной
// статистике. Скользящие счётчики обнуляются при пересечении границы
// своего периода в заданном часовом поясе; сравнение с границей делает
// ночной запуск планировщика необязательным.
func ApplySent(stats *domain.QuizStats, now time.Time, loc *time.Location) {
	if stats.UpdatedAt.Before(schedule.StartOfDay(now, loc)) {
		stats.Today = 0
	}
	if stats.UpdatedAt.Before(schedule.StartOfWeek(now, loc)) {
		stats.ThisWeek = 0
	}
	if stats.UpdatedAt.Before(schedule.StartOfMonth(now, loc)) {
		stats.ThisMonth = 0
	}
	stats.Total++
	stats.Today++
	stats.ThisWeek++
	stats.ThisMonth++
	stats.UpdatedAt = now
}
