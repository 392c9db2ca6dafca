// Package schedule содержит чистые функции расписания: вычисление
// следующей викторины, времени таблицы лидеров и границ периодов
// в фиксированном часовом поясе. Все результаты — абсолютные моменты
// (UTC-эквивалент), локальное время никогда не сохраняется строкой.
package schedule

import (
	"math/rand"
	"time"
)

// Окно случайного времени таблицы лидеров: 16:00–19:59 по местному времени.
const (
	randomWindowStartHour = 16
	randomWindowHours     = 4
)

// NextQuizTime — следующий запуск викторины через freq от now.
func NextQuizTime(now time.Time, freq time.Duration) time.Time {
	return now.Add(freq)
}

// LeaderboardTimeAt возвращает ближайшее наступление локального времени
// hour:minute в loc: сегодня, а если оно уже прошло — завтра.
func LeaderboardTimeAt(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if at.Before(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC()
}

// RandomLeaderboardSlot выбирает случайную минуту в вечернем окне.
func RandomLeaderboardSlot(r *rand.Rand) (hour, minute int) {
	return randomWindowStartHour + r.Intn(randomWindowHours), r.Intn(60)
}

// NextLeaderboardTime — время таблицы лидеров для чата: фиксированное,
// если админ его задал, иначе случайное в вечернем окне. В обоих случаях
// уже прошедшее сегодня время переносится на завтра.
func NextLeaderboardTime(now time.Time, loc *time.Location, hour, minute *int, r *rand.Rand) time.Time {
	if hour != nil && minute != nil {
		return LeaderboardTimeAt(now, loc, *hour, *minute)
	}
	h, m := RandomLeaderboardSlot(r)
	return LeaderboardTimeAt(now, loc, h, m)
}

// StartOfDay — местная полночь текущих суток.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek — полночь понедельника текущей недели.
func StartOfWeek(now time.Time, loc *time.Location) time.Time {
	day := StartOfDay(now, loc)
	weekday := int(day.Weekday())
	// time.Weekday: воскресенье = 0, понедельник = 1.
	offset := (weekday + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth — полночь первого числа текущего месяца.
func StartOfMonth(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}
