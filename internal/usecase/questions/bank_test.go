package questions

import (
	"strings"
	"testing"

	"tg-quiz-bot/internal/domain"
)

func validQuestion() domain.Question {
	return domain.Question{
		Question:    "Сколько будет дважды два?",
		Options:     []string{"три", "четыре"},
		Correct:     1,
		Explanation: "арифметика",
	}
}

func TestValidateAcceptsGoodQuestion(t *testing.T) {
	if err := Validate(validQuestion()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Question)
	}{
		{"пустой вопрос", func(q *domain.Question) { q.Question = "" }},
		{"длинный вопрос", func(q *domain.Question) { q.Question = strings.Repeat("х", 301) }},
		{"один вариант", func(q *domain.Question) { q.Options = []string{"один"} }},
		{"одиннадцать вариантов", func(q *domain.Question) {
			q.Options = make([]string, 11)
			for i := range q.Options {
				q.Options[i] = "вариант"
			}
		}},
		{"пустой вариант", func(q *domain.Question) { q.Options = []string{"", "два"} }},
		{"длинный вариант", func(q *domain.Question) { q.Options = []string{strings.Repeat("х", 101), "два"} }},
		{"индекс за границей", func(q *domain.Question) { q.Correct = 2 }},
		{"отрицательный индекс", func(q *domain.Question) { q.Correct = -1 }},
		{"длинное пояснение", func(q *domain.Question) { q.Explanation = strings.Repeat("х", 201) }},
	}
	for _, tc := range cases {
		q := validQuestion()
		tc.mutate(&q)
		if err := Validate(q); err == nil {
			t.Fatalf("%s: ожидали ошибку", tc.name)
		}
	}
}

func TestValidateCountsRunesNotBytes(t *testing.T) {
	q := validQuestion()
	// 300 кириллических рун — это 600 байт, но вопрос валиден.
	q.Question = strings.Repeat("ж", 300)
	if err := Validate(q); err != nil {
		t.Fatalf("лимиты считаются в рунах: %v", err)
	}
}

func TestBankGetIsCyclic(t *testing.T) {
	qs := []domain.Question{
		{Question: "ноль", Options: []string{"а", "б"}},
		{Question: "один", Options: []string{"а", "б"}},
		{Question: "два", Options: []string{"а", "б"}},
	}
	bank := NewBank(qs)

	if got := bank.Get(4).Question; got != "один" {
		t.Fatalf("индекс 4 в банке из 3 должен дать вопрос 1, получили %q", got)
	}
	if got := bank.Get(-1).Question; got != "два" {
		t.Fatalf("отрицательный индекс заворачивается с конца, получили %q", got)
	}
}

func TestFactBankCycles(t *testing.T) {
	bank := NewFactBank([]string{"раз", "два"})
	order := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		fact, ok := bank.Next()
		if !ok {
			t.Fatalf("банк не пуст, ожидали факт")
		}
		order = append(order, fact)
	}
	want := []string{"раз", "два", "раз", "два"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ожидали порядок %v, получили %v", want, order)
		}
	}
}

func TestFactBankEmpty(t *testing.T) {
	bank := NewFactBank(nil)
	if _, ok := bank.Next(); ok {
		t.Fatalf("пустой банк не должен отдавать факты")
	}
}
