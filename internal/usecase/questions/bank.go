// Package questions загружает неизменяемые банки вопросов и фактов.
package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"tg-quiz-bot/internal/domain"
)

// Лимиты Telegram на опрос-викторину.
const (
	maxQuestionLen    = 300
	maxOptionLen      = 100
	maxExplanationLen = 200
	minOptions        = 2
	maxOptions        = 10
)

// ErrEmptyBank возвращается при загрузке пустого файла вопросов.
var ErrEmptyBank = errors.New("банк вопросов пуст")

// Bank — упорядоченный банк вопросов, циклически индексируемый чатами.
type Bank struct {
	questions []domain.Question
}

// LoadBank читает банк из JSON файла. Вызывается один раз при старте.
func LoadBank(path string) (*Bank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение банка вопросов: %w", err)
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, fmt.Errorf("разбор банка вопросов: %w", err)
	}
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}
	return &Bank{questions: qs}, nil
}

// NewBank собирает банк из готового среза, для тестов.
func NewBank(qs []domain.Question) *Bank {
	return &Bank{questions: qs}
}

// Size — размер банка. Движок фиксирует его в начале прохода и использует
// одно значение для всей арифметики индексов этого прохода.
func (b *Bank) Size() int { return len(b.questions) }

// Get возвращает вопрос по циклическому индексу.
func (b *Bank) Get(index int) domain.Question {
	n := len(b.questions)
	i := index % n
	if i < 0 {
		i += n
	}
	return b.questions[i]
}

// Validate проверяет вопрос перед отправкой. Невалидный вопрос
// пропускается с продвижением курсора — расписание он не блокирует.
func Validate(q domain.Question) error {
	if q.Question == "" {
		return errors.New("пустой текст вопроса")
	}
	if utf8.RuneCountInString(q.Question) > maxQuestionLen {
		return fmt.Errorf("вопрос длиннее %d символов", maxQuestionLen)
	}
	if len(q.Options) < minOptions || len(q.Options) > maxOptions {
		return fmt.Errorf("нужно от %d до %d вариантов, получено %d", minOptions, maxOptions, len(q.Options))
	}
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("вариант %d пуст", i)
		}
		if utf8.RuneCountInString(opt) > maxOptionLen {
			return fmt.Errorf("вариант %d длиннее %d символов", i, maxOptionLen)
		}
	}
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return fmt.Errorf("индекс верного ответа %d вне диапазона", q.Correct)
	}
	if utf8.RuneCountInString(q.Explanation) > maxExplanationLen {
		return fmt.Errorf("пояснение длиннее %d символов", maxExplanationLen)
	}
	return nil
}

// FactBank — банк фактов с общим циклическим курсором.
type FactBank struct {
	mu    sync.Mutex
	facts []string
	index int
}

// LoadFacts читает банк фактов из JSON файла.
func LoadFacts(path string) (*FactBank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение банка фактов: %w", err)
	}
	var facts []string
	if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, fmt.Errorf("разбор банка фактов: %w", err)
	}
	return &FactBank{facts: facts}, nil
}

// NewFactBank собирает банк из среза, для тестов.
func NewFactBank(facts []string) *FactBank {
	return &FactBank{facts: facts}
}

// Next возвращает очередной факт, продвигая общий курсор.
func (f *FactBank) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.facts) == 0 {
		return "", false
	}
	fact := f.facts[f.index]
	f.index = (f.index + 1) % len(f.facts)
	return fact, true
}
