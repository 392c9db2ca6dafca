package domain

import "time"

// QuizState описывает тройное состояние викторин в чате: включены,
// выключены администратором группы или выключены самим ботом после
// потери прав на отправку.
type QuizState string

const (
	QuizOn          QuizState = "enabled"
	QuizOffByUser   QuizState = "disabled"
	QuizOffBySystem QuizState = "system_disabled"
)

// DefaultFrequencyMinutes — интервал рассылки по умолчанию.
const DefaultFrequencyMinutes = 60

// Chat хранит состояние рассылки для одного диалога Telegram.
// Отрицательный ChatID — группа или канал, положительный — личный чат.
type Chat struct {
	ChatID    int64  `bson:"chatId"`
	ChatTitle string `bson:"chatTitle,omitempty"`
	// TopicID — тред супергруппы, 0 означает основной чат.
	TopicID int64 `bson:"topicId,omitempty"`

	QuizState    QuizState `bson:"quizState"`
	CanSend      bool      `bson:"canSend"`
	FactsEnabled bool      `bson:"factsEnabled"`

	QuizIndex            int `bson:"quizIndex"`
	QuizFrequencyMinutes int `bson:"quizFrequencyMinutes"`
	FactFrequencyMinutes int `bson:"factFrequencyMinutes"`

	NextQuizTime *time.Time `bson:"nextQuizTime,omitempty"`
	NextFactTime *time.Time `bson:"nextFactTime,omitempty"`

	LastQuizMessageID int    `bson:"lastQuizMessageId,omitempty"`
	LastQuizPollID    string `bson:"lastQuizPollId,omitempty"`
	// LastQuizQuestion — индекс вопроса, отправленного последним.
	// -1, пока ни один вопрос не отправлен.
	LastQuizQuestion  int `bson:"lastQuizQuestion"`
	LastFactMessageID int `bson:"lastFactMessageId,omitempty"`

	DeleteOldQuizzes   bool `bson:"deleteOldQuizzes"`
	ShowMyScoreInGroup bool `bson:"showMyScoreInGroup"`
	AnonymousQuizzes   bool `bson:"anonymousQuizzes"`
	SendLeaderboard    bool `bson:"sendLeaderboard"`

	LeaderboardHour      *int       `bson:"leaderboardHour,omitempty"`
	LeaderboardMinute    *int       `bson:"leaderboardMinute,omitempty"`
	NextLeaderboardTime  *time.Time `bson:"nextLeaderboardTime,omitempty"`
	LeaderboardSentToday bool       `bson:"leaderboardSentToday"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// QuizDue сообщает, пора ли отправлять викторину в чат.
func (c *Chat) QuizDue(now time.Time) bool {
	return c.QuizState == QuizOn && c.CanSend && c.NextQuizTime != nil && !c.NextQuizTime.After(now)
}

// Frequency возвращает интервал викторин с подстраховкой значения по умолчанию.
func (c *Chat) Frequency() time.Duration {
	minutes := c.QuizFrequencyMinutes
	if minutes <= 0 {
		minutes = DefaultFrequencyMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// FactFrequency возвращает интервал фактов.
func (c *Chat) FactFrequency() time.Duration {
	minutes := c.FactFrequencyMinutes
	if minutes <= 0 {
		minutes = DefaultFrequencyMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Score агрегирует ответы одного пользователя в одном чате.
// Уникален по паре (ChatID, UserID).
type Score struct {
	ChatID    int64  `bson:"chatId"`
	UserID    int64  `bson:"userId"`
	ChatTitle string `bson:"chatTitle,omitempty"`

	// DisplayName — денормализованное имя для таблицы лидеров:
	// "@username" либо имя и фамилия.
	DisplayName string `bson:"displayName,omitempty"`
	FirstName   string `bson:"firstName,omitempty"`
	LastName    string `bson:"lastName,omitempty"`

	TotalAttempted int `bson:"totalAttempted"`
	TotalCorrect   int `bson:"totalCorrect"`
	TodayAttempted int `bson:"todayAttempted"`
	TodayCorrect   int `bson:"todayCorrect"`
	// DayAttempted и DayCorrect — снимок вчерашних счётчиков,
	// заполняется ночным сбросом.
	DayAttempted int `bson:"dayAttempted"`
	DayCorrect   int `bson:"dayCorrect"`

	CreatedAt time.Time `bson:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty"`
}

// DisplayName собирает имя для таблицы лидеров: "@username", иначе имя
// и фамилия, иначе "Anonymous". Экранирование HTML происходит при
// рендеринге, не при записи.
func DisplayName(username, firstName, lastName string) string {
	if username != "" {
		return "@" + username
	}
	name := firstName
	if lastName != "" {
		if name != "" {
			name += " "
		}
		name += lastName
	}
	if name == "" {
		return "Anonymous"
	}
	return name
}

// AnswerEvent — один ответ пользователя на опрос-викторину.
type AnswerEvent struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	ChatTitle string
	Correct   bool
}

// QuizStats — единственный документ со сводкой отправленных викторин.
// Счётчики периодов сбрасываются при пересечении границ суток, недели
// и месяца в фиксированном часовом поясе.
type QuizStats struct {
	UpdatedAt time.Time `bson:"date"`
	Total     int       `bson:"total"`
	Today     int       `bson:"today"`
	ThisWeek  int       `bson:"thisWeek"`
	ThisMonth int       `bson:"thisMonth"`
}

// Question — элемент банка вопросов. Банк неизменяем после загрузки.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation"`
}

// SentQuiz — идентификаторы успешно отправленного опроса.
type SentQuiz struct {
	PollID    string
	MessageID int
}

// PollAnswer — входящий ответ на опрос, привязанный к чату через PollID.
type PollAnswer struct {
	PollID    string
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	OptionIDs []int
}
