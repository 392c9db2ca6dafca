package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Kolkata"`
	// MetricsAddr — адрес служебного HTTP сервера (/metrics, /healthz).
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
		// EventToken — токен второго бота, пишущего телеметрию в лог-группу.
		EventToken   string `envconfig:"TG_EVENT_BOT_TOKEN"`
		EventGroupID int64  `envconfig:"EVENT_RECORD_GROUP_ID"`
		EventTopicID int    `envconfig:"EVENT_RECORD_GROUP_TOPIC_ID"`
		ErrorGroupID int64  `envconfig:"EVENT_RECORD_SPECIAL_ERROR_GROUP_ID"`
	} `envconfig:""`

	MongoURI    string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDBName string `envconfig:"MONGO_DB_NAME" default:"quizbot"`

	Quiz struct {
		QuestionsFile string `envconfig:"QUIZ_QUESTIONS_FILE" default:"data/quizQuestions.json"`
		FactsFile     string `envconfig:"QUIZ_FACTS_FILE" default:"data/facts.json"`
		BatchSize     int    `envconfig:"QUIZ_BATCH_SIZE" default:"100"`
		SendDelayMS   int    `envconfig:"QUIZ_SEND_DELAY_MS" default:"3000"`
	} `envconfig:""`

	Leaderboard struct {
		MinScore    int `envconfig:"LEADERBOARD_MIN_SCORE" default:"3"`
		Top         int `envconfig:"LEADERBOARD_TOP" default:"10"`
		WarmupHours int `envconfig:"LEADERBOARD_WARMUP_HOURS" default:"8"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
