package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"tg-quiz-bot/internal/domain"
)

var (
	QuizzesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizzes_sent_total",
		Help: "Успешно отправленные викторины",
	})
	QuizSendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_send_failures_total",
		Help: "Неудачные отправки викторин по видам отказа",
	}, []string{"kind"})
	FactsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facts_sent_total",
		Help: "Успешно отправленные факты",
	})
	BroadcastRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broadcast_run_seconds",
		Help:    "Длительность одного прохода рассылки",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
	BroadcastRunsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_runs_skipped_total",
		Help: "Проходы, пропущенные из-за ещё идущего предыдущего",
	})
	LeaderboardsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leaderboards_sent_total",
		Help: "Отправленные таблицы лидеров",
	})
	AnswersRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "answers_recorded_total",
		Help: "Записанные ответы на опросы",
	}, []string{"correct"})
	EventSinkErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_sink_errors_total",
		Help: "Ошибки записи телеметрии в лог-группу",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		QuizzesSent,
		QuizSendFailures,
		FactsSent,
		BroadcastRunSeconds,
		BroadcastRunsSkipped,
		LeaderboardsSent,
		AnswersRecorded,
		EventSinkErrors,
	)
}

// IncSendFailure учитывает отказ по его виду.
func IncSendFailure(kind domain.FailureKind) {
	QuizSendFailures.WithLabelValues(kind.String()).Inc()
}
