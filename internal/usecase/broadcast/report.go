package broadcast

import (
	"fmt"
	"strings"
	"time"
)

// report накапливает журнал одной пачки для телеметрии.
type report struct {
	success []string
	failed  []string
	logs    []string
}

func (r *report) logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *report) ok(title string) {
	r.success = append(r.success, title)
	r.logf("викторина отправлена в %q", title)
}

func (r *report) fail(title, reason string) {
	r.failed = append(r.failed, title)
	r.logf("отказ в %q: %s", title, reason)
}

func (r *report) renderLogs() string {
	if len(r.logs) == 0 {
		return "(пусто)"
	}
	return strings.Join(r.logs, "\n")
}

func (r *report) render(runID string, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Пачка рассылки %s в %s\n", runID, at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Успешно: %d, отказов: %d\n\n", len(r.success), len(r.failed))
	b.WriteString(r.renderLogs())
	return b.String()
}

func renderRunSummary(runID string, at time.Time, success, failed []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Итог прохода %s в %s\n", runID, at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Всего отправлено: %d\n", len(success))
	fmt.Fprintf(&b, "Всего отказов: %d\n", len(failed))
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nЧаты с отказами:\n%s", strings.Join(failed, "\n"))
	}
	return b.String()
}
