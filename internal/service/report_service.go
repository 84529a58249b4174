package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"weekplan/internal/model"
)

// ReportService builds human-readable summaries for daily notifications.
type ReportService struct {
	planner *PlannerService
}

func NewReportService(planner *PlannerService) *ReportService {
	return &ReportService{planner: planner}
}

// DailySummary describes the plan of the day that contains now.
func (s *ReportService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	dateKey := model.DateKey(now)
	day, _, err := s.planner.Day(ctx, dateKey)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(FormatDay(day, now))
	return strings.TrimSpace(builder.String()), nil
}

// FormatDay renders a day plan as Telegram HTML.
func FormatDay(day model.DayOverride, date time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 %s, %s\n\n", weekdayTitles[model.WeekdayOf(date)], date.Format("02.01.2006")))

	if len(day.Tasks) == 0 {
		sb.WriteString("— на этот день задач нет\n")
		return sb.String()
	}
	for i, task := range day.Tasks {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, FormatTask(task)))
	}

	total, percent := day.Progress()
	sb.WriteString(fmt.Sprintf("\n⏱ Всего: %d мин · выполнено %d%%\n", total, percent))
	return sb.String()
}

// FormatTask renders one line: icon, title, minutes and progress.
func FormatTask(task model.Task) string {
	icon := "⬜"
	switch {
	case task.DonePercent >= 100:
		icon = "✅"
	case task.DonePercent > 0:
		icon = "🟡"
	}

	line := fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title)))
	if task.Minutes > 0 {
		line += fmt.Sprintf(" · %d мин", task.Minutes)
	}
	if task.DonePercent > 0 && task.DonePercent < 100 {
		line += fmt.Sprintf(" · %d%%", task.DonePercent)
	}
	return line
}

var weekdayTitles = map[string]string{
	model.Monday:    "Понедельник",
	model.Tuesday:   "Вторник",
	model.Wednesday: "Среда",
	model.Thursday:  "Четверг",
	model.Friday:    "Пятница",
	model.Saturday:  "Суббота",
	model.Sunday:    "Воскресенье",
}

// WeekdayTitle returns the Russian name of a weekday key.
func WeekdayTitle(weekday string) string {
	if t, ok := weekdayTitles[weekday]; ok {
		return t
	}
	return weekday
}
