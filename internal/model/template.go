package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type templateTask struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Minutes     int      `yaml:"minutes"`
	OffloadDays []string `yaml:"offloadDays"`
}

// DefaultSchedule is the template a user starts with. It carries no Meta, so any
// stamped schedule from another device beats it.
func DefaultSchedule() Schedule {
	week := Week{
		Monday: {
			{ID: "default-mon-math", Title: "Математика", Minutes: 40},
			{ID: "default-mon-read", Title: "Чтение", Minutes: 20},
		},
		Tuesday: {
			{ID: "default-tue-english", Title: "Английский", Minutes: 30},
		},
		Wednesday: {
			{ID: "default-wed-math", Title: "Математика", Minutes: 40},
			{ID: "default-wed-physics", Title: "Физика", Minutes: 30},
		},
		Thursday: {
			{ID: "default-thu-history", Title: "История", Minutes: 30},
		},
		Friday: {
			{ID: "default-fri-review", Title: "Повторение за неделю", Minutes: 30},
		},
	}
	for day, tasks := range week {
		for i := range tasks {
			tasks[i].OffloadDays = []string{}
		}
		week[day] = tasks
	}
	return Schedule{Week: week}.Clone()
}

// ParseTemplate reads a weekday -> tasks YAML document.
func ParseTemplate(data []byte) (Schedule, error) {
	var raw map[string][]templateTask
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Schedule{}, fmt.Errorf("parse template: %w", err)
	}

	week := make(Week, len(raw))
	for key, tasks := range raw {
		day, err := NormalizeWeekday(key)
		if err != nil {
			return Schedule{}, err
		}
		for i, t := range tasks {
			in := TaskInput{ID: t.ID, Title: t.Title, Minutes: t.Minutes, OffloadDays: t.OffloadDays}
			if err := in.Validate(); err != nil {
				return Schedule{}, fmt.Errorf("template %s[%d]: %w", day, i, err)
			}
			if in.ID == "" {
				in.ID = fmt.Sprintf("template-%s-%d", day, i)
			}
			offload := append([]string{}, in.OffloadDays...)
			week[day] = append(week[day], Task{ID: in.ID, Title: in.Title, Minutes: in.Minutes, OffloadDays: offload})
		}
	}
	return Schedule{Week: week}.Clone(), nil
}

// LoadTemplate reads path, or returns DefaultSchedule when path is empty.
func LoadTemplate(path string) (Schedule, error) {
	if path == "" {
		return DefaultSchedule(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(data)
}
