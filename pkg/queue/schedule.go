package queue

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a recurring task type produces its next instance.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// dailySchedule runs once per day at specified time
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// cronSchedule runs per a standard five-field cron expression.
type cronSchedule struct {
	expr string
	spec cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.spec.Next(from)
}

func (s cronSchedule) String() string {
	return fmt.Sprintf("cron %q", s.expr)
}

// Every creates a schedule that runs at fixed intervals. This is the plain
// recurrence-interval registration most task types use.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Second
	}
	return intervalSchedule{every: d}
}

// DailyAt creates a schedule that runs daily at the specified time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// Cron creates a schedule from a standard cron expression ("*/5 * * * *").
func Cron(expr string) (Schedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return cronSchedule{expr: expr, spec: spec}, nil
}

// MustCron is like Cron but panics on an invalid expression. Intended for
// static registrations at process startup.
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}
