// Package domain contains the scheduling rules shared by the dispatch store and the cron scheduler.
package domain

import (
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// scheduleParser accepts standard 5-field expressions (minute resolution) and
// descriptors such as @hourly or @every 10m.
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// parsed schedules are reused across ticks; expressions rarely change.
var scheduleCache sync.Map // map[string]cronlib.Schedule

// ParseSchedule parses a cron expression, returning a Scheduling error when malformed.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if cached, ok := scheduleCache.Load(expr); ok {
		return cached.(cronlib.Schedule), nil
	}
	if expr == "" {
		return nil, apperrors.Scheduling(nil, expr)
	}
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, apperrors.Scheduling(err, expr)
	}
	scheduleCache.Store(expr, sched)
	return sched, nil
}

// ValidateSchedule reports whether expr is an acceptable deployment schedule.
func ValidateSchedule(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// ShouldFire decides whether a recurring deployment is due.
//
// A deployment that has never been scheduled fires immediately. Otherwise it fires
// once now reaches the next occurrence after lastScheduledAt. Because enqueue stamps
// lastScheduledAt with the enqueue time rather than the occurrence, missed
// occurrences after downtime collapse into a single firing.
func ShouldFire(expr string, lastScheduledAt *time.Time, now time.Time) (bool, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return false, err
	}
	if lastScheduledAt == nil {
		return true, nil
	}
	next := sched.Next(lastScheduledAt.UTC())
	return !now.UTC().Before(next), nil
}
