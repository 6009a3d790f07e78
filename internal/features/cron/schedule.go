package cron_feature

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Parser accepts classic 5 field expressions and 6 field expressions with a
// leading seconds field.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateSchedule checks that expr is a 5 or 6 field cron expression.
func ValidateSchedule(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) < 5 || len(fields) > 6 {
		return fmt.Errorf("schedule must have 5 or 6 fields, got %d", len(fields))
	}
	if strings.HasPrefix(fields[0], "TZ=") || strings.HasPrefix(fields[0], "CRON_TZ=") {
		return fmt.Errorf("schedule must not carry a timezone prefix, use the timezone field")
	}
	if _, err := Parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ScheduleSpec returns the expression understood by the scheduler, with the
// timezone folded in as a CRON_TZ prefix.
func ScheduleSpec(expr, timezone string) string {
	if timezone == "" {
		return expr
	}
	return "CRON_TZ=" + timezone + " " + expr
}

// ParseSchedule parses expr evaluated in timezone.
func ParseSchedule(expr, timezone string) (cron.Schedule, error) {
	if err := ValidateSchedule(expr); err != nil {
		return nil, err
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
		}
	}
	return Parser.Parse(ScheduleSpec(expr, timezone))
}

// NextRun returns the first activation of expr strictly after from.
func NextRun(expr, timezone string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expr, timezone)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from).UTC(), nil
}
