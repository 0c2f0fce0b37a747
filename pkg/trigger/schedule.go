package trigger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/robfig/cron/v3"
)

var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec translates a schedule trigger into a standard 5-field cron
// expression (minute hour day month weekday).
func CronSpec(t models.ScheduleTrigger) (string, error) {
	if t.Frequency == models.FrequencyCron {
		if strings.TrimSpace(t.Cron) == "" {
			return "", fmt.Errorf("%w: cron frequency without expression", ErrInvalidSchedule)
		}

		return strings.TrimSpace(t.Cron), nil
	}

	if t.Frequency == models.FrequencyEveryMinute {
		return "* * * * *", nil
	}

	hour, minute, err := parseClock(t.Time)
	if err != nil {
		return "", err
	}

	switch t.Frequency {
	case models.FrequencyHourly:
		return fmt.Sprintf("%d * * * *", minute), nil
	case models.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case models.FrequencyWeekly:
		if t.DayOfWeek < 0 || t.DayOfWeek > 7 {
			return "", fmt.Errorf("%w: day_of_week %d", ErrInvalidSchedule, t.DayOfWeek)
		}

		return fmt.Sprintf("%d %d * * %d", minute, hour, t.DayOfWeek%7), nil
	case models.FrequencyMonthly:
		day := t.DayOfMonth
		if day == 0 {
			day = 1
		}

		if day < 1 || day > 31 {
			return "", fmt.Errorf("%w: day_of_month %d", ErrInvalidSchedule, t.DayOfMonth)
		}

		return fmt.Sprintf("%d %d %d * *", minute, hour, day), nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, t.Frequency)
	}
}

// CompileSchedule parses the trigger into a cron schedule and the location its
// wall-clock times refer to.
func CompileSchedule(t models.ScheduleTrigger) (cron.Schedule, *time.Location, error) {
	spec, err := CronSpec(t)
	if err != nil {
		return nil, nil, err
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	location := time.UTC

	if t.Timezone != "" {
		location, err = time.LoadLocation(t.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidSchedule, t.Timezone, err)
		}
	}

	return schedule, location, nil
}

// IsActivationMinute reports whether the minute containing now is one in which
// the schedule fires.
func IsActivationMinute(schedule cron.Schedule, location *time.Location, now time.Time) bool {
	minute := now.In(location).Truncate(time.Minute)

	return schedule.Next(minute.Add(-time.Second)).Equal(minute)
}

// parseClock reads "HH:MM". An empty string is midnight; a bare number is
// read as minutes past the hour.
func parseClock(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, nil
	}

	hourPart, minutePart, found := strings.Cut(value, ":")
	if !found {
		minute, err := strconv.Atoi(hourPart)
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidSchedule, value)
		}

		return 0, minute, nil
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidSchedule, value)
	}

	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidSchedule, value)
	}

	return hour, minute, nil
}
