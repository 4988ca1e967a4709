package summary

import (
	"fmt"
	"time"

	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
)

// Bucketing happens in the business-local time zone so "today" and week
// boundaries match the shop's day, not the server's.

// windowRange returns the half-open [from, to) range a window covers,
// anchored at now in the provided location.
func windowRange(window enums.SummaryWindow, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch window {
	case enums.SummaryWindowToday:
		return dayStart, dayStart.AddDate(0, 0, 1), nil
	case enums.SummaryWindowWeek:
		start := dayStart.AddDate(0, 0, -mondayOffset(dayStart.Weekday()))
		return start, start.AddDate(0, 0, 7), nil
	case enums.SummaryWindowMonth:
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case enums.SummaryWindowYear:
		start := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown summary window %q", window)
	}
}

// chartRange maps each chart period onto the matching summary window range.
func chartRange(period enums.ChartPeriod, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	switch period {
	case enums.ChartPeriodDay:
		return windowRange(enums.SummaryWindowToday, now, loc)
	case enums.ChartPeriodWeek:
		return windowRange(enums.SummaryWindowWeek, now, loc)
	case enums.ChartPeriodMonth:
		return windowRange(enums.SummaryWindowMonth, now, loc)
	case enums.ChartPeriodYear:
		return windowRange(enums.SummaryWindowYear, now, loc)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown chart period %q", period)
	}
}

// mondayOffset counts days back to Monday, the first day of the business week.
func mondayOffset(day time.Weekday) int {
	if day == time.Sunday {
		return 6
	}
	return int(day) - 1
}

var dayBlockLabels = []string{"00-06", "06-12", "12-18", "18-24"}

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// bucketLabels returns the ordered bucket labels for a period. Month periods
// vary in week count, so the caller passes the window start to size them.
func bucketLabels(period enums.ChartPeriod, from time.Time) []string {
	switch period {
	case enums.ChartPeriodDay:
		labels := make([]string, len(dayBlockLabels))
		copy(labels, dayBlockLabels)
		return labels
	case enums.ChartPeriodWeek:
		labels := make([]string, len(weekdayLabels))
		copy(labels, weekdayLabels)
		return labels
	case enums.ChartPeriodMonth:
		weeks := weeksInMonth(from)
		labels := make([]string, weeks)
		for i := range labels {
			labels[i] = fmt.Sprintf("W%d", i+1)
		}
		return labels
	case enums.ChartPeriodYear:
		labels := make([]string, 12)
		for i := range labels {
			labels[i] = time.Month(i + 1).String()[:3]
		}
		return labels
	default:
		return nil
	}
}

// bucketIndex places a timestamp into its period bucket. The timestamp must
// already lie within the period's range.
func bucketIndex(period enums.ChartPeriod, at time.Time, loc *time.Location) int {
	local := at.In(loc)
	switch period {
	case enums.ChartPeriodDay:
		return local.Hour() / 6
	case enums.ChartPeriodWeek:
		return mondayOffset(local.Weekday())
	case enums.ChartPeriodMonth:
		return (local.Day() - 1) / 7
	case enums.ChartPeriodYear:
		return int(local.Month()) - 1
	default:
		return 0
	}
}

func weeksInMonth(monthStart time.Time) int {
	lastDay := monthStart.AddDate(0, 1, -1).Day()
	return (lastDay + 6) / 7
}
