package enums

import "fmt"

// ChartPeriod identifies the bucketing scheme for finance chart data.
type ChartPeriod string

const (
	ChartPeriodDay   ChartPeriod = "day"   // hour blocks within the business day
	ChartPeriodWeek  ChartPeriod = "week"  // day of week
	ChartPeriodMonth ChartPeriod = "month" // week of month
	ChartPeriodYear  ChartPeriod = "year"  // month of year
)

var validChartPeriods = []ChartPeriod{
	ChartPeriodDay,
	ChartPeriodWeek,
	ChartPeriodMonth,
	ChartPeriodYear,
}

// String implements fmt.Stringer.
func (p ChartPeriod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ChartPeriod.
func (p ChartPeriod) IsValid() bool {
	for _, candidate := range validChartPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseChartPeriod converts raw input into a ChartPeriod.
func ParseChartPeriod(value string) (ChartPeriod, error) {
	for _, candidate := range validChartPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid chart period %q", value)
}
