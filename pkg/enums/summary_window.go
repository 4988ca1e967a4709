package enums

import "fmt"

// SummaryWindow identifies the time range a cached finance summary covers.
type SummaryWindow string

const (
	SummaryWindowToday SummaryWindow = "today"
	SummaryWindowWeek  SummaryWindow = "week"
	SummaryWindowMonth SummaryWindow = "month"
	SummaryWindowYear  SummaryWindow = "year"
)

var validSummaryWindows = []SummaryWindow{
	SummaryWindowToday,
	SummaryWindowWeek,
	SummaryWindowMonth,
	SummaryWindowYear,
}

// AllSummaryWindows returns every cacheable window.
func AllSummaryWindows() []SummaryWindow {
	windows := make([]SummaryWindow, len(validSummaryWindows))
	copy(windows, validSummaryWindows)
	return windows
}

// String implements fmt.Stringer.
func (w SummaryWindow) String() string {
	return string(w)
}

// IsValid reports whether the value is a known SummaryWindow.
func (w SummaryWindow) IsValid() bool {
	for _, candidate := range validSummaryWindows {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseSummaryWindow converts raw input into a SummaryWindow.
func ParseSummaryWindow(value string) (SummaryWindow, error) {
	for _, candidate := range validSummaryWindows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid summary window %q", value)
}
