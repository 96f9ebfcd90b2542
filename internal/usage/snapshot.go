// Package usage fetches rolling-window quota utilization from the claude.ai
// organization usage endpoint.
package usage

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Window names as reported by the usage endpoint.
const (
	WindowFiveHour = "five_hour"
	WindowSevenDay = "seven_day"
)

// Window is one rolling quota window in the usage response. ResetsAt is kept
// as a string so a malformed timestamp does not fail the whole decode.
type Window struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    *string  `json:"resets_at"`
}

// Response is the subset of the usage endpoint payload quotaguard reads.
type Response struct {
	FiveHour *Window `json:"five_hour"`
	SevenDay *Window `json:"seven_day"`
}

// Snapshot is the parsed state of one window at fetch time.
type Snapshot struct {
	Window      string     `json:"window" yaml:"window"`
	Utilization float64    `json:"utilization" yaml:"utilization"`
	ResetsAt    *time.Time `json:"resets_at,omitempty" yaml:"resets_at,omitempty"`
	RawResetsAt string     `json:"-" yaml:"-"`
	FetchedAt   time.Time  `json:"fetched_at" yaml:"fetched_at"`
	CheckID     string     `json:"check_id" yaml:"check_id"`
}

// Percent renders the utilization for display.
func (s Snapshot) Percent() string {
	return FormatPercent(s.Utilization)
}

// FiveHourSnapshot extracts the five-hour window. A missing window or
// utilization field reads as 0%.
func (r *Response) FiveHourSnapshot(fetchedAt time.Time, checkID string) Snapshot {
	var w *Window
	if r != nil {
		w = r.FiveHour
	}
	return w.snapshot(WindowFiveHour, fetchedAt, checkID)
}

// SevenDaySnapshot extracts the seven-day window, or false when the response
// carries none.
func (r *Response) SevenDaySnapshot(fetchedAt time.Time, checkID string) (Snapshot, bool) {
	if r == nil || r.SevenDay == nil {
		return Snapshot{}, false
	}
	return r.SevenDay.snapshot(WindowSevenDay, fetchedAt, checkID), true
}

func (w *Window) snapshot(name string, fetchedAt time.Time, checkID string) Snapshot {
	s := Snapshot{Window: name, FetchedAt: fetchedAt, CheckID: checkID}
	if w == nil {
		return s
	}
	if w.Utilization != nil {
		s.Utilization = *w.Utilization
	}
	if w.ResetsAt != nil {
		s.RawResetsAt = *w.ResetsAt
		if t, ok := ParseResetTime(*w.ResetsAt); ok {
			s.ResetsAt = &t
		}
	}
	return s
}

// ParseResetTime parses an ISO-8601 timestamp with optional fractional
// seconds and a 'Z' or numeric offset suffix.
func ParseResetTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatPercent renders whole numbers without decimals and everything else
// with one decimal place: 90 -> "90", 87.5 -> "87.5".
func FormatPercent(value float64) string {
	if value == math.Trunc(value) {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}
