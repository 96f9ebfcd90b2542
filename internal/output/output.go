// Package output renders usage status reports.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quotaguard/quotaguard/internal/usage"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// WindowStatus is one quota window in a status report.
type WindowStatus struct {
	Window      string     `json:"window" yaml:"window"`
	Label       string     `json:"label" yaml:"label"`
	Utilization float64    `json:"utilization" yaml:"utilization"`
	Percent     string     `json:"percent" yaml:"percent"`
	Threshold   float64    `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	OverLimit   bool       `json:"over_limit" yaml:"over_limit"`
	ResetsAt    *time.Time `json:"resets_at,omitempty" yaml:"resets_at,omitempty"`
	ResetsIn    string     `json:"resets_in,omitempty" yaml:"resets_in,omitempty"`
}

// StatusReport is the rendered result of a status check.
type StatusReport struct {
	CheckID   string         `json:"check_id" yaml:"check_id"`
	FetchedAt time.Time      `json:"fetched_at" yaml:"fetched_at"`
	Windows   []WindowStatus `json:"windows" yaml:"windows"`
}

var windowLabels = map[string]string{
	usage.WindowFiveHour: "Session (5h)",
	usage.WindowSevenDay: "Weekly (7d)",
}

// NewWindowStatus builds a report row from a snapshot. A zero threshold
// means the window is not enforced.
func NewWindowStatus(s usage.Snapshot, threshold float64, now time.Time) WindowStatus {
	label, ok := windowLabels[s.Window]
	if !ok {
		label = s.Window
	}
	status := WindowStatus{
		Window:      s.Window,
		Label:       label,
		Utilization: s.Utilization,
		Percent:     s.Percent() + "%",
		Threshold:   threshold,
		OverLimit:   threshold > 0 && s.Utilization >= threshold,
		ResetsAt:    s.ResetsAt,
	}
	if s.ResetsAt != nil {
		status.ResetsIn = FormatResetIn(*s.ResetsAt, now)
	}
	return status
}

// Render renders a report in the requested format.
func Render(format Format, report *StatusReport) (string, error) {
	if report == nil {
		return "", nil
	}
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return renderTable(report), nil
	}
}

// FormatResetIn renders the time until reset as "now", "45m" or "2h 5m".
func FormatResetIn(resetsAt, now time.Time) string {
	diff := resetsAt.Sub(now)
	if diff <= 0 {
		return "now"
	}
	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
