// Package guard decides whether an automated caller may proceed given the
// current quota utilization, and blocks until the quota resets when it may
// not.
package guard

import (
	"fmt"
	"math"
	"time"

	"github.com/quotaguard/quotaguard/internal/usage"
)

// Defaults for Options.
const (
	DefaultThreshold   = 90.0
	DefaultWait        = 600 * time.Second
	DefaultResetBuffer = 60 * time.Second

	maxDuration = time.Duration(math.MaxInt64)
)

// Kind classifies a Decision.
type Kind int

const (
	KindProceed Kind = iota
	KindWait
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindProceed:
		return "proceed"
	case KindWait:
		return "wait"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one guard evaluation. Every kind maps to a
// successful exit.
type Decision struct {
	Kind   Kind
	Wait   time.Duration
	Reason string
}

// Proceed lets the caller continue immediately.
func Proceed(reason string) Decision {
	return Decision{Kind: KindProceed, Reason: reason}
}

// Wait blocks the caller for d.
func Wait(d time.Duration, reason string) Decision {
	return Decision{Kind: KindWait, Wait: d, Reason: reason}
}

// Skip means no check was performed.
func Skip(reason string) Decision {
	return Decision{Kind: KindSkip, Reason: reason}
}

func (d Decision) String() string {
	if d.Kind == KindWait {
		return fmt.Sprintf("wait %s: %s", FormatWait(d.Wait), d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
}

// Options configure the decision rule.
type Options struct {
	Verbose         bool
	NoSleep         bool
	Bypass          bool
	Threshold       float64
	WeeklyThreshold float64
	DefaultWait     time.Duration
	ResetBuffer     time.Duration
}

// DefaultOptions returns a 90% threshold with a 600s default wait and 60s
// reset buffer.
func DefaultOptions() Options {
	return Options{
		Threshold:   DefaultThreshold,
		DefaultWait: DefaultWait,
		ResetBuffer: DefaultResetBuffer,
	}
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

func (o Options) defaultWait() time.Duration {
	if o.DefaultWait <= 0 {
		return DefaultWait
	}
	return o.DefaultWait
}

func (o Options) resetBuffer() time.Duration {
	if o.ResetBuffer < 0 {
		return 0
	}
	return o.ResetBuffer
}

// OverThreshold reports whether the snapshot meets or exceeds the threshold.
func (o Options) OverThreshold(s usage.Snapshot) bool {
	return s.Utilization >= o.threshold()
}

// Decide applies the threshold rule to a snapshot.
func Decide(s usage.Snapshot, opts Options, now time.Time) Decision {
	if !opts.OverThreshold(s) {
		return Proceed(fmt.Sprintf("%s at %s%% (threshold: %s%%)", s.Window, s.Percent(), usage.FormatPercent(opts.threshold())))
	}
	if opts.NoSleep {
		return Proceed(fmt.Sprintf("%s at %s%%, sleep disabled", s.Window, s.Percent()))
	}
	return Wait(WaitDuration(s.ResetsAt, now, opts), fmt.Sprintf("%s at %s%%", s.Window, s.Percent()))
}

// WaitDuration returns the whole seconds until resetsAt plus the reset
// buffer. It falls back to the default wait when resetsAt is nil or the
// result is not positive.
func WaitDuration(resetsAt *time.Time, now time.Time, opts Options) time.Duration {
	fallback := opts.defaultWait()
	if resetsAt == nil {
		return fallback
	}

	buffer := opts.resetBuffer().Truncate(time.Second)
	until := resetsAt.Sub(now).Truncate(time.Second)
	if ceiling := (maxDuration - buffer).Truncate(time.Second); until > ceiling {
		until = ceiling
	}
	wait := until + buffer
	if wait <= 0 {
		return fallback
	}
	return wait
}

// FormatWait renders a duration as "1h 5m" or "12m".
func FormatWait(d time.Duration) string {
	minutes := int(d / time.Minute)
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
