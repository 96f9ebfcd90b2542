package guard

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quotaguard/quotaguard/internal/credentials"
	apperrors "github.com/quotaguard/quotaguard/internal/errors"
	"github.com/quotaguard/quotaguard/internal/usage"
)

// CredentialSource resolves the session credentials.
type CredentialSource interface {
	Resolve() (credentials.Credentials, error)
}

// Fetcher retrieves the usage payload.
type Fetcher interface {
	Fetch(ctx context.Context, creds credentials.Credentials) (*usage.Response, error)
}

// Sleeper blocks for a duration.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(time.Duration)

// Sleep calls f(d).
func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// Recorder receives per-run observations.
type Recorder interface {
	ObserveWindow(window string, percent float64, resetsAt *time.Time)
	ObserveDecision(kind string, wait time.Duration, at time.Time)
	Flush() error
}

// Outcome is the result of a run.
type Outcome struct {
	Decision Decision
	Snapshot *usage.Snapshot
	Weekly   *usage.Snapshot
	Err      error
}

// Guard runs the check: bypass, resolve credentials, fetch, decide, sleep.
type Guard struct {
	Options     Options
	Credentials CredentialSource
	Fetcher     Fetcher
	Sleeper     Sleeper
	Recorder    Recorder
	Logger      *logging.Logger
	Clock       func() time.Time
}

// Run executes the guard once. The wait, when decided, is a plain blocking
// sleep that ignores ctx; ctx only bounds the fetch.
func (g *Guard) Run(ctx context.Context) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	if g.Options.Bypass {
		g.debug("Rate limit guard bypassed (CLAUDE_NO_LIMIT=1)")
		return g.finish(Outcome{Decision: Skip("bypassed (CLAUDE_NO_LIMIT=1)")})
	}

	if g.Credentials == nil {
		return g.finish(Outcome{Decision: Skip("no credential source configured")})
	}
	creds, err := g.Credentials.Resolve()
	if err != nil {
		reason := "credentials unavailable"
		switch {
		case errors.Is(err, credentials.ErrMissingSessionKey):
			reason = credentials.ErrMissingSessionKey.Error()
		case errors.Is(err, credentials.ErrMissingOrgID):
			reason = credentials.ErrMissingOrgID.Error()
		}
		g.debug("Skipping rate limit check", zap.String("reason", reason), zap.Error(err))
		return g.finish(Outcome{Decision: Skip(reason), Err: err})
	}

	if g.Fetcher == nil {
		return g.finish(Outcome{Decision: Skip("no usage client configured")})
	}

	checkID := uuid.New().String()
	fetchCtx := apperrors.WithCorrelationID(ctx, checkID)
	resp, err := g.Fetcher.Fetch(fetchCtx, creds)
	if err != nil {
		g.debug("Error checking usage",
			zap.String("check_id", checkID),
			zap.String("error_code", apperrors.Code(err)),
			zap.Error(err))
		return g.finish(Outcome{Decision: Skip("usage check failed"), Err: err})
	}

	now := g.now()
	five := resp.FiveHourSnapshot(now, checkID)
	outcome := Outcome{Snapshot: &five}
	g.observe(five)

	g.debug("Usage: "+five.Percent()+"% (threshold: "+usage.FormatPercent(g.Options.threshold())+"%)",
		zap.String("check_id", checkID),
		zap.Float64("utilization", five.Utilization),
		zap.String("resets_at", five.RawResetsAt))

	outcome.Decision = Decide(five, g.Options, now)
	over := g.Options.OverThreshold(five)

	if !over && g.Options.WeeklyThreshold > 0 {
		if weekly, ok := resp.SevenDaySnapshot(now, checkID); ok {
			outcome.Weekly = &weekly
			g.observe(weekly)

			weeklyOpts := g.Options
			weeklyOpts.Threshold = g.Options.WeeklyThreshold
			g.debug("Weekly: "+weekly.Percent()+"% (threshold: "+usage.FormatPercent(weeklyOpts.threshold())+"%)",
				zap.String("check_id", checkID))
			if weeklyOpts.OverThreshold(weekly) {
				over = true
				outcome.Decision = Decide(weekly, weeklyOpts, now)
			}
		}
	}

	if outcome.Decision.Kind != KindWait {
		if over && g.Options.NoSleep {
			g.debug("Over threshold but sleep disabled", zap.String("reason", outcome.Decision.Reason))
		}
		return g.finish(outcome)
	}

	g.record(outcome.Decision)
	g.info("Claude "+outcome.Decision.Reason+" - sleeping "+FormatWait(outcome.Decision.Wait)+" until reset...",
		zap.Duration("wait", outcome.Decision.Wait),
		zap.String("check_id", checkID))

	g.sleeper().Sleep(outcome.Decision.Wait)

	g.info("Resuming after rate limit cooldown")
	return outcome
}

func (g *Guard) finish(outcome Outcome) Outcome {
	g.record(outcome.Decision)
	return outcome
}

func (g *Guard) record(d Decision) {
	if g.Recorder == nil {
		return
	}
	g.Recorder.ObserveDecision(d.Kind.String(), d.Wait, g.now())
	if err := g.Recorder.Flush(); err != nil {
		g.debug("Failed to write metrics", zap.Error(err))
	}
}

func (g *Guard) observe(s usage.Snapshot) {
	if g.Recorder == nil {
		return
	}
	g.Recorder.ObserveWindow(s.Window, s.Utilization, s.ResetsAt)
}

func (g *Guard) sleeper() Sleeper {
	if g.Sleeper != nil {
		return g.Sleeper
	}
	return SleeperFunc(time.Sleep)
}

func (g *Guard) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

// debug emits diagnostics only in verbose mode.
func (g *Guard) debug(msg string, fields ...zap.Field) {
	if g.Logger != nil && g.Options.Verbose {
		g.Logger.Debug(msg, fields...)
	}
}

func (g *Guard) info(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Info(msg, fields...)
	}
}
