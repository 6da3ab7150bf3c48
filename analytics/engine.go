// Package analytics turns a snapshot of habits, logs and events into a report:
// per-habit risk, detected behavioral patterns and the strategic metrics built on both.
//
// The computation is pure. The engine never reads the wall clock and never fetches
// data; the caller supplies a consistent snapshot and the reference time.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/pattern"
	"github.com/hrygo/habitsense/analytics/risk"
	"github.com/hrygo/habitsense/analytics/strategy"
)

// ErrInvalidSnapshot is returned, wrapped with detail, when a snapshot cannot be analyzed.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the already-loaded input of one analysis.
type Snapshot struct {
	Habits []model.Habit      `json:"habits" yaml:"habits"`
	Logs   []model.LogEntry   `json:"logs" yaml:"logs"`
	Events []model.EventEntry `json:"events" yaml:"events"`
	// Now is the reference time. Its location decides the calendar day of timestamps.
	Now time.Time `json:"now" yaml:"now"`
	// Previous holds measured totals of the previous period, if the caller has them.
	Previous *strategy.PeriodTotals `json:"previous,omitempty" yaml:"previous,omitempty"`
	// TrendWindowDays, when positive, measures the trend on the last window days
	// against the window before it. It takes precedence over Previous.
	TrendWindowDays int `json:"trend_window_days,omitempty" yaml:"trend_window_days,omitempty"`
}

// Validate reports the first reason the snapshot cannot be analyzed.
func (s *Snapshot) Validate() error {
	if s.Now.IsZero() {
		return errors.Wrap(ErrInvalidSnapshot, "reference time is not set")
	}
	if s.Habits == nil {
		return errors.Wrap(ErrInvalidSnapshot, "habit list is missing")
	}
	if s.TrendWindowDays < 0 {
		return errors.Wrapf(ErrInvalidSnapshot, "negative trend window %d", s.TrendWindowDays)
	}
	for i, h := range s.Habits {
		if h.ID == "" {
			return errors.Wrapf(ErrInvalidSnapshot, "habit #%d has no id", i)
		}
		if !h.Polarity.IsValid() {
			return errors.Wrapf(ErrInvalidSnapshot, "habit %s has unknown polarity %q", h.ID, h.Polarity)
		}
		if !h.Mode.IsValid() {
			return errors.Wrapf(ErrInvalidSnapshot, "habit %s has unknown tracking mode %q", h.ID, h.Mode)
		}
	}
	return nil
}

// Report is the full output of one analysis. It is plain data and JSON serializable.
type Report struct {
	Now      time.Time       `json:"now"`
	Today    model.Day       `json:"today"`
	Risk     risk.Result     `json:"risk"`
	Patterns pattern.Result  `json:"patterns"`
	Totals   strategy.Totals `json:"totals"`
	Strategy strategy.Result `json:"strategy"`
}

// Recorder observes finished analyses.
type Recorder interface {
	ObserveAnalysis(report *Report, elapsed time.Duration, err error)
}

// Engine runs the three analyzers in dependency order.
type Engine struct {
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder sets the observer of finished analyses.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Analyze validates the snapshot and computes its report.
// No computation starts when validation fails.
func (e *Engine) Analyze(ctx context.Context, snap Snapshot) (*Report, error) {
	start := time.Now()
	report, err := e.analyze(ctx, snap)
	if e.recorder != nil {
		e.recorder.ObserveAnalysis(report, time.Since(start), err)
	}
	if err != nil {
		e.logger.Warn("Engine: analysis rejected", "error", err)
		return nil, err
	}
	e.logger.Debug("Engine: analysis completed",
		"habits", len(snap.Habits),
		"logs", len(snap.Logs),
		"events", len(snap.Events),
		"patterns", len(report.Patterns.Patterns),
		"score", report.Strategy.HealthScore.Score,
		"duration", time.Since(start),
	)
	return report, nil
}

func (e *Engine) analyze(ctx context.Context, snap Snapshot) (*Report, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis canceled")
	}

	now := snap.Now
	today := model.DayOf(now)

	riskResult := risk.Analyze(snap.Habits, snap.Logs, snap.Events, now)
	patterns := pattern.Detect(snap.Habits, snap.Logs, snap.Events, now)
	totals := strategy.CollectTotals(snap.Habits, snap.Logs, snap.Events, riskResult, now.Location())

	input := strategy.Input{
		Totals:   totals,
		Patterns: patterns,
		Risk:     riskResult,
		Today:    today,
		Previous: snap.Previous,
	}
	if snap.TrendWindowDays > 0 {
		current, previous := strategy.TrailingWindows(snap.Habits, snap.Logs, snap.Events, today, snap.TrendWindowDays, now.Location())
		input.Current, input.Previous = &current, &previous
	}

	return &Report{
		Now:      now,
		Today:    today,
		Risk:     riskResult,
		Patterns: patterns,
		Totals:   totals,
		Strategy: strategy.Compose(input),
	}, nil
}

// IsInvalidSnapshot reports whether err was caused by an invalid snapshot.
func IsInvalidSnapshot(err error) bool {
	return errors.Cause(err) == ErrInvalidSnapshot
}

// Summary is a one-line description of the report, used in logs and prompts.
func (r *Report) Summary() string {
	return fmt.Sprintf("score %d (%s), %d critical habits, %d patterns, trend %s",
		r.Strategy.HealthScore.Score,
		r.Strategy.HealthScore.Grade,
		len(r.Risk.Critical()),
		len(r.Patterns.Patterns),
		r.Strategy.Trend.Trend,
	)
}
