package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/plugin/coach"
	"github.com/hrygo/habitsense/store"
)

const (
	// historyDays bounds how far back logs and events are loaded for an analysis.
	historyDays = 400
	// trendWindowDays is the period length of the measured monthly trend.
	trendWindowDays = 30
	// referenceResolution is the precision of the server clock used as "now".
	referenceResolution = time.Minute
)

// loadSnapshot loads the user's habits, logs and events concurrently.
func (s *Server) loadSnapshot(ctx context.Context, user string, now time.Time) (analytics.Snapshot, error) {
	from := model.DayOf(now).AddDays(-historyDays).String()
	snap := analytics.Snapshot{Now: now}

	var (
		habits []*store.Habit
		logs   []*store.HabitLog
		events []*store.HabitEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = s.Store.ListHabits(gctx, &store.FindHabit{UserID: user})
		return errors.Wrap(err, "failed to load habits")
	})
	g.Go(func() error {
		var err error
		logs, err = s.Store.ListHabitLogs(gctx, &store.FindHabitLog{UserID: user, FromDate: &from})
		return errors.Wrap(err, "failed to load habit logs")
	})
	g.Go(func() error {
		var err error
		events, err = s.Store.ListHabitEvents(gctx, &store.FindHabitEvent{UserID: user, FromDate: &from})
		return errors.Wrap(err, "failed to load habit events")
	})
	if err := g.Wait(); err != nil {
		return snap, err
	}

	snap.Habits = make([]model.Habit, 0, len(habits))
	for _, h := range habits {
		snap.Habits = append(snap.Habits, h.ToModel())
	}
	for _, l := range logs {
		snap.Logs = append(snap.Logs, l.ToModel())
	}
	for _, e := range events {
		snap.Events = append(snap.Events, e.ToModel())
	}
	if s.Profile.TrendBaseline == profile.TrendBaselineMeasured {
		snap.TrendWindowDays = trendWindowDays
	}
	return snap, nil
}

// referenceTime is the optional "now" query parameter, or the server clock
// truncated to the minute so repeated requests share cached reports.
func (s *Server) referenceTime(c echo.Context) (time.Time, error) {
	loc := s.Profile.Location()
	raw := c.QueryParam("now")
	if raw == "" {
		return s.now().Truncate(referenceResolution).In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "now must be an RFC3339 timestamp")
	}
	return t.In(loc), nil
}

func (s *Server) analyze(c echo.Context) (*analytics.Report, error) {
	now, err := s.referenceTime(c)
	if err != nil {
		return nil, err
	}

	ctx := c.Request().Context()
	user := c.Param("user")
	snap, err := s.loadSnapshot(ctx, user, now)
	if err != nil {
		return nil, s.internalError(c, "load snapshot", err)
	}

	var report *analytics.Report
	if s.reports != nil {
		report, err = s.reports.Analyze(ctx, user, snap)
	} else {
		report, err = s.engine.Analyze(ctx, snap)
	}
	if err != nil {
		if analytics.IsInvalidSnapshot(err) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return nil, s.internalError(c, "analyze", err)
	}
	return report, nil
}

func (s *Server) handleInsights(c echo.Context) error {
	report, err := s.analyze(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

type coachResponse struct {
	Advice *coach.Advice     `json:"advice"`
	Report *analytics.Report `json:"report"`
}

func (s *Server) handleCoach(c echo.Context) error {
	if !s.coach.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "coach is disabled")
	}
	report, err := s.analyze(c)
	if err != nil {
		return err
	}

	advice, err := s.coach.Advise(c.Request().Context(), report)
	if err != nil {
		if errors.Is(err, coach.ErrRateLimited) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "coach rate limit exceeded")
		}
		s.logger.Warn("Server: coach failed", "user", c.Param("user"), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "coach unavailable")
	}
	return c.JSON(http.StatusOK, coachResponse{Advice: advice, Report: report})
}
