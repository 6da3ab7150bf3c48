package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/internal/logging"
	"github.com/hrygo/habitsense/store"
)

type createHabitRequest struct {
	UID       string             `json:"uid"`
	Name      string             `json:"name"`
	Icon      string             `json:"icon"`
	Polarity  model.Polarity     `json:"polarity"`
	Mode      model.TrackingMode `json:"mode"`
	DailyGoal int                `json:"daily_goal"`
	GoalKind  model.GoalKind     `json:"goal_kind"`
}

type updateHabitRequest struct {
	Name      *string `json:"name"`
	Icon      *string `json:"icon"`
	DailyGoal *int    `json:"daily_goal"`
	Archived  *bool   `json:"archived"`
}

type createLogRequest struct {
	HabitUID string `json:"habit_uid"`
	Date     string `json:"date"`
	Value    int    `json:"value"`
}

type createEventRequest struct {
	HabitUID   string    `json:"habit_uid"`
	Date       string    `json:"date"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

type habitResponse struct {
	UID       string             `json:"uid"`
	Name      string             `json:"name"`
	Icon      string             `json:"icon,omitempty"`
	Polarity  model.Polarity     `json:"polarity"`
	Mode      model.TrackingMode `json:"mode"`
	DailyGoal int                `json:"daily_goal,omitempty"`
	GoalKind  model.GoalKind     `json:"goal_kind,omitempty"`
	Archived  bool               `json:"archived"`
	CreatedTs int64              `json:"created_ts"`
	UpdatedTs int64              `json:"updated_ts"`
}

func convertHabit(h *store.Habit) habitResponse {
	return habitResponse{
		UID:       h.UID,
		Name:      h.Name,
		Icon:      h.Icon,
		Polarity:  h.Polarity,
		Mode:      h.Mode,
		DailyGoal: h.DailyGoal,
		GoalKind:  h.GoalKind,
		Archived:  h.Archived,
		CreatedTs: h.CreatedTs,
		UpdatedTs: h.UpdatedTs,
	}
}

func (s *Server) handleListHabits(c echo.Context) error {
	habits, err := s.Store.ListHabits(c.Request().Context(), &store.FindHabit{
		UserID:          c.Param("user"),
		IncludeArchived: c.QueryParam("archived") == "true",
	})
	if err != nil {
		return s.internalError(c, "list habits", err)
	}

	list := make([]habitResponse, 0, len(habits))
	for _, h := range habits {
		list = append(list, convertHabit(h))
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateHabit(c echo.Context) error {
	var req createHabitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if !req.Polarity.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "polarity must be good or bad")
	}
	if !req.Mode.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be binary or counter")
	}
	if req.DailyGoal < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "daily_goal must not be negative")
	}
	if req.UID == "" {
		req.UID = shortuuid.New()
	}

	user := c.Param("user")
	habit, err := s.Store.CreateHabit(c.Request().Context(), &store.Habit{
		UID:       req.UID,
		UserID:    user,
		Name:      req.Name,
		Icon:      req.Icon,
		Polarity:  req.Polarity,
		Mode:      req.Mode,
		DailyGoal: req.DailyGoal,
		GoalKind:  req.GoalKind,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "habit uid already exists")
		}
		return s.internalError(c, "create habit", err)
	}
	s.invalidate(user)
	return c.JSON(http.StatusCreated, convertHabit(habit))
}

func (s *Server) handleUpdateHabit(c echo.Context) error {
	var req updateHabitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil && *req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name must not be empty")
	}
	if req.DailyGoal != nil && *req.DailyGoal < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "daily_goal must not be negative")
	}

	ctx := c.Request().Context()
	user, uid := c.Param("user"), c.Param("uid")
	existing, err := s.Store.GetHabit(ctx, user, uid)
	if err != nil {
		return s.internalError(c, "get habit", err)
	}
	if existing == nil {
		return echo.NewHTTPError(http.StatusNotFound, "habit not found")
	}

	habit, err := s.Store.UpdateHabit(ctx, &store.UpdateHabit{
		UserID:    user,
		UID:       uid,
		Name:      req.Name,
		Icon:      req.Icon,
		DailyGoal: req.DailyGoal,
		Archived:  req.Archived,
		UpdatedTs: s.now().Unix(),
	})
	if err != nil {
		return s.internalError(c, "update habit", err)
	}
	s.invalidate(user)
	return c.JSON(http.StatusOK, convertHabit(habit))
}

func (s *Server) handleCreateLog(c echo.Context) error {
	var req createLogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Value < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "value must not be negative")
	}

	ctx := c.Request().Context()
	user := c.Param("user")
	date, created, err := s.entryDay(req.Date, s.now().In(s.Profile.Location()), false)
	if err != nil {
		return err
	}
	if err := s.requireHabit(c, user, req.HabitUID); err != nil {
		return err
	}

	log, err := s.Store.CreateHabitLog(ctx, &store.HabitLog{
		UserID:    user,
		HabitUID:  req.HabitUID,
		Date:      date,
		Value:     req.Value,
		CreatedTs: created.Unix(),
	})
	if err != nil {
		return s.internalError(c, "create habit log", err)
	}
	s.invalidate(user)
	return c.JSON(http.StatusCreated, log.ToModel())
}

func (s *Server) handleCreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Count < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "count must not be negative")
	}

	ctx := c.Request().Context()
	user := c.Param("user")
	loc := s.Profile.Location()
	occurred, stamped := s.now().In(loc), !req.OccurredAt.IsZero()
	if stamped {
		occurred = req.OccurredAt.In(loc)
	}
	date, occurred, err := s.entryDay(req.Date, occurred, stamped)
	if err != nil {
		return err
	}
	if err := s.requireHabit(c, user, req.HabitUID); err != nil {
		return err
	}

	event, err := s.Store.CreateHabitEvent(ctx, &store.HabitEvent{
		UserID:     user,
		HabitUID:   req.HabitUID,
		Date:       date,
		Count:      req.Count,
		OccurredTs: occurred.Unix(),
	})
	if err != nil {
		return s.internalError(c, "create habit event", err)
	}
	s.invalidate(user)
	return c.JSON(http.StatusCreated, event.ToModel())
}

// entryDay normalizes an explicit date, or falls back to the calendar day of at.
// An entry backfilled for another day without its own timestamp is stamped at the
// local midnight of that day.
func (s *Server) entryDay(date string, at time.Time, stamped bool) (string, time.Time, error) {
	if date == "" {
		return model.DayOf(at).String(), at, nil
	}
	day, err := model.ParseDay(date)
	if err != nil {
		return "", time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if !stamped && model.DayOf(at) != day {
		at = day.In(at.Location())
	}
	return day.String(), at, nil
}

func (s *Server) requireHabit(c echo.Context, user, uid string) error {
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "habit_uid is required")
	}
	habit, err := s.Store.GetHabit(c.Request().Context(), user, uid)
	if err != nil {
		return s.internalError(c, "get habit", err)
	}
	if habit == nil {
		return echo.NewHTTPError(http.StatusNotFound, "habit not found")
	}
	return nil
}

func (s *Server) invalidate(user string) {
	if s.reports != nil {
		s.reports.InvalidateUser(user)
	}
}

func (s *Server) internalError(c echo.Context, op string, err error) error {
	logging.FromContext(c.Request().Context()).Error("Server: "+op+" failed",
		"user", c.Param("user"),
		"error", err,
	)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
