package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/risk"
	"github.com/hrygo/habitsense/analytics/strategy"
	"github.com/hrygo/habitsense/internal/profile"
	"github.com/hrygo/habitsense/plugin/coach"
	"github.com/hrygo/habitsense/store"
	"github.com/hrygo/habitsense/store/db"
)

var fixedNow = time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(p *profile.Profile), opts ...Option) *Server {
	t.Helper()
	p := &profile.Profile{
		Mode:            "dev",
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "habitsense_test.db"),
		Timezone:        "UTC",
		TrendBaseline:   profile.TrendBaselineEstimated,
		ReportCacheSize: 16,
		ReportCacheTTL:  60,
		Version:         "0.3.0",
	}
	if mutate != nil {
		mutate(p)
	}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := NewServer(context.Background(), p, st, opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	for _, body := range []string{
		`{"uid":"run","name":"Run","polarity":"good","mode":"binary"}`,
		`{"uid":"smoke","name":"Smoke","polarity":"bad","mode":"counter"}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/v1/users/alice/habits", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	for _, date := range []string{"2024-06-11", "2024-06-12", "2024-06-13"} {
		rec := do(t, s, http.MethodPost, "/api/v1/users/alice/logs", `{"habit_uid":"run","date":"`+date+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := do(t, s, http.MethodPost, "/api/v1/users/alice/events", `{"habit_uid":"smoke","occurred_at":"2024-06-14T16:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func insights(t *testing.T, s *Server, path string) *analytics.Report {
	t.Helper()
	rec := do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report analytics.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return &report
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"0.3.0"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHabitIngest(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"duplicate uid", http.MethodPost, "/api/v1/users/alice/habits", `{"uid":"run","name":"Run","polarity":"good","mode":"binary"}`, http.StatusConflict},
		{"same uid other user", http.MethodPost, "/api/v1/users/bob/habits", `{"uid":"run","name":"Run","polarity":"good","mode":"binary"}`, http.StatusCreated},
		{"generated uid", http.MethodPost, "/api/v1/users/alice/habits", `{"name":"Read","polarity":"good","mode":"binary"}`, http.StatusCreated},
		{"missing name", http.MethodPost, "/api/v1/users/alice/habits", `{"polarity":"good","mode":"binary"}`, http.StatusBadRequest},
		{"unknown polarity", http.MethodPost, "/api/v1/users/alice/habits", `{"name":"X","polarity":"neutral","mode":"binary"}`, http.StatusBadRequest},
		{"unknown mode", http.MethodPost, "/api/v1/users/alice/habits", `{"name":"X","polarity":"good","mode":"timer"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/users/alice/habits", `{`, http.StatusBadRequest},
		{"log for unknown habit", http.MethodPost, "/api/v1/users/alice/logs", `{"habit_uid":"ghost"}`, http.StatusNotFound},
		{"log without habit", http.MethodPost, "/api/v1/users/alice/logs", `{}`, http.StatusBadRequest},
		{"log with bad date", http.MethodPost, "/api/v1/users/alice/logs", `{"habit_uid":"run","date":"14/06/2024"}`, http.StatusBadRequest},
		{"event with negative count", http.MethodPost, "/api/v1/users/alice/events", `{"habit_uid":"smoke","count":-1}`, http.StatusBadRequest},
		{"update unknown habit", http.MethodPatch, "/api/v1/users/alice/habits/ghost", `{"archived":true}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, s, http.MethodGet, "/api/v1/users/alice/habits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var habits []habitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &habits))
	require.Len(t, habits, 3)
	assert.Equal(t, "run", habits[0].UID)
	assert.NotEmpty(t, habits[2].UID)
}

func TestInsights(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s)

	report := insights(t, s, "/api/v1/users/alice/insights")
	assert.Equal(t, model.DayOf(fixedNow), report.Today)
	require.Len(t, report.Risk.Habits, 2)
	assert.Equal(t, "smoke", report.Risk.Habits[0].HabitID)
	assert.Equal(t, model.RiskCritical, report.Risk.Habits[0].Level)
	assert.Equal(t, 3, report.Totals.GoodTotal)
	assert.Equal(t, 1, report.Totals.BadTotal)
	assert.Equal(t, strategy.BaselineEstimated, report.Strategy.Trend.Baseline)
	assert.Len(t, report.Strategy.Predictions, 7)

	// Identical snapshots are served from the report cache.
	insights(t, s, "/api/v1/users/alice/insights")
	assert.Equal(t, 1, s.reports.Size())

	// Archiving a habit invalidates the cache and removes it from the analysis.
	rec := do(t, s, http.MethodPatch, "/api/v1/users/alice/habits/smoke", `{"archived":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, s.reports.Size())

	report = insights(t, s, "/api/v1/users/alice/insights")
	require.Len(t, report.Risk.Habits, 1)
	assert.Equal(t, "run", report.Risk.Habits[0].HabitID)
	assert.Zero(t, report.Totals.BadTotal)

	// Unknown users get an empty but valid report.
	report = insights(t, s, "/api/v1/users/nobody/insights")
	assert.Empty(t, report.Risk.Habits)
	assert.Equal(t, model.RiskGood, report.Risk.Global.Level)
}

func TestInsights_CacheWithRunningClock(t *testing.T) {
	var ticks int
	clock := func() time.Time {
		ticks++
		return fixedNow.Add(time.Duration(ticks) * 150 * time.Millisecond)
	}
	s := newTestServer(t, nil, WithClock(clock))
	seed(t, s)

	first := insights(t, s, "/api/v1/users/alice/insights")
	for i := 0; i < 2; i++ {
		report := insights(t, s, "/api/v1/users/alice/insights")
		assert.Equal(t, first.Strategy.HealthScore, report.Strategy.HealthScore)
	}
	assert.Equal(t, 1, s.reports.Size())

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `habitsense_server_cache_hits_total{cache_type="report"} 2`)
}

func TestBackfilledEntries(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s)

	rec := do(t, s, http.MethodPost, "/api/v1/users/alice/habits", `{"uid":"drink","name":"Drink","polarity":"bad","mode":"binary"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/users/alice/events", `{"habit_uid":"drink","date":"2024-06-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var event model.EventEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.True(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC).Equal(event.OccurredAt))

	rec = do(t, s, http.MethodPost, "/api/v1/users/alice/logs", `{"habit_uid":"run","date":"2024-06-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var log model.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.True(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC).Equal(log.CreatedAt))

	// An entry for today keeps the time it was recorded.
	rec = do(t, s, http.MethodPost, "/api/v1/users/alice/logs", `{"habit_uid":"run","date":"2024-06-14"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	assert.True(t, fixedNow.Equal(log.CreatedAt))

	report := insights(t, s, "/api/v1/users/alice/insights")
	var drink *risk.HabitRisk
	for i := range report.Risk.Habits {
		if report.Risk.Habits[i].HabitID == "drink" {
			drink = &report.Risk.Habits[i]
		}
	}
	require.NotNil(t, drink)
	assert.Equal(t, model.RiskGood, drink.Level)
	assert.Equal(t, 10, drink.CurrentStreak)
	assert.Equal(t, risk.ActionContinueStreak, drink.SuggestedAction)
}

func TestInsights_ReferenceTime(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s)

	report := insights(t, s, "/api/v1/users/alice/insights?now=2024-06-20T09:00:00Z")
	assert.Equal(t, model.DayOf(time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)), report.Today)

	rec := do(t, s, http.MethodGet, "/api/v1/users/alice/insights?now=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsights_MeasuredTrend(t *testing.T) {
	s := newTestServer(t, func(p *profile.Profile) {
		p.TrendBaseline = profile.TrendBaselineMeasured
		p.ReportCacheSize = 0
	})
	seed(t, s)

	report := insights(t, s, "/api/v1/users/alice/insights")
	assert.Nil(t, s.reports)
	assert.Equal(t, strategy.BaselineMeasured, report.Strategy.Trend.Baseline)
	assert.Equal(t, strategy.PeriodTotals{Good: 3, Bad: 1}, report.Strategy.Trend.Current)
	assert.Equal(t, strategy.PeriodTotals{}, report.Strategy.Trend.Previous)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	seed(t, s)
	insights(t, s, "/api/v1/users/alice/insights")
	insights(t, s, "/api/v1/users/alice/insights")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `habitsense_analytics_analyses_total{status="success"} 1`)
	assert.Contains(t, body, `habitsense_server_cache_hits_total{cache_type="report"} 1`)
	assert.Contains(t, body, `habitsense_analytics_habits{level="critical"} 1`)
}

func TestCoach(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/users/alice/coach", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Keep running."},"finish_reason":"stop"}]}`))
		}))
		defer llm.Close()

		c := coach.New(coach.Config{Provider: "openai", APIKey: "k", BaseURL: llm.URL, Model: "m"}, nil, nil)
		s := newTestServer(t, nil, WithCoach(c))
		seed(t, s)

		rec := do(t, s, http.MethodPost, "/api/v1/users/alice/coach", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Advice coach.Advice `json:"advice"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Keep running.", resp.Advice.Text)
	})
}
