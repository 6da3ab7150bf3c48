package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/model"
	"github.com/hrygo/habitsense/analytics/pattern"
	"github.com/hrygo/habitsense/analytics/risk"
	"github.com/hrygo/habitsense/analytics/strategy"
)

func scrape(t *testing.T, e *Exporter) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestExporter_ObserveAnalysis(t *testing.T) {
	e := NewExporter(DefaultConfig())

	report := &analytics.Report{
		Risk: risk.Result{
			Habits: []risk.HabitRisk{
				{HabitID: "smoke", Level: model.RiskCritical},
				{HabitID: "run", Level: model.RiskGood},
				{HabitID: "read", Level: model.RiskGood},
			},
			Global: risk.GlobalState{Level: model.RiskCritical, SpiralDetected: true},
		},
		Patterns: pattern.Result{
			Patterns: []pattern.Pattern{{Type: pattern.TypeTemporal, Severity: pattern.SeverityHigh, Confidence: 80}},
		},
		Strategy: strategy.Result{HealthScore: strategy.HealthScore{Score: 41}},
	}

	e.ObserveAnalysis(report, 2*time.Millisecond, nil)
	e.ObserveAnalysis(nil, time.Millisecond, errors.Wrap(analytics.ErrInvalidSnapshot, "reference time is not set"))
	e.ObserveAnalysis(nil, time.Millisecond, errors.New("analysis canceled"))

	body := scrape(t, e)
	for _, line := range []string{
		`habitsense_analytics_analyses_total{status="success"} 1`,
		`habitsense_analytics_analyses_total{status="rejected"} 1`,
		`habitsense_analytics_analyses_total{status="error"} 1`,
		`habitsense_analytics_habits{level="critical"} 1`,
		`habitsense_analytics_habits{level="good"} 2`,
		`habitsense_analytics_habits{level="warning"} 0`,
		`habitsense_analytics_patterns_detected_total{severity="high",type="temporal"} 1`,
		`habitsense_analytics_health_score_count 1`,
		`habitsense_analytics_spirals_detected_total 1`,
	} {
		assert.Contains(t, body, line)
	}
}

func TestExporter_CacheAndCoach(t *testing.T) {
	e := NewExporter(Config{})

	e.RecordCacheHit("report")
	e.RecordCacheHit("report")
	e.RecordCacheMiss("report")
	e.RecordCoachRequest("deepseek", 300*time.Millisecond, true)
	e.RecordCoachRequest("deepseek", time.Second, false)

	body := scrape(t, e)
	assert.Contains(t, body, `habitsense_server_cache_hits_total{cache_type="report"} 2`)
	assert.Contains(t, body, `habitsense_server_cache_misses_total{cache_type="report"} 1`)
	assert.Contains(t, body, `habitsense_coach_requests_total{provider="deepseek",status="success"} 1`)
	assert.Contains(t, body, `habitsense_coach_requests_total{provider="deepseek",status="error"} 1`)
}

func TestExporter_ImplementsRecorder(t *testing.T) {
	var _ analytics.Recorder = NewExporter(DefaultConfig())
}
