package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/aggregator"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/consumer"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/session"
)

type stubIngestor struct{ err error }

func (s stubIngestor) Add(models.ReadingInput) (models.Reading, error) {
	return models.Reading{}, s.err
}

type stubSessions struct{ resumed bool }

func (s stubSessions) StartOrResume(context.Context, string) (*session.StartResult, error) {
	return &session.StartResult{Resumed: s.resumed}, nil
}

func (s stubSessions) Close(context.Context, string) (*session.CloseResult, error) {
	return nil, models.ErrNoActiveSession
}

type stubChecker struct{}

func (stubChecker) Check(context.Context, alerting.Input) ([]models.SafetyAlert, error) {
	return []models.SafetyAlert{{AlertType: alerting.TypeDoseRateDanger}}, nil
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestDecorators(t *testing.T) {
	m := New()
	ctx := context.Background()

	ok := m.Ingestor(stubIngestor{}, "http")
	bad := m.Ingestor(stubIngestor{err: errors.New("invalid")}, "mqtt")
	_, _ = ok.Add(models.ReadingInput{})
	_, _ = ok.Add(models.ReadingInput{})
	_, _ = bad.Add(models.ReadingInput{})

	_, _ = m.Sessions(stubSessions{}).StartOrResume(ctx, "E1")
	_, _ = m.Sessions(stubSessions{resumed: true}).StartOrResume(ctx, "E1")
	_, _ = m.Sessions(stubSessions{}).Close(ctx, "E1")

	_, _ = m.AlertChecker(stubChecker{}).Check(ctx, alerting.Input{})

	body := scrape(t, m)
	assert.Contains(t, body, `radmeter_readings_ingested_total{result="ok",source="http"} 2`)
	assert.Contains(t, body, `radmeter_readings_ingested_total{result="error",source="mqtt"} 1`)
	assert.Contains(t, body, `radmeter_sessions_transitions_total{action="start",result="ok"} 1`)
	assert.Contains(t, body, `radmeter_sessions_transitions_total{action="resume",result="ok"} 1`)
	assert.Contains(t, body, `radmeter_sessions_transitions_total{action="close",result="error"} 1`)
	assert.Contains(t, body, `radmeter_alerts_raised_total{type="dose_rate_danger"} 1`)
}

func TestWatchers(t *testing.T) {
	m := New()
	m.WatchCache(func() models.CacheStats { return models.CacheStats{Total: 7, Unsaved: 2} })
	m.WatchWriteBehind(func() consumer.WriteBehindStats { return consumer.WriteBehindStats{Saved: 5} })
	m.WatchScheduler(func() aggregator.Status {
		start := time.Now()
		return aggregator.Status{
			Running:  true,
			LastPass: &aggregator.PassResult{Updated: 3, Started: start, Finished: start},
		}
	})

	body := scrape(t, m)
	assert.Contains(t, body, "radmeter_cache_readings 7")
	assert.Contains(t, body, "radmeter_cache_unsaved_readings 2")
	assert.Contains(t, body, "radmeter_write_behind_saved_total 5")
	assert.Contains(t, body, "radmeter_aggregation_running 1")
	assert.Contains(t, body, "radmeter_aggregation_last_pass_updated 3")
}

func TestMiddleware(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := httptest.NewServer(m.Middleware(mux))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/things/42")
	require.NoError(t, err)
	resp.Body.Close()

	body := scrape(t, m)
	assert.Contains(t, body, `radmeter_http_request_duration_seconds_count{method="GET",route="GET /api/v1/things/{id}",status="418"} 1`)
}
