package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router uses the standard library ServeMux with method patterns.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Register mounts every route of a.
func (r *Router) Register(a *API) {
	// ingestion
	r.Handle("POST /data", a.ingestReading)
	r.Handle("POST /api/v1/readings", a.ingestReading)
	r.Handle("GET /api/v1/readings", a.listReadings)
	r.Handle("GET /api/v1/readings/latest", a.latestReading)
	r.Handle("GET /api/v1/cache/stats", a.cacheStats)

	// sessions
	r.Handle("POST /api/v1/sessions/{employee_id}/start", a.startSession)
	r.Handle("POST /api/v1/sessions/{employee_id}/close", a.closeSession)
	r.Handle("GET /api/v1/employees/{employee_id}/sessions", a.sessionHistory)
	r.Handle("GET /api/v1/employees/{employee_id}/dose-summary", a.doseSummary)
	r.Handle("GET /api/v1/sessions/{id}/readings", a.sessionReadings)
	r.Handle("PUT /api/v1/employees/{employee_id}", a.upsertEmployee)
	r.Handle("GET /api/v1/employees/{employee_id}", a.getEmployee)

	// cumulative
	r.Handle("GET /api/v1/cumulative", a.listCumulative)
	r.Handle("GET /api/v1/cumulative/{employee_id}", a.getCumulative)
	r.Handle("POST /api/v1/cumulative/recompute", a.recompute)

	// alerts
	r.Handle("GET /api/v1/alerts", a.listAlerts)
	r.Handle("POST /api/v1/alerts/{id}/acknowledge", a.acknowledgeAlert)
	r.Handle("POST /api/v1/alerts/acknowledge-all", a.acknowledgeAll)

	// attendance
	r.Handle("POST /api/v1/attendance", a.registerAttendance)
	r.Handle("GET /api/v1/attendance/{employee_id}/status", a.attendanceStatus)

	// scheduler
	r.Handle("GET /api/v1/scheduler/status", a.schedulerStatus)
	r.Handle("POST /api/v1/scheduler/start", a.startScheduler)
	r.Handle("POST /api/v1/scheduler/stop", a.stopScheduler)

	// ops
	r.Handle("GET /api/v1/reports/cumulative.xlsx", a.cumulativeReport)
	r.Handle("GET /api/v1/reports/exposure", a.exposureReports)
	r.Handle("GET /api/v1/reports/exposure/statistics", a.exposureStatistics)
	r.Handle("GET /api/v1/system/status", a.systemStatus)
	r.Handle("GET /health", a.health)
	if a.Metrics != nil {
		r.HandleHandler("GET /metrics", a.Metrics)
	}
}
