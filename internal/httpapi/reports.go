package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

const reportDateLayout = "2006-01-02"

// readingStats summarizes the readings attributed to one session.
type readingStats struct {
	AvgCPM              float64 `json:"avg_cpm"`
	AvgAbsorbedDoseRate float64 `json:"avg_absorbed_dose_rate"`
}

func summarizeReadings(readings []models.Reading) readingStats {
	var st readingStats
	if len(readings) == 0 {
		return st
	}
	for _, r := range readings {
		st.AvgCPM += float64(r.CPM)
		st.AvgAbsorbedDoseRate += r.AbsorbedDoseRate
	}
	n := float64(len(readings))
	st.AvgCPM /= n
	st.AvgAbsorbedDoseRate /= n
	return st
}

// sessionReadings returns one session with every reading attributed to it,
// oldest first.
func (a *API) sessionReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, r, models.ValidationError("session id must be a positive integer"))
		return
	}

	es, err := a.Store.GetSession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		a.writeError(w, r, models.NewError(models.CodeNotFound, "session not found", nil))
		return
	}
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to read session", err))
		return
	}

	report := models.SessionReport{ExposureSession: *es}
	switch e, err := a.Store.GetEmployee(ctx, es.EmployeeID); {
	case err == nil:
		report.EmployeeName = e.Name
	case !errors.Is(err, repository.ErrNotFound):
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to read employee", err))
		return
	}

	readings, err := a.Store.SessionReadings(ctx, id)
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to read session readings", err))
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"session":        report,
		"readings":       readings,
		"total_readings": len(readings),
		"readings_stats": summarizeReadings(readings),
	}))
}

// reportFilter reads ?employee_id=&from=&to=. Dates are local calendar days
// and both bounds are inclusive.
func (a *API) reportFilter(r *http.Request) (models.SessionReportFilter, error) {
	q := r.URL.Query()
	filter := models.SessionReportFilter{EmployeeID: q.Get("employee_id")}
	if v := q.Get("from"); v != "" {
		t, err := a.Engine.Normalize(v)
		if err != nil {
			return filter, err
		}
		filter.From = a.Engine.DateOf(t)
	}
	if v := q.Get("to"); v != "" {
		t, err := a.Engine.Normalize(v)
		if err != nil {
			return filter, err
		}
		filter.To = a.Engine.DateOf(t)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, models.ValidationError("to must not be before from")
	}
	return filter, nil
}

func (a *API) loadReports(w http.ResponseWriter, r *http.Request) (models.SessionReportFilter, []models.SessionReport, bool) {
	filter, err := a.reportFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return filter, nil, false
	}
	reports, err := a.Store.SessionReports(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to list sessions", err))
		return filter, nil, false
	}
	if reports == nil {
		reports = []models.SessionReport{}
	}
	return filter, reports, true
}

func filterEcho(f models.SessionReportFilter) map[string]any {
	echo := map[string]any{"employee_id": f.EmployeeID}
	if !f.From.IsZero() {
		echo["from"] = f.From.Format(reportDateLayout)
	}
	if !f.To.IsZero() {
		echo["to"] = f.To.Format(reportDateLayout)
	}
	return echo
}

func (a *API) exposureReports(w http.ResponseWriter, r *http.Request) {
	filter, reports, ok := a.loadReports(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"reports": reports,
		"count":   len(reports),
		"filters": filterEcho(filter),
	}))
}

func (a *API) exposureStatistics(w http.ResponseWriter, r *http.Request) {
	filter, reports, ok := a.loadReports(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"statistics": models.NewExposureStatistics(reports),
		"filters":    filterEcho(filter),
	}))
}
