package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/aggregator"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/report"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

const (
	storeOK       = "ok"
	storeDegraded = "degraded"
	pingTimeout   = 2 * time.Second
	xlsxType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (a *API) storeStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		a.logger.Warn("Store ping failed", zap.Error(err))
		return storeDegraded
	}
	return storeOK
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status": "ok",
		"store":  a.storeStatus(r.Context()),
		"time":   a.Engine.Now(),
	}))
}

func (a *API) systemStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"store":     a.storeStatus(r.Context()),
		"cache":     a.Cache.Stats(),
		"scheduler": a.Scheduler.Status(),
		"time":      a.Engine.Now(),
		"timezone":  a.Engine.Location().String(),
	}
	if a.WriteBehind != nil {
		resp["write_behind"] = a.WriteBehind()
	}
	if a.MQTTConnected != nil {
		resp["mqtt"] = storeOK
		if !a.MQTTConnected() {
			resp["mqtt"] = storeDegraded
		}
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (a *API) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Ok(a.Scheduler.Status()))
}

func (a *API) startScheduler(w http.ResponseWriter, r *http.Request) {
	err := a.Scheduler.Start(a.BaseContext)
	if err != nil && !errors.Is(err, aggregator.ErrAlreadyRunning) {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(a.Scheduler.Status()))
}

func (a *API) stopScheduler(w http.ResponseWriter, r *http.Request) {
	if err := a.Scheduler.Stop(); err != nil {
		a.writeError(w, r, models.NewError(models.CodeInternal, "scheduler did not stop in time", err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(a.Scheduler.Status()))
}

func (a *API) cumulativeReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := a.Store.ListSummaries(ctx)
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to list summaries", err))
		return
	}
	alerts, err := a.Store.ListAlerts(ctx, models.AlertFilter{Limit: repository.MaxAlertLimit})
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodePersistence, "failed to list alerts", err))
		return
	}

	data, err := report.CumulativeWorkbook(summaries, alerts)
	if err != nil {
		a.writeError(w, r, models.NewError(models.CodeInternal, "failed to render report", err))
		return
	}
	name := fmt.Sprintf("cumulative_exposure_%s.xlsx", a.Engine.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
